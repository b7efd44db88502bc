// Package httpapi exposes the operational HTTP surface of the simulation host:
// liveness, readiness, metrics, stats and the admin level reset.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"portalshift/engine/internal/logging"
	"portalshift/engine/internal/replay"
	"portalshift/engine/internal/simulation"
)

// ReadinessProvider exposes host state required for readiness checks.
type ReadinessProvider interface {
	SnapshotClientCounts() (clients, pending int)
	StartupError() error
	Uptime() time.Duration
}

// Stats is the JSON document served on /api/stats.
type Stats struct {
	Level            string                         `json:"level"`
	Session          string                         `json:"session"`
	Tick             uint64                         `json:"tick"`
	Running          bool                           `json:"running"`
	Clients          int                            `json:"clients"`
	Subscribers      int                            `json:"subscribers"`
	Broadcasts       uint64                         `json:"broadcasts"`
	DroppedClients   uint64                         `json:"dropped_clients"`
	RejectedCommands uint64                         `json:"rejected_commands"`
	DroppedSteps     uint64                         `json:"dropped_steps"`
	TickMonitor      simulation.TickMetricsSnapshot `json:"tick_monitor"`
	TickHeadroom     float64                        `json:"tick_headroom"`
	Replay           *replay.Stats                  `json:"replay,omitempty"`
	Storage          *replay.StorageStats           `json:"storage,omitempty"`
}

// StatsFunc returns the current host statistics.
type StatsFunc func() Stats

// Resetter restarts the running level.
type Resetter interface {
	ResetLevel(ctx context.Context) error
}

// ResetterFunc adapts a function into a Resetter.
type ResetterFunc func(ctx context.Context) error

// ResetLevel implements Resetter.
func (f ResetterFunc) ResetLevel(ctx context.Context) error { return f(ctx) }

// RateLimiter gates how frequently a caller may invoke sensitive operations.
type RateLimiter interface {
	Allow(key string) bool
}

// Options configures the HandlerSet.
type Options struct {
	Logger      *logging.Logger
	Readiness   ReadinessProvider
	Stats       StatsFunc
	Resetter    Resetter
	AdminToken  string
	RateLimiter RateLimiter
	TimeSource  func() time.Time
}

// HandlerSet bundles the host operational handlers.
type HandlerSet struct {
	logger      *logging.Logger
	readiness   ReadinessProvider
	stats       StatsFunc
	resetter    Resetter
	adminToken  string
	rateLimiter RateLimiter
	now         func() time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:      logger,
		readiness:   opts.Readiness,
		stats:       opts.Stats,
		resetter:    opts.Resetter,
		adminToken:  strings.TrimSpace(opts.AdminToken),
		rateLimiter: opts.RateLimiter,
		now:         now,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/healthz", h.ReadinessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/api/stats", h.StatsHandler())
	mux.HandleFunc("/api/reset", h.ResetHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports whether the simulation is running, with client counts
// and the tick monitor summary.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status         string                          `json:"status"`
		Message        string                          `json:"message,omitempty"`
		UptimeSeconds  float64                         `json:"uptime_seconds"`
		Clients        int                             `json:"clients"`
		PendingClients int                             `json:"pending_clients"`
		Tick           uint64                          `json:"tick"`
		TickMonitor    *simulation.TickMetricsSnapshot `json:"tick_monitor,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok"}
		if h.readiness != nil {
			resp.Clients, resp.PendingClients = h.readiness.SnapshotClientCounts()
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
			if err := h.readiness.StartupError(); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = err.Error()
			}
		}
		if h.stats != nil {
			stats := h.stats()
			resp.Tick = stats.Tick
			resp.TickMonitor = &stats.TickMonitor
		}
		writeJSON(w, status, resp)
	}
}

// StatsHandler serves the full host statistics as JSON.
func (h *HandlerSet) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var stats Stats
		if h.stats != nil {
			stats = h.stats()
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var stats Stats
		if h.stats != nil {
			stats = h.stats()
		}
		pending, uptime := h.pendingAndUptime()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		gauge(w, "portalshift_uptime_seconds", "Host uptime in seconds.", fmt.Sprintf("%.0f", uptime))
		gauge(w, "portalshift_clients", "Current connected WebSocket clients.", fmt.Sprint(stats.Clients))
		gauge(w, "portalshift_pending_clients", "Pending WebSocket handshakes awaiting upgrade.", fmt.Sprint(pending))
		gauge(w, "portalshift_stream_subscribers", "Active gRPC frame subscribers.", fmt.Sprint(stats.Subscribers))
		gauge(w, "portalshift_tick", "Last simulated tick.", fmt.Sprint(stats.Tick))
		counter(w, "portalshift_broadcasts_total", "Total tick snapshots broadcast.", stats.Broadcasts)
		counter(w, "portalshift_dropped_clients_total", "Clients disconnected for falling behind.", stats.DroppedClients)
		counter(w, "portalshift_commands_rejected_total", "Client commands rejected by validation or rate limits.", stats.RejectedCommands)
		counter(w, "portalshift_dropped_steps_total", "Simulation steps shed after stalls.", stats.DroppedSteps)

		monitor := stats.TickMonitor
		fmt.Fprintf(w, "# HELP portalshift_tick_duration_seconds Observed simulation tick cost.\n")
		fmt.Fprintf(w, "# TYPE portalshift_tick_duration_seconds gauge\n")
		fmt.Fprintf(w, "portalshift_tick_duration_seconds{stat=\"avg\"} %g\n", monitor.Average.Seconds())
		fmt.Fprintf(w, "portalshift_tick_duration_seconds{stat=\"max\"} %g\n", monitor.Max.Seconds())
		fmt.Fprintf(w, "portalshift_tick_duration_seconds{stat=\"last\"} %g\n", monitor.Last.Seconds())
		counter(w, "portalshift_tick_overruns_total", "Ticks slower than the fixed step.", uint64(monitor.Overruns))

		if stats.Replay != nil {
			counter(w, "portalshift_replay_events_total", "Replay events persisted.", uint64(stats.Replay.Events))
			counter(w, "portalshift_replay_frames_total", "Replay frames persisted.", uint64(stats.Replay.Frames))
			counter(w, "portalshift_replay_failures_total", "Replay writes that failed.", uint64(stats.Replay.Failures))
		}
		if stats.Storage != nil {
			gauge(w, "portalshift_replay_bundles", "Replay bundles retained on disk.", fmt.Sprint(stats.Storage.Bundles))
			gauge(w, "portalshift_replay_bytes", "Replay bytes retained on disk.", fmt.Sprint(stats.Storage.Bytes))
		}
	}
}

// ResetHandler authorises and triggers a level restart.
func (h *HandlerSet) ResetHandler() http.HandlerFunc {
	type response struct {
		Status string `json:"status"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(
			logging.String("handler", "level_reset"),
			logging.String("trace_id", logging.TraceIDFromContext(r.Context())),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.adminToken == "" {
			reqLogger.Warn("level reset denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("level reset denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow(remoteHost(r)) {
			reqLogger.Warn("level reset denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.resetter == nil {
			http.Error(w, "level reset is unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := h.resetter.ResetLevel(r.Context()); err != nil {
			reqLogger.Error("level reset failed", logging.Error(err))
			http.Error(w, "failed to reset level", http.StatusInternalServerError)
			return
		}
		reqLogger.Info("level reset queued")
		writeJSON(w, http.StatusAccepted, response{Status: "accepted"})
	}
}

func (h *HandlerSet) pendingAndUptime() (pending int, uptime float64) {
	if h.readiness == nil {
		return 0, 0
	}
	_, pending = h.readiness.SnapshotClientCounts()
	return pending, h.readiness.Uptime().Seconds()
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

// remoteHost strips the port so reconnecting callers share one budget.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func gauge(w http.ResponseWriter, name, help, value string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %s\n", name, help, name, name, value)
}

func counter(w http.ResponseWriter, name, help string, value uint64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, value)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
