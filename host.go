package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"portalshift/engine/internal/config"
	grpcstream "portalshift/engine/internal/grpc"
	httpapi "portalshift/engine/internal/http"
	"portalshift/engine/internal/level"
	"portalshift/engine/internal/logging"
	"portalshift/engine/internal/portal"
	"portalshift/engine/internal/raycast"
	"portalshift/engine/internal/replay"
	"portalshift/engine/internal/simulation"
	"portalshift/engine/internal/state"
)

const shutdownTimeout = 5 * time.Second

var errLoopStopped = errors.New("simulation loop not running")

// host owns every long-lived component of the simulation process.
type host struct {
	cfg      *config.Config
	log      *logging.Logger
	world    *state.World
	hub      *Hub
	loop     *simulation.Loop
	monitor  *simulation.TickMonitor
	recorder *replay.Recorder
	cleaner  *replay.Cleaner
	grpc     *grpcstream.Server
	handlers *httpapi.HandlerSet
	started  time.Time
}

func newHost(cfg *config.Config, logger *logging.Logger) (*host, error) {
	if logger == nil {
		logger = logging.L()
	}
	lvl, err := loadLevel(cfg.LevelPath)
	if err != nil {
		return nil, err
	}
	world, err := state.NewWorld(lvl,
		state.WithLogger(logger.With(logging.String("component", "world"))),
		state.WithCaster(raycast.New(cfg.RayStep, cfg.RayMaxDistance)),
		state.WithTransferOptions(portal.WithBoost(cfg.Boost), portal.WithProfiles(transferProfiles(cfg))),
	)
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}
	authenticator, err := newWebsocketAuthenticator(cfg.WSAuthSecret)
	if err != nil {
		return nil, fmt.Errorf("websocket auth: %w", err)
	}

	h := &host{cfg: cfg, log: logger, world: world, started: time.Now()}
	h.hub = NewHub(world,
		WithHubConfig(cfg),
		WithHubLogger(logger.With(logging.String("component", "hub"))),
		WithWebsocketAuthenticator(authenticator),
	)
	h.monitor = simulation.NewTickMonitor(cfg.TickInterval())
	h.loop = simulation.NewLoop(float64(cfg.TickRate), h.step, simulation.WithMonitor(h.monitor))

	if cfg.ReplayDir != "" {
		writer, _, err := replay.NewWriter(cfg.ReplayDir, world.SessionID(), time.Now)
		if err != nil {
			return nil, fmt.Errorf("open replay bundle: %w", err)
		}
		writer.SetHeaderMetadata(lvl.Name, float64(cfg.TickRate))
		h.recorder, err = replay.NewRecorder(writer, cfg.TickInterval(), logger.With(logging.String("component", "replay")))
		if err != nil {
			_ = writer.Close()
			return nil, err
		}
		h.cleaner = replay.NewCleaner(cfg.ReplayDir, replay.RetentionPolicy{
			MaxBundles: cfg.ReplayMaxBundles,
			MaxAge:     cfg.ReplayMaxAge,
		}, logger.With(logging.String("component", "replay_retention")))
		logger.Info("replay recording enabled", logging.String("directory", writer.Directory()), logging.String("session", world.SessionID()))
	}

	if cfg.GRPCAddress != "" {
		h.grpc = grpcstream.NewServer(grpcstream.ServerOptions{
			Bridge:       h.hub,
			SharedSecret: cfg.GRPCSharedSecret,
			StreamRate:   cfg.StreamRate,
			Logger:       logger.With(logging.String("component", "grpc")),
		})
	}

	h.handlers = httpapi.NewHandlerSet(httpapi.Options{
		Logger:      logger.With(logging.String("component", "http")),
		Readiness:   h,
		Stats:       h.stats,
		Resetter:    httpapi.ResetterFunc(h.resetLevel),
		AdminToken:  cfg.AdminToken,
		RateLimiter: httpapi.NewSlidingWindowLimiter(time.Minute, cfg.AdminResetsPerMinute, nil),
	})
	return h, nil
}

func loadLevel(path string) (*level.Level, error) {
	if path == "" {
		return level.Tutorial(), nil
	}
	lvl, err := level.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load level %s: %w", path, err)
	}
	return lvl, nil
}

// transferProfiles layers the configured tuning over the stock profiles.
func transferProfiles(cfg *config.Config) map[portal.Kind]portal.Profile {
	profiles := portal.DefaultProfiles()
	player := profiles[portal.KindPlayer]
	player.Clearance = cfg.PlayerClearance
	profiles[portal.KindPlayer] = player

	sentry := profiles[portal.KindSentry]
	sentry.Cooldown = cfg.SentryCooldown
	sentry.Disorientation = cfg.SentryDisorientation
	profiles[portal.KindSentry] = sentry
	return profiles
}

// step is the simulation tick: advance, fan out, record.
func (h *host) step(dt time.Duration) {
	diff := h.world.AdvanceTick(dt)
	h.hub.Broadcast(diff)
	if h.recorder != nil {
		_ = h.recorder.Record(diff)
	}
}

func (h *host) resetLevel(context.Context) error {
	return h.world.Enqueue(state.Command{Type: state.CommandReset, Source: "admin"})
}

// Handler returns the HTTP surface: the websocket endpoint plus operational routes.
func (h *host) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.hub.ServeWS)
	mux.HandleFunc("/api/controls", controlDocsHandler)
	h.handlers.Register(mux)
	return logging.HTTPTraceMiddleware(h.log)(mux)
}

// SnapshotClientCounts implements httpapi.ReadinessProvider.
func (h *host) SnapshotClientCounts() (clients, pending int) {
	return h.hub.SnapshotClientCounts()
}

// StartupError implements httpapi.ReadinessProvider.
func (h *host) StartupError() error {
	if !h.loop.Running() {
		return errLoopStopped
	}
	return nil
}

// Uptime implements httpapi.ReadinessProvider.
func (h *host) Uptime() time.Duration {
	return time.Since(h.started)
}

func (h *host) stats() httpapi.Stats {
	hub := h.hub.Stats()
	monitor := h.monitor.Snapshot()
	stats := httpapi.Stats{
		Level:            h.world.Level().Name,
		Session:          h.world.SessionID(),
		Tick:             h.world.Tick(),
		Running:          h.loop.Running(),
		Clients:          hub.Clients,
		Subscribers:      hub.Subscribers,
		Broadcasts:       hub.Broadcasts,
		DroppedClients:   hub.DroppedClients,
		RejectedCommands: hub.RejectedCommands,
		DroppedSteps:     h.loop.DroppedSteps(),
		TickMonitor:      monitor,
		TickHeadroom:     monitor.Headroom(h.loop.StepDuration()),
	}
	if h.recorder != nil {
		recorded := h.recorder.Snapshot()
		stats.Replay = &recorded
	}
	if h.cleaner != nil {
		storage := h.cleaner.Stats()
		stats.Storage = &storage
	}
	return stats
}

// Run listens on the configured addresses and serves until ctx is cancelled.
func (h *host) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", h.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", h.cfg.Address, err)
	}
	var grpcLis net.Listener
	if h.grpc != nil {
		grpcLis, err = net.Listen("tcp", h.cfg.GRPCAddress)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("listen grpc %s: %w", h.cfg.GRPCAddress, err)
		}
	}
	return h.serve(ctx, httpLis, grpcLis)
}

// serve owns the listeners: it starts the loop, serves until ctx ends or a
// listener fails, then shuts everything down in reverse order.
func (h *host) serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	httpServer := &http.Server{Handler: h.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	if h.grpc != nil && grpcLis != nil {
		go func() {
			if err := h.grpc.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	h.loop.Start(ctx)
	if h.grpc != nil {
		h.grpc.SetServing(true)
	}
	var background sync.WaitGroup
	if h.cleaner != nil {
		background.Add(1)
		go func() {
			defer background.Done()
			h.cleaner.Run(ctx, replay.DefaultSweepInterval)
		}()
	}
	fields := []logging.Field{
		logging.String("http", listenerURL("http", httpLis.Addr().String(), "")),
		logging.String("websocket", listenerURL("ws", httpLis.Addr().String(), "/ws")),
		logging.String("level", h.world.Level().Name),
		logging.Int("tick_hz", h.cfg.TickRate),
	}
	if grpcLis != nil {
		fields = append(fields, logging.String("grpc", normaliseHostPort(grpcLis.Addr().String())))
	}
	h.log.Info("portalshift host listening", fields...)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		h.log.Error("listener failed", logging.Error(runErr))
	}
	cancel()
	h.shutdown(httpServer)
	background.Wait()
	return runErr
}

func (h *host) shutdown(httpServer *http.Server) {
	if h.grpc != nil {
		h.grpc.SetServing(false)
	}
	h.loop.Stop()
	h.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		h.log.Warn("http shutdown incomplete", logging.Error(err))
	}
	if h.grpc != nil {
		h.grpc.Stop(ctx)
	}
	if h.recorder != nil {
		if err := h.recorder.Close(); err != nil {
			h.log.Warn("replay close failed", logging.Error(err))
		}
		stats := h.recorder.Snapshot()
		h.log.Info("replay bundle closed",
			logging.String("directory", stats.Directory),
			logging.Int("events", int(stats.Events)),
			logging.Int("frames", int(stats.Frames)),
		)
	}
	h.log.Info("portalshift host stopped", logging.Uint64("tick", h.world.Tick()))
}
