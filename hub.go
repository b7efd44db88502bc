package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"portalshift/engine/internal/config"
	grpcstream "portalshift/engine/internal/grpc"
	"portalshift/engine/internal/logging"
	"portalshift/engine/internal/state"
)

const (
	writeWait        = 10 * time.Second
	clientSendBuffer = 64
)

// ErrCommandRateLimited is returned when a client exceeds its command budget.
var ErrCommandRateLimited = errors.New("command rate limit exceeded")

// CommandTarget receives validated commands; the simulation world satisfies it.
type CommandTarget interface {
	Enqueue(cmd state.Command) error
	Snapshot() state.Snapshot
}

type outbound struct {
	Type     string          `json:"type"`
	ClientID string          `json:"client_id,omitempty"`
	Tick     uint64          `json:"tick,omitempty"`
	Sequence uint64          `json:"seq,omitempty"`
	Snapshot *state.Snapshot `json:"snapshot,omitempty"`
	Events   []state.Event   `json:"events,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Client is a connected websocket viewer. id names the viewer in events;
// key is unique per connection and scopes its command budget and sequence.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
	key  string
	once sync.Once
}

// HubStats summarises hub activity for the stats endpoint.
type HubStats struct {
	Clients          int    `json:"clients"`
	Subscribers      int    `json:"subscribers"`
	Broadcasts       uint64 `json:"broadcasts"`
	DroppedClients   uint64 `json:"dropped_clients"`
	RejectedCommands uint64 `json:"rejected_commands"`
}

// HubOption configures optional Hub behaviour at construction time.
type HubOption func(*Hub)

// WithHubLogger routes hub diagnostics to the provided logger.
func WithHubLogger(logger *logging.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithWebsocketAuthenticator wires a custom authenticator into the hub.
func WithWebsocketAuthenticator(authenticator websocketAuthenticator) HubOption {
	return func(h *Hub) {
		if authenticator != nil {
			h.auth = authenticator
		}
	}
}

// WithHubConfig applies the websocket limits and command budgets from cfg.
func WithHubConfig(cfg *config.Config) HubOption {
	return func(h *Hub) {
		if cfg == nil {
			return
		}
		h.allowedOrigins = cfg.AllowedOrigins
		h.maxClients = cfg.MaxClients
		if cfg.MaxPayloadBytes > 0 {
			h.maxPayload = cfg.MaxPayloadBytes
		}
		if cfg.PingInterval > 0 {
			h.pingInterval = cfg.PingInterval
		}
		if cfg.CommandRate > 0 {
			h.commandRate = rate.Limit(cfg.CommandRate)
		}
		if cfg.CommandBurst > 0 {
			h.commandBurst = cfg.CommandBurst
		}
	}
}

// Hub fans tick snapshots out to websocket viewers and gRPC subscribers, and
// funnels their commands into the world queue.
type Hub struct {
	target CommandTarget
	log    *logging.Logger
	auth   websocketAuthenticator

	upgrader       websocket.Upgrader
	allowedOrigins []string
	maxClients     int
	maxPayload     int64
	pingInterval   time.Duration
	commandRate    rate.Limit
	commandBurst   int

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool

	cmdMu     sync.Mutex
	limiters  map[string]*rate.Limiter
	sequences *state.SequenceTracker
	cmdLeases map[string]int
	connSeq   atomic.Uint64

	diffMu          sync.Mutex
	diffSubscribers map[uint64]*diffSubscriber
	nextDiffID      uint64
	diffClosed      bool

	pending    atomic.Int64
	broadcasts atomic.Uint64
	dropped    atomic.Uint64
	rejected   atomic.Uint64
}

// NewHub constructs a hub that forwards commands to target.
func NewHub(target CommandTarget, opts ...HubOption) *Hub {
	h := &Hub{
		target:          target,
		log:             logging.L(),
		auth:            allowAllAuthenticator{},
		maxPayload:      config.DefaultMaxPayloadBytes,
		pingInterval:    config.DefaultPingInterval,
		commandRate:     rate.Limit(config.DefaultCommandRate),
		commandBurst:    config.DefaultCommandBurst,
		clients:         make(map[*Client]struct{}),
		limiters:        make(map[string]*rate.Limiter),
		sequences:       state.NewSequenceTracker(),
		cmdLeases:       make(map[string]int),
		diffSubscribers: make(map[uint64]*diffSubscriber),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and starts the client's reader and writer.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	reqLogger := h.log.With(logging.String("remote_addr", r.RemoteAddr))
	subject, err := h.auth.Authenticate(r)
	if err != nil {
		reqLogger.Warn("websocket authentication failed", logging.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.mu.Lock()
	full := h.maxClients > 0 && len(h.clients)+int(h.pending.Load()) >= h.maxClients
	closed := h.closed
	if !full && !closed {
		h.pending.Add(1)
	}
	h.mu.Unlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if full {
		reqLogger.Warn("websocket rejected: client limit reached", logging.Int("max_clients", h.maxClients))
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	h.pending.Add(-1)
	if err != nil {
		reqLogger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	id := subject
	if id == "" {
		id = "ws-" + uuid.NewString()
	}
	client := &Client{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		id:   id,
		key:  fmt.Sprintf("%s#%d", id, h.connSeq.Add(1)),
	}

	//1.- The welcome message carries the full state so viewers can render at once.
	snapshot := h.target.Snapshot()
	welcome, err := json.Marshal(outbound{Type: "welcome", ClientID: id, Tick: snapshot.Tick, Snapshot: &snapshot})
	if err != nil {
		reqLogger.Error("encode welcome", logging.Error(err))
		conn.Close()
		return
	}
	client.send <- welcome

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	reqLogger.Info("websocket client connected", logging.String("client_id", id))

	go h.readPump(client)
	go h.writePump(client)
}

func (h *Hub) readPump(client *Client) {
	release := h.OpenCommands(client.key)
	defer func() {
		h.remove(client)
		release()
		client.conn.Close()
	}()
	conn := client.conn
	pongWait := h.pingInterval * 2
	conn.SetReadLimit(h.maxPayload)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read failed", logging.String("client_id", client.id), logging.Error(err))
			}
			return
		}
		if err := h.submit(client.key, client.id, raw); err != nil {
			h.reply(client, outbound{Type: "error", Sequence: sequenceOf(raw), Error: err.Error()})
		}
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SubmitCommand validates raw against the client's budget and sequence history
// before queueing it on the world.
func (h *Hub) SubmitCommand(clientID string, raw []byte) error {
	return h.submit(clientID, clientID, raw)
}

// submit admits raw under key's budget and attributes the command to source.
func (h *Hub) submit(key, source string, raw []byte) error {
	if h == nil || h.target == nil {
		return errors.New("hub not configured")
	}
	cmd, err := h.admit(key, source, raw)
	if err == nil {
		err = h.target.Enqueue(cmd)
	}
	if err != nil {
		h.rejected.Add(1)
		return err
	}
	return nil
}

func (h *Hub) admit(key, source string, raw []byte) (state.Command, error) {
	h.cmdMu.Lock()
	defer h.cmdMu.Unlock()
	limiter, ok := h.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(h.commandRate, h.commandBurst)
		h.limiters[key] = limiter
	}
	if !limiter.Allow() {
		return state.Command{}, ErrCommandRateLimited
	}
	cmd, seq, err := state.DecodeCommand(raw, source)
	if err != nil {
		return state.Command{}, err
	}
	if err := h.sequences.Observe(key, seq); err != nil {
		return state.Command{}, err
	}
	return cmd, nil
}

// OpenCommands leases key's command state; it is forgotten when the last lease is released.
func (h *Hub) OpenCommands(key string) func() {
	h.cmdMu.Lock()
	h.cmdLeases[key]++
	h.cmdMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			h.cmdMu.Lock()
			defer h.cmdMu.Unlock()
			h.cmdLeases[key]--
			if h.cmdLeases[key] > 0 {
				return
			}
			delete(h.cmdLeases, key)
			delete(h.limiters, key)
			h.sequences.Forget(key)
		})
	}
}

// Broadcast sends the tick to every viewer and stream subscriber without blocking
// the simulation. Viewers whose buffers are full are disconnected.
func (h *Hub) Broadcast(diff state.TickDiff) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(outbound{Type: "tick", Tick: diff.Tick, Snapshot: &diff.Snapshot, Events: diff.Events})
	if err != nil {
		h.log.Error("encode tick broadcast", logging.Error(err), logging.Uint64("tick", diff.Tick))
		return
	}
	h.mu.Lock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.dropped.Add(1)
			h.log.Warn("dropping slow websocket client", logging.String("client_id", client.id))
			h.removeLocked(client)
		}
	}
	h.mu.Unlock()
	h.broadcasts.Add(1)

	h.diffMu.Lock()
	for _, sub := range h.diffSubscribers {
		sub.offer(diff)
	}
	h.diffMu.Unlock()
}

// SubscribeDiffs allows gRPC services to observe tick diffs via fan-out channels.
// A consumer that falls behind receives one merged diff: the newest snapshot
// plus every event since its previous receive.
func (h *Hub) SubscribeDiffs(ctx context.Context) (<-chan state.TickDiff, func(), error) {
	if h == nil {
		return nil, func() {}, errors.New("hub is nil")
	}
	sub := newDiffSubscriber()
	h.diffMu.Lock()
	if h.diffClosed {
		h.diffMu.Unlock()
		return nil, func() {}, errors.New("hub is closed")
	}
	h.nextDiffID++
	id := h.nextDiffID
	h.diffSubscribers[id] = sub
	h.diffMu.Unlock()

	var ctxDone <-chan struct{}
	if ctx != nil {
		ctxDone = ctx.Done()
	}
	go func() {
		sub.forward(ctxDone)
		h.dropSubscriber(id)
	}()
	cancel := func() {
		h.dropSubscriber(id)
		sub.stop()
	}
	return sub.out, cancel, nil
}

func (h *Hub) dropSubscriber(id uint64) {
	h.diffMu.Lock()
	delete(h.diffSubscribers, id)
	h.diffMu.Unlock()
}

// SnapshotClientCounts reports connected and mid-handshake viewers.
func (h *Hub) SnapshotClientCounts() (clients, pending int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients), int(h.pending.Load())
}

// Stats returns the hub counters.
func (h *Hub) Stats() HubStats {
	clients, _ := h.SnapshotClientCounts()
	h.diffMu.Lock()
	subscribers := len(h.diffSubscribers)
	h.diffMu.Unlock()
	return HubStats{
		Clients:          clients,
		Subscribers:      subscribers,
		Broadcasts:       h.broadcasts.Load(),
		DroppedClients:   h.dropped.Load(),
		RejectedCommands: h.rejected.Load(),
	}
}

// Close disconnects every viewer and ends every stream subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for client := range h.clients {
		h.removeLocked(client)
	}
	h.mu.Unlock()

	h.diffMu.Lock()
	h.diffClosed = true
	for id, sub := range h.diffSubscribers {
		delete(h.diffSubscribers, id)
		sub.finish()
	}
	h.diffMu.Unlock()
}

func (h *Hub) reply(client *Client, msg outbound) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	h.removeLocked(client)
	h.mu.Unlock()
}

// removeLocked closes the send channel exactly once; the writer then says goodbye.
func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.once.Do(func() { close(client.send) })
	h.log.Debug("websocket client removed", logging.String("client_id", client.id))
}

// sequenceOf echoes the seq field back on errors, even for otherwise invalid commands.
func sequenceOf(raw []byte) uint64 {
	var probe struct {
		Sequence uint64 `json:"seq"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0
	}
	return probe.Sequence
}

// diffSubscriber coalesces diffs for one stream consumer. Snapshots collapse to
// the newest while events accumulate, so a stalled consumer never loses events.
type diffSubscriber struct {
	out     chan state.TickDiff
	notify  chan struct{}
	done    chan struct{}
	closing chan struct{}

	stopOnce   sync.Once
	finishOnce sync.Once

	mu     sync.Mutex
	latest *state.TickDiff
	events []state.Event
}

func newDiffSubscriber() *diffSubscriber {
	return &diffSubscriber{
		out:     make(chan state.TickDiff),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
}

// offer never blocks; the forwarder picks the merged state up.
func (s *diffSubscriber) offer(diff state.TickDiff) {
	s.mu.Lock()
	s.events = append(s.events, diff.Events...)
	latest := diff
	s.latest = &latest
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *diffSubscriber) take() (state.TickDiff, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return state.TickDiff{}, false
	}
	diff := *s.latest
	diff.Events = s.events
	s.latest, s.events = nil, nil
	return diff, true
}

// stop is called by the consumer; nothing more is delivered.
func (s *diffSubscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// finish is called by the hub; what is pending is still delivered once.
func (s *diffSubscriber) finish() {
	s.finishOnce.Do(func() { close(s.closing) })
}

func (s *diffSubscriber) forward(ctxDone <-chan struct{}) {
	defer close(s.out)
	for {
		select {
		case <-s.notify:
		case <-s.closing:
			if diff, ok := s.take(); ok {
				s.deliver(diff, ctxDone)
			}
			return
		case <-s.done:
			return
		case <-ctxDone:
			return
		}
		if diff, ok := s.take(); ok && !s.deliver(diff, ctxDone) {
			return
		}
	}
}

func (s *diffSubscriber) deliver(diff state.TickDiff, ctxDone <-chan struct{}) bool {
	select {
	case s.out <- diff:
		return true
	case <-s.done:
		return false
	case <-ctxDone:
		return false
	}
}

var _ grpcstream.Bridge = (*Hub)(nil)
