package state

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/entity"
	"portalshift/engine/internal/geometry"
	"portalshift/engine/internal/level"
	"portalshift/engine/internal/logging"
	"portalshift/engine/internal/portal"
	"portalshift/engine/internal/raycast"
)

// PortalState is the serialisable view of a live portal.
type PortalState struct {
	Channel     portal.Channel     `json:"channel"`
	Color       string             `json:"color"`
	Orientation portal.Orientation `json:"orientation"`
	Position    geometry.Point     `json:"position"`
	Width       float64            `json:"width"`
	Height      float64            `json:"height"`
	Angle       float64            `json:"angle"`
	Phase       float64            `json:"phase"`
}

// Snapshot is the complete observable state of a world at a tick.
type Snapshot struct {
	Tick     uint64               `json:"tick"`
	Level    string               `json:"level"`
	Portals  []PortalState        `json:"portals"`
	Actors   []entity.State       `json:"actors"`
	Switches []entity.SwitchState `json:"switches"`
}

// TickDiff collates the state and events emitted for a simulation tick.
type TickDiff struct {
	Tick     uint64
	Snapshot Snapshot
	Events   []Event
}

// HasChanges reports whether the diff carries events worth recording.
func (d TickDiff) HasChanges() bool {
	return len(d.Events) > 0
}

// WorldOption configures optional World behaviour at construction time.
type WorldOption func(*World)

// WithCaster overrides the raycaster used for aiming.
func WithCaster(caster *raycast.Caster) WorldOption {
	return func(w *World) {
		if caster != nil {
			w.caster = caster
		}
	}
}

// WithTransferOptions forwards tuning to the transfer engine. The world always
// installs its simulated clock last.
func WithTransferOptions(opts ...portal.EngineOption) WorldOption {
	return func(w *World) {
		w.engineOpts = append(w.engineOpts, opts...)
	}
}

// WithStartTime anchors the simulated clock, which otherwise starts at construction time.
func WithStartTime(start time.Time) WorldOption {
	return func(w *World) {
		if !start.IsZero() {
			w.origin = start
		}
	}
}

// WithSeed sets the base seed for sentry wandering.
func WithSeed(seed int64) WorldOption {
	return func(w *World) {
		w.seed = seed
	}
}

// WithLogger routes world diagnostics to the provided logger.
func WithLogger(logger *logging.Logger) WorldOption {
	return func(w *World) {
		w.logger = logger
	}
}

// WithSessionID overrides the randomly generated session identifier.
func WithSessionID(id string) WorldOption {
	return func(w *World) {
		if id != "" {
			w.session = id
		}
	}
}

// World owns a loaded level, its portal pair and every actor in it. All mutation
// happens inside AdvanceTick; network readers only ever Enqueue.
type World struct {
	mu sync.Mutex

	level   *level.Level
	pair    *portal.Pair
	engine  *portal.Engine
	caster  *raycast.Caster
	logger  *logging.Logger
	session string
	seed    int64

	player   *entity.Player
	crates   []*entity.Crate
	sentries []*entity.Sentry
	switches []*entity.Switch

	commands *CommandQueue
	events   *EventStore

	engineOpts []portal.EngineOption
	origin     time.Time
	elapsed    time.Duration
	tick       uint64
}

// NewWorld validates the level and spawns its actors.
func NewWorld(lvl *level.Level, opts ...WorldOption) (*World, error) {
	if err := lvl.Validate(); err != nil {
		return nil, fmt.Errorf("validate level: %w", err)
	}
	w := &World{
		level:    lvl,
		pair:     portal.NewPair(),
		caster:   raycast.Default(),
		session:  uuid.NewString(),
		seed:     1,
		commands: NewCommandQueue(DefaultCommandQueueLimit),
		events:   NewEventStore(),
		origin:   time.Now(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	//1.- Cooldowns and disorientation follow simulated time so replays are reproducible.
	engineOpts := append([]portal.EngineOption{portal.WithLogger(w.logger)}, w.engineOpts...)
	engineOpts = append(engineOpts, portal.WithClock(w.now))
	w.engine = portal.NewEngine(engineOpts...)
	w.spawn()
	return w, nil
}

// SessionID returns the identifier stamped on replays of this world.
func (w *World) SessionID() string { return w.session }

// Level returns the static level description.
func (w *World) Level() *level.Level { return w.level }

// Pair exposes the portal pair for read-only inspection.
func (w *World) Pair() *portal.Pair { return w.pair }

// Player returns the player body.
func (w *World) Player() *entity.Player { return w.player }

// Tick returns the number of ticks advanced so far.
func (w *World) Tick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

// Enqueue schedules a command for the next tick. It never blocks on the simulation.
func (w *World) Enqueue(cmd Command) error {
	switch cmd.Type {
	case CommandAim:
		if !cmd.Channel.Valid() {
			return portal.ErrUnknownChannel
		}
	case CommandMove, CommandReset:
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
	if !w.commands.Push(cmd) {
		return errors.New("command queue full")
	}
	return nil
}

// AdvanceTick runs one fixed step: commands first so placements land before any
// transfer check, then integration, transfers and switches.
func (w *World) AdvanceTick(step time.Duration) TickDiff {
	if w == nil {
		return TickDiff{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	dt := step.Seconds()
	w.tick++
	w.elapsed += step
	now := w.nowLocked()

	//1.- Apply queued commands.
	for _, cmd := range w.commands.Drain() {
		w.apply(cmd)
	}

	//2.- Integrate every actor against the static geometry.
	obstacles := w.level.Obstacles
	w.player.Update(dt, obstacles)
	for _, crate := range w.crates {
		crate.Update(dt, obstacles)
	}
	for _, sentry := range w.sentries {
		sentry.Update(dt, now, w.player.Position(), obstacles)
	}

	//3.- Run transfer checks under the pair's read lock.
	w.transfer(w.player)
	for _, crate := range w.crates {
		w.transfer(crate)
	}
	for _, sentry := range w.sentries {
		w.transfer(sentry)
	}

	//4.- Pressure plates react to where crates ended up.
	for _, plate := range w.switches {
		if plate.Update(dt, w.crates) {
			w.emit(EventSwitchToggled, plate.ID(), plate.State().Position.Vec(), map[string]string{
				"active": fmt.Sprintf("%t", plate.Active()),
			})
		}
	}
	w.pair.Advance(dt)

	return TickDiff{Tick: w.tick, Snapshot: w.snapshotLocked(), Events: w.events.ConsumeDiff()}
}

// Snapshot captures the full world state for newly connected viewers.
func (w *World) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *World) apply(cmd Command) {
	switch cmd.Type {
	case CommandAim:
		origin := w.player.Center()
		placed, hit, err := w.pair.Aim(cmd.Channel, w.caster, origin, cmd.Target, w.level.Obstacles)
		if err != nil {
			//1.- Rejections are expected gameplay; record them and carry on.
			w.logger.Debug("portal placement rejected",
				logging.String("channel", string(cmd.Channel)),
				logging.String("source", cmd.Source),
				logging.Error(err),
			)
			metadata := map[string]string{
				"channel": string(cmd.Channel),
				"reason":  err.Error(),
			}
			//2.- Tell viewers whether another obstacle at the hit point would have taken the portal.
			if hit.Obstacle != nil {
				metadata["friendly_surface"] = strconv.FormatBool(w.level.CanPlacePortal(hit.Point))
			}
			w.emit(EventPortalRejected, cmd.Source, hit.Point, metadata)
			return
		}
		w.emit(EventPortalPlaced, cmd.Source, placed.Position, map[string]string{
			"channel":     string(placed.Channel),
			"orientation": string(placed.Orientation),
		})
	case CommandMove:
		w.player.SetIntent(cmd.Intent)
	case CommandReset:
		w.spawn()
		w.emit(EventLevelReset, cmd.Source, w.level.PlayerStart, map[string]string{"level": w.level.Name})
	}
}

func (w *World) transfer(body portal.Body) {
	result, ok := w.engine.TransferThrough(body, w.pair)
	if !ok {
		return
	}
	w.emit(EventTransfer, result.ActorID, result.ToPosition, map[string]string{
		"kind":        string(result.Kind),
		"entry":       string(result.Entry),
		"exit":        string(result.Exit),
		"angle_delta": fmt.Sprintf("%g", result.AngleDelta),
	})
}

// spawn (re)creates every actor from the level and clears portals and cooldowns.
func (w *World) spawn() {
	lvl := w.level
	w.player = entity.NewPlayer(lvl.PlayerStart)
	w.crates = make([]*entity.Crate, 0, len(lvl.Crates))
	for idx, spec := range lvl.Crates {
		w.crates = append(w.crates, entity.NewCrate(fmt.Sprintf("crate-%d", idx+1), spec))
	}
	w.sentries = make([]*entity.Sentry, 0, len(lvl.Sentries))
	for idx, spec := range lvl.Sentries {
		w.sentries = append(w.sentries, entity.NewSentry(fmt.Sprintf("sentry-%d", idx+1), spec, w.seed+int64(idx)))
	}
	w.switches = make([]*entity.Switch, 0, len(lvl.Switches))
	for idx, spec := range lvl.Switches {
		w.switches = append(w.switches, entity.NewSwitch(fmt.Sprintf("switch-%d", idx+1), spec))
	}
	w.pair.Clear()
	if w.engine != nil {
		w.engine.Reset()
	}
}

func (w *World) emit(kind EventType, actor string, position r2.Vec, metadata map[string]string) {
	w.events.Add(Event{
		ID:       uuid.NewString(),
		Tick:     w.tick,
		Type:     kind,
		Actor:    actor,
		Position: geometry.PointOf(position),
		Metadata: metadata,
	})
}

func (w *World) snapshotLocked() Snapshot {
	snapshot := Snapshot{Tick: w.tick, Level: w.level.Name}
	for _, live := range w.pair.Snapshot() {
		snapshot.Portals = append(snapshot.Portals, PortalState{
			Channel:     live.Channel,
			Color:       live.Channel.Color(),
			Orientation: live.Orientation,
			Position:    geometry.PointOf(live.Position),
			Width:       live.Width,
			Height:      live.Height,
			Angle:       live.Angle,
			Phase:       live.Phase,
		})
	}
	snapshot.Actors = append(snapshot.Actors, w.player.State())
	for _, crate := range w.crates {
		snapshot.Actors = append(snapshot.Actors, crate.State())
	}
	for _, sentry := range w.sentries {
		snapshot.Actors = append(snapshot.Actors, sentry.State())
	}
	for _, plate := range w.switches {
		snapshot.Switches = append(snapshot.Switches, plate.State())
	}
	return snapshot
}

// now is the engine clock; it is only called from inside AdvanceTick.
func (w *World) now() time.Time { return w.nowLocked() }

func (w *World) nowLocked() time.Time { return w.origin.Add(w.elapsed) }
