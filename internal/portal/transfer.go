package portal

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/geometry"
	"portalshift/engine/internal/logging"
)

// DefaultBoost is the speed multiplier applied after every transfer so an actor
// does not re-trigger the same portal on the following tick.
const DefaultBoost = 1.05

// Kind identifies which transfer profile applies to a body.
type Kind string

const (
	KindPlayer Kind = "player"
	KindCrate  Kind = "crate"
	KindSentry Kind = "sentry"
)

// Body is anything the engine can move between portals.
type Body interface {
	ID() string
	Kind() Kind
	Position() r2.Vec
	SetPosition(r2.Vec)
	Size() r2.Vec
	Velocity() r2.Vec
	SetVelocity(r2.Vec)
	Bounds() geometry.Rect
}

// Disorientable bodies are told how long to stay confused after a transfer.
type Disorientable interface {
	Disorient(until time.Time)
}

// Profile carries the per-kind transfer tuning.
type Profile struct {
	// Clearance is the fixed distance kept from the exit portal face.
	Clearance float64
	// HalfSizeClearance replaces Clearance with half the body's extent along the exit axis.
	HalfSizeClearance bool
	// Cooldown is the minimum interval between two transfers of the same body.
	Cooldown time.Duration
	// Disorientation is how long a Disorientable body stays confused after a transfer.
	Disorientation time.Duration
}

// ClearanceFor resolves the exit offset for a body of the given size.
func (p Profile) ClearanceFor(size r2.Vec, exit Orientation) float64 {
	if !p.HalfSizeClearance {
		return p.Clearance
	}
	if exit == Vertical {
		return size.X / 2
	}
	return size.Y / 2
}

// DefaultProfiles returns the stock tuning: the player exits 25 units clear with no
// cooldown, crates exit half their size clear, and sentries additionally wait one
// second between transfers and wander for three seconds afterwards.
func DefaultProfiles() map[Kind]Profile {
	return map[Kind]Profile{
		KindPlayer: {Clearance: 25},
		KindCrate:  {HalfSizeClearance: true},
		KindSentry: {HalfSizeClearance: true, Cooldown: time.Second, Disorientation: 3 * time.Second},
	}
}

// Result describes a completed transfer.
type Result struct {
	ActorID      string
	Kind         Kind
	Entry        Channel
	Exit         Channel
	FromPosition r2.Vec
	ToPosition   r2.Vec
	FromVelocity r2.Vec
	ToVelocity   r2.Vec
	// Direction is the penetration sign along the entry axis, +1 or -1.
	Direction float64
	// AngleDelta is exit angle minus entry angle in degrees.
	AngleDelta float64
	At         time.Time
}

// EngineOption configures optional Engine behaviour at construction time.
type EngineOption func(*Engine)

// WithClock overrides the wall clock used for cooldowns and disorientation deadlines.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// WithBoost overrides the post-transfer speed multiplier. Non-positive values are ignored.
func WithBoost(boost float64) EngineOption {
	return func(e *Engine) {
		if boost > 0 {
			e.boost = boost
		}
	}
}

// WithProfiles merges per-kind overrides on top of DefaultProfiles.
func WithProfiles(profiles map[Kind]Profile) EngineOption {
	return func(e *Engine) {
		for kind, profile := range profiles {
			e.profiles[kind] = profile
		}
	}
}

// WithLogger routes transfer diagnostics to the provided logger.
func WithLogger(logger *logging.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine moves bodies between the two portals of a pair.
type Engine struct {
	mu       sync.Mutex
	now      func() time.Time
	boost    float64
	profiles map[Kind]Profile
	logger   *logging.Logger
	last     map[string]time.Time
}

// NewEngine builds a transfer engine with default tuning.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		now:      time.Now,
		boost:    DefaultBoost,
		profiles: DefaultProfiles(),
		last:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Boost reports the configured post-transfer speed multiplier.
func (e *Engine) Boost() float64 { return e.boost }

// Profile returns the tuning for kind. Unknown kinds are treated like crates.
func (e *Engine) Profile(kind Kind) Profile {
	if profile, ok := e.profiles[kind]; ok {
		return profile
	}
	return e.profiles[KindCrate]
}

// TryTransfer moves the actor through whichever portal it overlaps and reports whether it moved.
func (e *Engine) TryTransfer(actor Body, a, b *Portal) bool {
	_, ok := e.Transfer(actor, a, b)
	return ok
}

// TransferThrough runs a transfer check against the pair while holding its read lock,
// so a concurrent placement cannot swap a portal halfway through.
func (e *Engine) TransferThrough(actor Body, pair *Pair) (Result, bool) {
	if pair == nil {
		return Result{}, false
	}
	var result Result
	ok := pair.view(func(a, b *Portal) bool {
		var moved bool
		result, moved = e.Transfer(actor, a, b)
		return moved
	})
	return result, ok
}

// Transfer is TryTransfer with the details of the move.
// The body's offset along the entry face is measured on the entry's cross axis
// and reapplied along the exit's cross axis, so mixed vertical and horizontal
// pairs map the corresponding edges onto each other.
func (e *Engine) Transfer(actor Body, a, b *Portal) (Result, bool) {
	if actor == nil || a == nil || b == nil {
		return Result{}, false
	}
	profile := e.Profile(actor.Kind())
	now := e.now()

	//1.- Cooling-down bodies ignore portals entirely.
	if profile.Cooldown > 0 && e.coolingDown(actor.ID(), now, profile.Cooldown) {
		return Result{}, false
	}

	//2.- The first portal the body overlaps is the entry; its partner is the exit.
	bounds := actor.Bounds()
	var entry, exit *Portal
	switch {
	case bounds.Intersects(a.Rect()):
		entry, exit = a, b
	case bounds.Intersects(b.Rect()):
		entry, exit = b, a
	default:
		return Result{}, false
	}

	//3.- Everything is derived from the pre-transfer state before anything is written.
	velocity := actor.Velocity()
	direction := geometry.Sign(r2.Dot(velocity, entry.Orientation.Axis()))
	angleDelta := exit.Angle - entry.Angle
	rotated := geometry.Rotate(velocity, geometry.DegToRad(angleDelta))
	boosted := r2.Scale(e.boost, rotated)

	size := actor.Size()
	center := bounds.Center()
	lateral := r2.Dot(r2.Sub(center, entry.Center()), entry.Orientation.CrossAxis())
	depth := exit.HalfThickness() + profile.ClearanceFor(size, exit.Orientation)
	exitCenter := r2.Add(exit.Center(), r2.Add(
		r2.Scale(direction*depth, exit.Orientation.Axis()),
		r2.Scale(lateral, exit.Orientation.CrossAxis()),
	))
	position := r2.Sub(exitCenter, r2.Scale(0.5, size))

	//4.- Commit position and velocity together.
	from := actor.Position()
	actor.SetPosition(position)
	actor.SetVelocity(boosted)

	e.mu.Lock()
	e.last[actor.ID()] = now
	e.mu.Unlock()

	if profile.Disorientation > 0 {
		if d, ok := actor.(Disorientable); ok {
			d.Disorient(now.Add(profile.Disorientation))
		}
	}

	result := Result{
		ActorID:      actor.ID(),
		Kind:         actor.Kind(),
		Entry:        entry.Channel,
		Exit:         exit.Channel,
		FromPosition: from,
		ToPosition:   position,
		FromVelocity: velocity,
		ToVelocity:   boosted,
		Direction:    direction,
		AngleDelta:   angleDelta,
		At:           now,
	}
	e.logger.Debug("portal transfer",
		logging.String("actor", result.ActorID),
		logging.String("kind", string(result.Kind)),
		logging.String("entry", string(result.Entry)),
		logging.String("exit", string(result.Exit)),
		logging.Float64("angle_delta", angleDelta),
	)
	return result, true
}

// Forget drops cooldown bookkeeping for a body that left the world.
func (e *Engine) Forget(id string) {
	e.mu.Lock()
	delete(e.last, id)
	e.mu.Unlock()
}

// Reset clears all cooldown bookkeeping, as happens on level restart.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.last = make(map[string]time.Time)
	e.mu.Unlock()
}

func (e *Engine) coolingDown(id string, now time.Time, cooldown time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.last[id]
	return ok && now.Sub(last) < cooldown
}
