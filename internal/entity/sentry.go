package entity

import (
	"math/rand"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/geometry"
	"portalshift/engine/internal/level"
	"portalshift/engine/internal/physics"
	"portalshift/engine/internal/portal"
)

const (
	// SentrySize is the edge length of the square sentry body.
	SentrySize = 30.0
	// SentrySpeed is the patrol and chase speed.
	SentrySpeed = 100.0
	// SentryDetectionRange is how close the player must be to be chased.
	SentryDetectionRange = 300.0
	// SentryWaypointRadius is how close counts as having reached a patrol point.
	SentryWaypointRadius = 10.0
	// SentryBounce is the speed kept when bumping into geometry.
	SentryBounce = 0.8
	// SentryWanderInterval is how often a disoriented sentry picks a new heading.
	SentryWanderInterval = time.Second
)

// SentryMode is the behaviour a sentry is currently in.
type SentryMode string

const (
	ModePatrol      SentryMode = "patrol"
	ModeChase       SentryMode = "chase"
	ModeDisoriented SentryMode = "disoriented"
)

// Sentry is an autonomous patrol agent. It floats, ignores gravity and loses its
// bearings for a while after passing through a portal.
type Sentry struct {
	body
	patrol           []r2.Vec
	waypoint         int
	mode             SentryMode
	disorientedUntil time.Time
	nextWander       time.Time
	rng              *rand.Rand
}

// NewSentry spawns a sentry whose wandering is driven by a seeded source so runs replay identically.
func NewSentry(id string, spec level.SentrySpec, seed int64) *Sentry {
	patrol := append([]r2.Vec(nil), spec.Patrol...)
	if len(patrol) == 0 {
		patrol = []r2.Vec{spec.Position}
	}
	return &Sentry{
		body:   body{id: id, position: spec.Position, size: r2.Vec{X: SentrySize, Y: SentrySize}},
		patrol: patrol,
		mode:   ModePatrol,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Kind implements portal.Body.
func (s *Sentry) Kind() portal.Kind { return portal.KindSentry }

// Mode returns the current behaviour.
func (s *Sentry) Mode() SentryMode { return s.mode }

// Disorient implements portal.Disorientable.
func (s *Sentry) Disorient(until time.Time) {
	s.mode = ModeDisoriented
	s.disorientedUntil = until
	s.nextWander = time.Time{}
}

// Update runs the behaviour state machine and moves the sentry for one step.
// Patrol points are targets for the sentry's top-left corner.
func (s *Sentry) Update(dt float64, now time.Time, player r2.Vec, obstacles []*level.Obstacle) {
	if dt <= 0 {
		return
	}
	//1.- Disorientation overrides everything until its deadline passes.
	if s.mode == ModeDisoriented && !now.Before(s.disorientedUntil) {
		s.mode = ModePatrol
	}
	if s.mode != ModeDisoriented {
		if r2.Norm(r2.Sub(player, s.position)) < SentryDetectionRange {
			s.mode = ModeChase
		} else {
			s.mode = ModePatrol
		}
	}

	//2.- Pick a velocity for the current behaviour.
	switch s.mode {
	case ModePatrol:
		s.walkPatrol()
	case ModeChase:
		if heading, ok := geometry.Normalize(r2.Sub(player, s.position)); ok {
			s.velocity = r2.Scale(SentrySpeed, heading)
		}
	case ModeDisoriented:
		if !now.Before(s.nextWander) {
			s.velocity = r2.Vec{
				X: (s.rng.Float64()*2 - 1) * SentrySpeed,
				Y: (s.rng.Float64()*2 - 1) * SentrySpeed,
			}
			s.nextWander = now.Add(SentryWanderInterval)
		}
	}

	//3.- Move freely, then shove out of whatever was entered.
	s.position = r2.Add(s.position, r2.Scale(dt, s.velocity))
	s.position, s.velocity = physics.PushOut(s.position, s.size, s.velocity, SentryBounce, obstacles)
}

func (s *Sentry) walkPatrol() {
	target := s.patrol[s.waypoint]
	offset := r2.Sub(target, s.position)
	if r2.Norm(offset) < SentryWaypointRadius {
		s.waypoint = (s.waypoint + 1) % len(s.patrol)
		return
	}
	if heading, ok := geometry.Normalize(offset); ok {
		s.velocity = r2.Scale(SentrySpeed, heading)
	}
}

// State returns the serialisable view of the sentry.
func (s *Sentry) State() State {
	st := s.state(portal.KindSentry)
	st.Mode = string(s.mode)
	return st
}
