// Package entity holds the simulated actors of a level: the player, crates,
// patrolling sentries and pressure switches. Every movable actor satisfies
// portal.Body.
package entity

import (
	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/geometry"
	"portalshift/engine/internal/portal"
)

// body carries the kinematic state shared by every movable actor.
type body struct {
	id       string
	position r2.Vec
	size     r2.Vec
	velocity r2.Vec
}

func (b *body) ID() string            { return b.id }
func (b *body) Position() r2.Vec      { return b.position }
func (b *body) SetPosition(p r2.Vec)  { b.position = p }
func (b *body) Size() r2.Vec          { return b.size }
func (b *body) Velocity() r2.Vec      { return b.velocity }
func (b *body) SetVelocity(v r2.Vec)  { b.velocity = v }
func (b *body) Bounds() geometry.Rect { return geometry.RectAt(b.position, b.size) }
func (b *body) Center() r2.Vec        { return b.Bounds().Center() }

// State is the serialisable view of a movable actor.
type State struct {
	ID       string         `json:"id"`
	Kind     portal.Kind    `json:"kind"`
	Position geometry.Point `json:"position"`
	Size     geometry.Point `json:"size"`
	Velocity geometry.Point `json:"velocity"`
	// Mode carries the sentry behaviour or crate material.
	Mode     string `json:"mode,omitempty"`
	OnGround bool   `json:"on_ground,omitempty"`
}

func (b *body) state(kind portal.Kind) State {
	return State{
		ID:       b.id,
		Kind:     kind,
		Position: geometry.PointOf(b.position),
		Size:     geometry.PointOf(b.size),
		Velocity: geometry.PointOf(b.velocity),
	}
}
