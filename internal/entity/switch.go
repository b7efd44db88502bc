package entity

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/geometry"
	"portalshift/engine/internal/level"
)

// SwitchRampRate is how quickly the visual activation level moves per second.
const SwitchRampRate = 2.0

// Switch is a pressure plate pressed by any crate resting on it.
type Switch struct {
	id         string
	rect       geometry.Rect
	active     bool
	activation float64
}

// SwitchState is the serialisable view of a switch.
type SwitchState struct {
	ID         string         `json:"id"`
	Position   geometry.Point `json:"position"`
	Size       geometry.Point `json:"size"`
	Active     bool           `json:"active"`
	Activation float64        `json:"activation"`
}

// NewSwitch builds a plate from its level description.
func NewSwitch(id string, spec level.SwitchSpec) *Switch {
	size := spec.Size
	if size.X <= 0 || size.Y <= 0 {
		size = r2.Vec{X: level.DefaultSwitchWidth, Y: level.DefaultSwitchHeight}
	}
	return &Switch{id: id, rect: geometry.RectAt(spec.Position, size)}
}

// ID returns the switch identifier.
func (s *Switch) ID() string { return s.id }

// Active reports whether a crate is currently on the plate.
func (s *Switch) Active() bool { return s.active }

// Activation returns the ramped 0..1 activation level.
func (s *Switch) Activation() float64 { return s.activation }

// Update re-evaluates the plate against the crates and reports whether it toggled.
func (s *Switch) Update(dt float64, crates []*Crate) bool {
	was := s.active
	s.active = false
	for _, crate := range crates {
		if crate != nil && s.rect.Intersects(crate.Bounds()) {
			s.active = true
			break
		}
	}
	if dt > 0 {
		if s.active {
			s.activation = math.Min(1, s.activation+dt*SwitchRampRate)
		} else {
			s.activation = math.Max(0, s.activation-dt*SwitchRampRate)
		}
	}
	return was != s.active
}

// State returns the serialisable view of the switch.
func (s *Switch) State() SwitchState {
	return SwitchState{ID: s.id, Position: geometry.PointOf(s.rect.Min()), Size: geometry.PointOf(s.rect.Size()), Active: s.active, Activation: s.activation}
}
