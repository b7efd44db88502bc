// Package portal places paired portals on level surfaces and transfers bodies
// between them while preserving their motion relative to the portal rotation.
package portal

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/geometry"
)

// Channel names one of the two portal slots of a pair.
type Channel string

const (
	ChannelA Channel = "A"
	ChannelB Channel = "B"
)

// Valid reports whether the channel is one of the two known slots.
func (c Channel) Valid() bool {
	return c == ChannelA || c == ChannelB
}

// Other returns the paired channel.
func (c Channel) Other() Channel {
	if c == ChannelA {
		return ChannelB
	}
	return ChannelA
}

// Color returns the presentation colour conventionally used for the channel.
func (c Channel) Color() string {
	if c == ChannelA {
		return "blue"
	}
	return "orange"
}

// ParseChannel accepts channel names as well as their colour aliases.
func ParseChannel(raw string) (Channel, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "A", "BLUE":
		return ChannelA, nil
	case "B", "ORANGE":
		return ChannelB, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownChannel, raw)
	}
}

// Orientation describes which way a portal's long side runs.
type Orientation string

const (
	Vertical   Orientation = "vertical"
	Horizontal Orientation = "horizontal"
)

// Fixed portal dimensions. A vertical portal is thin along X; a horizontal one along Y.
const (
	Thickness = 20.0
	Span      = 80.0
)

// Dimensions returns the width and height for the orientation.
func (o Orientation) Dimensions() (width, height float64) {
	if o == Vertical {
		return Thickness, Span
	}
	return Span, Thickness
}

// Angle returns the rotation angle in degrees used for relative velocity transforms.
func (o Orientation) Angle() float64 {
	if o == Vertical {
		return 90
	}
	return 0
}

// Axis returns the unit vector perpendicular to the portal face.
func (o Orientation) Axis() r2.Vec {
	if o == Vertical {
		return r2.Vec{X: 1}
	}
	return r2.Vec{Y: 1}
}

// CrossAxis returns the unit vector along the portal face.
func (o Orientation) CrossAxis() r2.Vec {
	if o == Vertical {
		return r2.Vec{Y: 1}
	}
	return r2.Vec{X: 1}
}

// Portal is a live opening placed on a surface.
type Portal struct {
	Channel     Channel
	Orientation Orientation
	Position    r2.Vec
	Width       float64
	Height      float64
	Angle       float64
	// Phase drives viewer-side shimmer animation; the engine never reads it.
	Phase float64
}

// New builds a portal of the given orientation anchored at its top-left corner.
func New(channel Channel, orientation Orientation, position r2.Vec) Portal {
	width, height := orientation.Dimensions()
	return Portal{
		Channel:     channel,
		Orientation: orientation,
		Position:    position,
		Width:       width,
		Height:      height,
		Angle:       orientation.Angle(),
	}
}

// Rect returns the portal's bounding rectangle.
func (p Portal) Rect() geometry.Rect {
	return geometry.NewRect(p.Position.X, p.Position.Y, p.Width, p.Height)
}

// Center returns the midpoint of the portal rectangle.
func (p Portal) Center() r2.Vec {
	return p.Rect().Center()
}

// HalfThickness returns half of the portal's extent along its own axis.
func (p Portal) HalfThickness() float64 {
	if p.Orientation == Vertical {
		return p.Width / 2
	}
	return p.Height / 2
}

// Advance moves the cosmetic animation phase forward.
func (p *Portal) Advance(dt float64) {
	if p == nil || dt <= 0 {
		return
	}
	p.Phase += dt
}
