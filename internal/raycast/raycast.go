// Package raycast marches a probe from an origin toward a target through a set
// of axis-aligned obstacles and reports the first surface struck.
package raycast

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/geometry"
	"portalshift/engine/internal/level"
)

const (
	// DefaultStep is the distance advanced by the probe on each iteration.
	DefaultStep = 5.0
	// DefaultMaxDistance bounds how far a ray travels before giving up.
	DefaultMaxDistance = 1000.0
)

// Outward unit normals for the four obstacle faces.
var (
	NormalLeft   = r2.Vec{X: -1, Y: 0}
	NormalRight  = r2.Vec{X: 1, Y: 0}
	NormalTop    = r2.Vec{X: 0, Y: -1}
	NormalBottom = r2.Vec{X: 0, Y: 1}
)

// Hit describes the first obstacle surface a ray struck.
type Hit struct {
	Point    r2.Vec
	Normal   r2.Vec
	Obstacle *level.Obstacle
}

// Caster performs stepped ray marching. The zero value is not usable; use New or Default.
type Caster struct {
	Step        float64
	MaxDistance float64
}

// New returns a caster with the provided tunables, substituting defaults for non-positive values.
func New(step, maxDistance float64) *Caster {
	if !(step > 0) {
		step = DefaultStep
	}
	if !(maxDistance > 0) {
		maxDistance = DefaultMaxDistance
	}
	return &Caster{Step: step, MaxDistance: maxDistance}
}

// Default returns a caster using the reference step and range.
func Default() *Caster {
	return New(DefaultStep, DefaultMaxDistance)
}

// Cast marches from origin toward target using the default caster.
func Cast(origin, target r2.Vec, obstacles []*level.Obstacle) (Hit, bool) {
	return Default().Cast(origin, target, obstacles)
}

// Cast marches from origin toward target and returns the first obstacle containing a probe.
// Eligibility for portals is not considered here; the caller filters the result.
func (c *Caster) Cast(origin, target r2.Vec, obstacles []*level.Obstacle) (Hit, bool) {
	if c == nil {
		c = Default()
	}
	//1.- Reject degenerate aims instead of normalising a zero-length direction.
	direction, ok := geometry.Normalize(r2.Sub(target, origin))
	if !ok || len(obstacles) == 0 {
		return Hit{}, false
	}
	step := c.Step
	if !(step > 0) {
		step = DefaultStep
	}
	maxDistance := c.MaxDistance
	if !(maxDistance > 0) {
		maxDistance = DefaultMaxDistance
	}

	//2.- Advance the probe in fixed increments; the first containing obstacle is the nearest.
	steps := int(maxDistance / step)
	delta := r2.Scale(step, direction)
	probe := origin
	for i := 0; i < steps; i++ {
		probe = r2.Add(probe, delta)
		for _, obstacle := range obstacles {
			if obstacle == nil || !obstacle.Rect.ContainsPoint(probe) {
				continue
			}
			//3.- Derive the face from the probe's closest edge and stop immediately.
			return Hit{Point: probe, Normal: SurfaceNormal(probe, obstacle.Rect), Obstacle: obstacle}, true
		}
	}
	return Hit{}, false
}

// SurfaceNormal picks the outward normal of the edge nearest to p.
// Ties resolve in the fixed order left, right, top, bottom.
func SurfaceNormal(p r2.Vec, rect geometry.Rect) r2.Vec {
	candidates := [...]struct {
		distance float64
		normal   r2.Vec
	}{
		{distance: math.Abs(p.X - rect.Left()), normal: NormalLeft},
		{distance: math.Abs(p.X - rect.Right()), normal: NormalRight},
		{distance: math.Abs(p.Y - rect.Top()), normal: NormalTop},
		{distance: math.Abs(p.Y - rect.Bottom()), normal: NormalBottom},
	}
	best := candidates[0]
	for _, candidate := range candidates[1:] {
		//1.- Strictly smaller only, so earlier edges win ties.
		if candidate.distance < best.distance {
			best = candidate
		}
	}
	return best.normal
}
