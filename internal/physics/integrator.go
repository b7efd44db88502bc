// Package physics integrates planar bodies and resolves their contacts with
// static level geometry.
package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/geometry"
	"portalshift/engine/internal/level"
)

// Axis selects which component a sweep resolves.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

// ClampMagnitude scales v down so its length does not exceed limit.
// A non-positive limit disables the guard.
func ClampMagnitude(v r2.Vec, limit float64) r2.Vec {
	if !(limit > 0) {
		return v
	}
	magnitudeSq := v.X*v.X + v.Y*v.Y
	if magnitudeSq == 0 || magnitudeSq <= limit*limit {
		return v
	}
	//1.- Scale both axes uniformly so the resulting magnitude matches the limit.
	return r2.Scale(limit/math.Sqrt(magnitudeSq), v)
}

// ApplyGravity accelerates the vertical velocity component over dt.
func ApplyGravity(velocity r2.Vec, gravity, dt float64) r2.Vec {
	if dt <= 0 {
		return velocity
	}
	velocity.Y += gravity * dt
	return velocity
}

// Advance moves a single axis of position by velocity over dt.
func Advance(position, velocity r2.Vec, axis Axis, dt float64) r2.Vec {
	if dt <= 0 {
		return position
	}
	switch axis {
	case AxisX:
		position.X += velocity.X * dt
	case AxisY:
		position.Y += velocity.Y * dt
	}
	return position
}

// ResolveAxis snaps a body out of every obstacle it overlaps along one axis. The side
// it is pushed to follows the sign of speed; zero speed leaves the position alone.
// It reports whether any obstacle was touched.
func ResolveAxis(position, size r2.Vec, speed float64, axis Axis, obstacles []*level.Obstacle) (r2.Vec, bool) {
	touched := false
	for _, obstacle := range obstacles {
		if obstacle == nil {
			continue
		}
		//1.- Rebuild the bounds each time since an earlier snap may have cleared later overlaps.
		if !geometry.RectAt(position, size).Intersects(obstacle.Rect) {
			continue
		}
		touched = true
		switch {
		case axis == AxisX && speed > 0:
			position.X = obstacle.Rect.Left() - size.X
		case axis == AxisX && speed < 0:
			position.X = obstacle.Rect.Right()
		case axis == AxisY && speed > 0:
			position.Y = obstacle.Rect.Top() - size.Y
		case axis == AxisY && speed < 0:
			position.Y = obstacle.Rect.Bottom()
		}
	}
	return position, touched
}

// PushOut separates a body from overlapping obstacles along the axis of least
// penetration and reflects that velocity component scaled by bounce.
func PushOut(position, size, velocity r2.Vec, bounce float64, obstacles []*level.Obstacle) (r2.Vec, r2.Vec) {
	for _, obstacle := range obstacles {
		if obstacle == nil {
			continue
		}
		bounds := geometry.RectAt(position, size)
		depth := bounds.Overlap(obstacle.Rect)
		if depth.X == 0 && depth.Y == 0 {
			continue
		}
		center, other := bounds.Center(), obstacle.Rect.Center()
		if depth.X < depth.Y {
			if center.X < other.X {
				position.X -= depth.X
			} else {
				position.X += depth.X
			}
			velocity.X = -velocity.X * bounce
		} else {
			if center.Y < other.Y {
				position.Y -= depth.Y
			} else {
				position.Y += depth.Y
			}
			velocity.Y = -velocity.Y * bounce
		}
	}
	return position, velocity
}
