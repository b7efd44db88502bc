// Package geometry holds the planar primitives shared by the raycaster, the
// portal engine and the entity physics. Vectors are gonum r2.Vec values.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Sign returns +1 for non-negative values and -1 otherwise. Zero maps to +1.
func Sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// DegToRad converts degrees into radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Rotate applies the standard 2D rotation matrix by theta radians about the origin.
func Rotate(v r2.Vec, theta float64) r2.Vec {
	return r2.NewRotation(theta, r2.Vec{}).Rotate(v)
}

// Length returns the Euclidean norm of v.
func Length(v r2.Vec) float64 {
	return r2.Norm(v)
}

// Normalize returns the unit vector for v and false when v has zero length.
func Normalize(v r2.Vec) (r2.Vec, bool) {
	//1.- Reject zero-length input instead of propagating NaN like r2.Unit does.
	if v.X == 0 && v.Y == 0 {
		return r2.Vec{}, false
	}
	return r2.Unit(v), true
}

// ApproxEqual compares two vectors component-wise within tolerance.
func ApproxEqual(a, b r2.Vec, tolerance float64) bool {
	return math.Abs(a.X-b.X) <= tolerance && math.Abs(a.Y-b.Y) <= tolerance
}

// Point is the wire form of a vector. Its JSON keys are lower case so snapshots
// and client commands share one layout.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointOf converts v for serialisation.
func PointOf(v r2.Vec) Point { return Point{X: v.X, Y: v.Y} }

// Vec converts the wire form back into a vector.
func (p Point) Vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }
