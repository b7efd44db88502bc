package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	box r2.Box
}

// NewRect builds a rectangle from its top-left corner and dimensions.
func NewRect(x, y, width, height float64) Rect {
	//1.- Normalise through r2.NewBox so negative sizes still yield a well formed box.
	return Rect{box: r2.NewBox(x, y, x+width, y+height)}
}

// RectAt builds a rectangle from a top-left position and a size vector.
func RectAt(pos, size r2.Vec) Rect {
	return NewRect(pos.X, pos.Y, size.X, size.Y)
}

// Box exposes the underlying gonum bounding box.
func (r Rect) Box() r2.Box { return r.box }

// Min returns the top-left corner.
func (r Rect) Min() r2.Vec { return r.box.Min }

// Size returns the width and height as a vector.
func (r Rect) Size() r2.Vec { return r.box.Size() }

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.box.Max.X - r.box.Min.X }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.box.Max.Y - r.box.Min.Y }

// Left returns the x coordinate of the left edge.
func (r Rect) Left() float64 { return r.box.Min.X }

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.box.Max.X }

// Top returns the y coordinate of the top edge.
func (r Rect) Top() float64 { return r.box.Min.Y }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.box.Max.Y }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() r2.Vec { return r.box.Center() }

// Translate returns the rectangle shifted by delta.
func (r Rect) Translate(delta r2.Vec) Rect { return Rect{box: r.box.Add(delta)} }

// ContainsPoint reports whether p lies on or inside the rectangle.
func (r Rect) ContainsPoint(p r2.Vec) bool {
	//1.- Degenerate rectangles never contain anything, unlike r2.Box.Contains.
	if r.box.Empty() {
		return false
	}
	return r.box.Contains(p)
}

// Intersects reports a strict overlap; rectangles sharing only an edge do not intersect.
func (r Rect) Intersects(other Rect) bool {
	if r.box.Empty() || other.box.Empty() {
		return false
	}
	return r.box.Min.X < other.box.Max.X && other.box.Min.X < r.box.Max.X &&
		r.box.Min.Y < other.box.Max.Y && other.box.Min.Y < r.box.Max.Y
}

// Overlap returns the penetration depth along each axis, zero when disjoint.
func (r Rect) Overlap(other Rect) r2.Vec {
	if !r.Intersects(other) {
		return r2.Vec{}
	}
	//1.- Depth is the smaller of the two possible push distances on each axis.
	dx := math.Min(r.box.Max.X-other.box.Min.X, other.box.Max.X-r.box.Min.X)
	dy := math.Min(r.box.Max.Y-other.box.Min.Y, other.box.Max.Y-r.box.Min.Y)
	return r2.Vec{X: dx, Y: dy}
}
