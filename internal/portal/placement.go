package portal

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/raycast"
)

var (
	// ErrNoSurface is returned when an aim did not strike any obstacle.
	ErrNoSurface = errors.New("no surface under aim")
	// ErrSurfaceRejectsPortals is returned when the struck obstacle forbids portals.
	ErrSurfaceRejectsPortals = errors.New("surface does not accept portals")
	// ErrUnknownChannel is returned for channels other than A and B.
	ErrUnknownChannel = errors.New("unknown portal channel")
)

// OrientationFor maps an outward surface normal onto a portal orientation.
// A normal dominated by X means a side wall, so the portal stands vertical.
func OrientationFor(normal r2.Vec) Orientation {
	if math.Abs(normal.X) > math.Abs(normal.Y) {
		return Vertical
	}
	return Horizontal
}

// Place builds a portal embedded at a raycast hit. Rejections are reported as errors
// and leave no side effects.
func Place(channel Channel, hit raycast.Hit) (Portal, error) {
	if !channel.Valid() {
		return Portal{}, ErrUnknownChannel
	}
	if hit.Obstacle == nil {
		return Portal{}, ErrNoSurface
	}
	if !hit.Obstacle.AllowsPortals {
		return Portal{}, ErrSurfaceRejectsPortals
	}

	orientation := OrientationFor(hit.Normal)
	portal := New(channel, orientation, hit.Point)

	//1.- The thin side straddles the hit on the wall's axis. The rectangle is symmetric
	// about the hit, so left- and right-facing walls (or floors and ceilings) share an offset.
	//2.- The long side is centred on the hit along the wall.
	portal.Position = r2.Sub(hit.Point, r2.Vec{X: portal.Width / 2, Y: portal.Height / 2})
	return portal, nil
}
