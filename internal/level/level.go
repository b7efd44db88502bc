package level

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/geometry"
)

// Obstacle is an immutable, axis-aligned piece of level geometry.
type Obstacle struct {
	Rect          geometry.Rect
	AllowsPortals bool
}

// NewObstacle builds an obstacle from its top-left corner and dimensions.
func NewObstacle(x, y, width, height float64, allowsPortals bool) *Obstacle {
	return &Obstacle{Rect: geometry.NewRect(x, y, width, height), AllowsPortals: allowsPortals}
}

// CrateSpec seeds a physics body at level load.
type CrateSpec struct {
	Position r2.Vec
	Size     r2.Vec
	Type     string
}

// SwitchSpec seeds a pressure plate at level load.
type SwitchSpec struct {
	Position r2.Vec
	Size     r2.Vec
}

// SentrySpec seeds a patrolling agent at level load.
type SentrySpec struct {
	Position r2.Vec
	Patrol   []r2.Vec
}

// Level is the static description of a playable stage.
type Level struct {
	Name        string
	Obstacles   []*Obstacle
	Crates      []CrateSpec
	Switches    []SwitchSpec
	Sentries    []SentrySpec
	PlayerStart r2.Vec
}

var (
	// ErrNoObstacles is returned when a level has nothing to collide with.
	ErrNoObstacles = errors.New("level must declare at least one obstacle")
)

const (
	// DefaultSwitchWidth matches the pressure plate footprint used by the tutorial.
	DefaultSwitchWidth = 40
	// DefaultSwitchHeight matches the pressure plate footprint used by the tutorial.
	DefaultSwitchHeight = 10
)

// Tutorial rebuilds the introductory stage.
func Tutorial() *Level {
	return &Level{
		Name: "tutorial",
		Obstacles: []*Obstacle{
			NewObstacle(0, 500, 1000, 100, true), // ground
			NewObstacle(0, 0, 50, 500, true),
			NewObstacle(950, 0, 50, 500, true),
			NewObstacle(0, 0, 1000, 50, true), // ceiling
			NewObstacle(200, 400, 200, 20, true),
			NewObstacle(600, 300, 200, 20, true),
			NewObstacle(450, 300, 50, 200, false),
		},
		Crates: []CrateSpec{
			{Position: r2.Vec{X: 300, Y: 350}, Size: r2.Vec{X: 40, Y: 40}, Type: "cube"},
		},
		Switches: []SwitchSpec{
			{Position: r2.Vec{X: 700, Y: 290}, Size: r2.Vec{X: DefaultSwitchWidth, Y: DefaultSwitchHeight}},
		},
		Sentries: []SentrySpec{
			{Position: r2.Vec{X: 150, Y: 200}, Patrol: []r2.Vec{{X: 150, Y: 200}, {X: 350, Y: 200}}},
		},
		PlayerStart: r2.Vec{X: 100, Y: 400},
	}
}

// Validate checks the level for structural problems before it is simulated.
func (l *Level) Validate() error {
	if l == nil {
		return errors.New("level is nil")
	}
	if len(l.Obstacles) == 0 {
		return ErrNoObstacles
	}
	var problems []string
	for idx, obstacle := range l.Obstacles {
		if obstacle == nil {
			problems = append(problems, fmt.Sprintf("obstacle %d is nil", idx))
			continue
		}
		if obstacle.Rect.Width() <= 0 || obstacle.Rect.Height() <= 0 {
			problems = append(problems, fmt.Sprintf("obstacle %d must have positive dimensions", idx))
		}
	}
	for idx, crate := range l.Crates {
		if crate.Size.X <= 0 || crate.Size.Y <= 0 {
			problems = append(problems, fmt.Sprintf("crate %d must have positive size", idx))
		}
	}
	for idx, sw := range l.Switches {
		if sw.Size.X <= 0 || sw.Size.Y <= 0 {
			problems = append(problems, fmt.Sprintf("switch %d must have positive size", idx))
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// CanPlacePortal reports whether a portal-friendly obstacle contains the point.
func (l *Level) CanPlacePortal(p r2.Vec) bool {
	if l == nil {
		return false
	}
	for _, obstacle := range l.Obstacles {
		if obstacle != nil && obstacle.AllowsPortals && obstacle.Rect.ContainsPoint(p) {
			return true
		}
	}
	return false
}
