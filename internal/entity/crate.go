package entity

import (
	"portalshift/engine/internal/level"
	"portalshift/engine/internal/physics"
	"portalshift/engine/internal/portal"
)

const (
	// CrateGravity is the downward acceleration applied to crates.
	CrateGravity = 1000.0
	// CrateFriction is the fraction of horizontal speed lost per second on the ground.
	CrateFriction = 0.8
	// CrateRestitution is the share of speed kept when bouncing off walls and ceilings.
	CrateRestitution = 0.3
	// CrateTerminalSpeed caps crate speed so repeated boosts cannot tunnel through floors.
	CrateTerminalSpeed = 2000.0
)

// Crate materials.
const (
	CrateCube      = "cube"
	CrateMetalCube = "metal_cube"
)

// Crate is a passive physics body that can be carried through portals.
type Crate struct {
	body
	material string
	onGround bool
}

// NewCrate spawns a crate from its level description.
func NewCrate(id string, spec level.CrateSpec) *Crate {
	material := spec.Type
	if material == "" {
		material = CrateCube
	}
	return &Crate{
		body:     body{id: id, position: spec.Position, size: spec.Size},
		material: material,
	}
}

// Kind implements portal.Body.
func (c *Crate) Kind() portal.Kind { return portal.KindCrate }

// Material returns the crate type.
func (c *Crate) Material() string { return c.material }

// OnGround reports whether the last update ended resting on an obstacle.
func (c *Crate) OnGround() bool { return c.onGround }

// Update applies gravity, ground friction and bouncing collisions for one step.
func (c *Crate) Update(dt float64, obstacles []*level.Obstacle) {
	if dt <= 0 {
		return
	}
	c.velocity = physics.ApplyGravity(c.velocity, CrateGravity, dt)
	if c.onGround {
		c.velocity.X *= 1 - CrateFriction*dt
	}
	c.velocity = physics.ClampMagnitude(c.velocity, CrateTerminalSpeed)

	//1.- Side hits bounce back with reduced speed.
	var touched bool
	c.position = physics.Advance(c.position, c.velocity, physics.AxisX, dt)
	c.position, touched = physics.ResolveAxis(c.position, c.size, c.velocity.X, physics.AxisX, obstacles)
	if touched {
		c.velocity.X = -c.velocity.X * CrateRestitution
	}

	//2.- Landing stops the fall; ceilings bounce.
	falling := c.velocity.Y > 0
	c.position = physics.Advance(c.position, c.velocity, physics.AxisY, dt)
	c.position, touched = physics.ResolveAxis(c.position, c.size, c.velocity.Y, physics.AxisY, obstacles)
	c.onGround = false
	switch {
	case touched && falling:
		c.onGround = true
		c.velocity.Y = 0
	case touched && c.velocity.Y < 0:
		c.velocity.Y = -c.velocity.Y * CrateRestitution
	}
}

// State returns the serialisable view of the crate.
func (c *Crate) State() State {
	s := c.state(portal.KindCrate)
	s.Mode = c.material
	s.OnGround = c.onGround
	return s
}
