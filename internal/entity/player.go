package entity

import (
	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/level"
	"portalshift/engine/internal/physics"
	"portalshift/engine/internal/portal"
)

const (
	// PlayerID is the identifier of the single player body in a world.
	PlayerID = "player"
	// PlayerWidth and PlayerHeight describe the player hitbox.
	PlayerWidth  = 32.0
	PlayerHeight = 64.0
	// PlayerSpeed is the horizontal walking speed.
	PlayerSpeed = 300.0
	// PlayerJump is the initial upward speed of a jump.
	PlayerJump = 600.0
	// PlayerGravity is the downward acceleration applied to the player.
	PlayerGravity = 1500.0
)

// Intent is the movement input currently held by the controlling client.
type Intent struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
	Jump  bool `json:"jump"`
}

// Player is the controllable body.
type Player struct {
	body
	intent      Intent
	onGround    bool
	facingRight bool
}

// NewPlayer spawns the player at start with no velocity.
func NewPlayer(start r2.Vec) *Player {
	return &Player{
		body:        body{id: PlayerID, position: start, size: r2.Vec{X: PlayerWidth, Y: PlayerHeight}},
		facingRight: true,
	}
}

// Kind implements portal.Body.
func (p *Player) Kind() portal.Kind { return portal.KindPlayer }

// SetIntent replaces the held movement input.
func (p *Player) SetIntent(intent Intent) { p.intent = intent }

// Intent returns the held movement input.
func (p *Player) Intent() Intent { return p.intent }

// OnGround reports whether the last update ended standing on an obstacle.
func (p *Player) OnGround() bool { return p.onGround }

// FacingRight reports the last horizontal direction walked.
func (p *Player) FacingRight() bool { return p.facingRight }

// Reset returns the player to start at rest.
func (p *Player) Reset(start r2.Vec) {
	p.position = start
	p.velocity = r2.Vec{}
	p.onGround = false
	p.intent = Intent{}
}

// Update applies input, gravity and collisions for one step of dt seconds.
func (p *Player) Update(dt float64, obstacles []*level.Obstacle) {
	if dt <= 0 {
		return
	}
	//1.- Walking speed is set directly from input; right wins when both are held.
	p.velocity.X = 0
	if p.intent.Left {
		p.velocity.X = -PlayerSpeed
		p.facingRight = false
	}
	if p.intent.Right {
		p.velocity.X = PlayerSpeed
		p.facingRight = true
	}
	if p.intent.Jump && p.onGround {
		p.velocity.Y = -PlayerJump
		p.onGround = false
	}
	p.velocity = physics.ApplyGravity(p.velocity, PlayerGravity, dt)

	//2.- Resolve each axis separately so corners do not snag.
	var touched bool
	p.position = physics.Advance(p.position, p.velocity, physics.AxisX, dt)
	p.position, touched = physics.ResolveAxis(p.position, p.size, p.velocity.X, physics.AxisX, obstacles)
	if touched {
		p.velocity.X = 0
	}

	p.position = physics.Advance(p.position, p.velocity, physics.AxisY, dt)
	p.position, touched = physics.ResolveAxis(p.position, p.size, p.velocity.Y, physics.AxisY, obstacles)
	p.onGround = touched && p.velocity.Y > 0
	if touched && p.velocity.Y != 0 {
		p.velocity.Y = 0
	}
}

// State returns the serialisable view of the player.
func (p *Player) State() State {
	s := p.state(portal.KindPlayer)
	s.OnGround = p.onGround
	return s
}
