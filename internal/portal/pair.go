package portal

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/level"
	"portalshift/engine/internal/raycast"
)

// Pair owns the two channel slots. Placement takes the write lock and transfer
// checks hold the read lock for their whole duration.
type Pair struct {
	mu sync.RWMutex
	a  *Portal
	b  *Portal
}

// NewPair returns an empty pair; it is unusable until both channels hold a portal.
func NewPair() *Pair {
	return &Pair{}
}

// Place builds a portal from the hit and replaces whatever occupied the channel.
// Rejections leave the slot untouched.
func (p *Pair) Place(channel Channel, hit raycast.Hit) (Portal, error) {
	placed, err := Place(channel, hit)
	if err != nil {
		return Portal{}, err
	}
	p.mu.Lock()
	//1.- Swap in a private copy so callers cannot mutate the live slot.
	stored := placed
	if channel == ChannelA {
		p.a = &stored
	} else {
		p.b = &stored
	}
	p.mu.Unlock()
	return placed, nil
}

// Aim casts from origin toward target and places a portal on the surface struck.
func (p *Pair) Aim(channel Channel, caster *raycast.Caster, origin, target r2.Vec, obstacles []*level.Obstacle) (Portal, raycast.Hit, error) {
	if !channel.Valid() {
		return Portal{}, raycast.Hit{}, ErrUnknownChannel
	}
	hit, ok := caster.Cast(origin, target, obstacles)
	if !ok {
		return Portal{}, raycast.Hit{}, ErrNoSurface
	}
	placed, err := p.Place(channel, hit)
	return placed, hit, err
}

// Get returns a copy of the portal in the channel, if any.
func (p *Pair) Get(channel Channel) (Portal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	slot := p.slot(channel)
	if slot == nil {
		return Portal{}, false
	}
	return *slot, true
}

// Usable reports whether both channels hold a live portal.
func (p *Pair) Usable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.a != nil && p.b != nil
}

// Snapshot returns copies of the live portals ordered A then B.
func (p *Pair) Snapshot() []Portal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Portal, 0, 2)
	if p.a != nil {
		out = append(out, *p.a)
	}
	if p.b != nil {
		out = append(out, *p.b)
	}
	return out
}

// Clear removes both portals, as happens when a level unloads.
func (p *Pair) Clear() {
	p.mu.Lock()
	p.a = nil
	p.b = nil
	p.mu.Unlock()
}

// Advance steps the cosmetic animation of both portals.
func (p *Pair) Advance(dt float64) {
	p.mu.Lock()
	p.a.Advance(dt)
	p.b.Advance(dt)
	p.mu.Unlock()
}

// view runs fn with both slots while holding the read lock.
func (p *Pair) view(fn func(a, b *Portal) bool) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fn(p.a, p.b)
}

func (p *Pair) slot(channel Channel) *Portal {
	switch channel {
	case ChannelA:
		return p.a
	case ChannelB:
		return p.b
	default:
		return nil
	}
}
