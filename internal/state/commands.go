package state

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r2"

	"portalshift/engine/internal/entity"
	"portalshift/engine/internal/portal"
)

// CommandType selects what a queued command does when the tick drains it.
type CommandType string

const (
	// CommandAim fires a portal from the player toward Target.
	CommandAim CommandType = "aim"
	// CommandMove replaces the player's held movement input.
	CommandMove CommandType = "move"
	// CommandReset restarts the level.
	CommandReset CommandType = "reset"
)

// Command is a player action waiting for the next tick.
type Command struct {
	Type    CommandType
	Source  string
	Channel portal.Channel
	Target  r2.Vec
	Intent  entity.Intent
}

// CommandQueue collects commands from network readers between ticks.
type CommandQueue struct {
	mu      sync.Mutex
	pending []Command
	limit   int
	dropped uint64
}

// DefaultCommandQueueLimit bounds how many commands may wait for a single tick.
const DefaultCommandQueueLimit = 1024

// NewCommandQueue builds a queue that drops commands beyond limit until drained.
func NewCommandQueue(limit int) *CommandQueue {
	if limit <= 0 {
		limit = DefaultCommandQueueLimit
	}
	return &CommandQueue{limit: limit}
}

// Push appends a command and reports whether it was accepted.
func (q *CommandQueue) Push(cmd Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) >= q.limit {
		q.dropped++
		return false
	}
	q.pending = append(q.pending, cmd)
	return true
}

// Drain removes and returns all pending commands in arrival order.
func (q *CommandQueue) Drain() []Command {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()
	return pending
}

// Dropped reports how many commands were refused because the queue was full.
func (q *CommandQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
