package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"portalshift/engine/internal/entity"
	"portalshift/engine/internal/geometry"
	"portalshift/engine/internal/portal"
)

var (
	errCommandEmptyPayload = errors.New("empty command payload")
	errCommandTarget       = errors.New("aim command requires a finite target")
	// ErrCommandSequence reports a command whose sequence id did not increase.
	ErrCommandSequence = errors.New("command sequence out of order")
)

// WireCommand mirrors the JSON layout clients send over websocket and gRPC.
type WireCommand struct {
	Type     string          `json:"type"`
	Sequence uint64          `json:"seq,omitempty"`
	Channel  string          `json:"channel,omitempty"`
	Target   *geometry.Point `json:"target,omitempty"`
	Left     bool            `json:"left,omitempty"`
	Right    bool            `json:"right,omitempty"`
	Jump     bool            `json:"jump,omitempty"`
}

// DecodeCommand parses and validates a client frame. source is stamped on the
// resulting command so events can be attributed.
func DecodeCommand(raw []byte, source string) (Command, uint64, error) {
	if len(raw) == 0 {
		return Command{}, 0, errCommandEmptyPayload
	}
	var wire WireCommand
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Command{}, 0, fmt.Errorf("decode command: %w", err)
	}
	cmd, err := wire.Command(source)
	return cmd, wire.Sequence, err
}

// Command converts the wire form into a queued command.
func (w WireCommand) Command(source string) (Command, error) {
	cmd := Command{Type: CommandType(strings.ToLower(strings.TrimSpace(w.Type))), Source: source}
	switch cmd.Type {
	case CommandAim:
		channel, err := portal.ParseChannel(w.Channel)
		if err != nil {
			return Command{}, err
		}
		if w.Target == nil || !finite(w.Target.X) || !finite(w.Target.Y) {
			return Command{}, errCommandTarget
		}
		cmd.Channel = channel
		cmd.Target = w.Target.Vec()
	case CommandMove:
		cmd.Intent = entity.Intent{Left: w.Left, Right: w.Right, Jump: w.Jump}
	case CommandReset:
	default:
		return Command{}, fmt.Errorf("unknown command type %q", w.Type)
	}
	return cmd, nil
}

// SequenceTracker enforces strictly increasing sequence ids per client. A zero
// sequence opts out of ordering.
type SequenceTracker struct {
	last map[string]uint64
}

// NewSequenceTracker constructs an empty tracker. It is not safe for concurrent use.
func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{last: make(map[string]uint64)}
}

// Observe records seq for client or returns ErrCommandSequence.
func (t *SequenceTracker) Observe(client string, seq uint64) error {
	if t == nil || seq == 0 {
		return nil
	}
	last := t.last[client]
	if seq <= last {
		return fmt.Errorf("%w: got %d, last %d", ErrCommandSequence, seq, last)
	}
	t.last[client] = seq
	return nil
}

// Forget drops the history for a disconnected client.
func (t *SequenceTracker) Forget(client string) {
	if t != nil {
		delete(t.last, client)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
