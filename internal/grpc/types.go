// Package grpc serves the spectator stream and health checks over gRPC. The
// service is described by hand over google.protobuf.Struct messages, so no
// generated stubs are needed.
package grpc

import (
	"context"

	"portalshift/engine/internal/state"
)

// DiffSource exposes subscription semantics for authoritative diff fan-out.
type DiffSource interface {
	SubscribeDiffs(ctx context.Context) (<-chan state.TickDiff, func(), error)
}

// CommandSink ingests raw JSON commands on behalf of a client. OpenCommands
// holds the client's rate and sequence state until the returned release runs.
type CommandSink interface {
	SubmitCommand(clientID string, raw []byte) error
	OpenCommands(clientID string) (release func())
}

// Bridge aggregates the dependencies required by the spectator service.
type Bridge interface {
	DiffSource
	CommandSink
}

// Frame is one message of the WatchFrames stream.
type Frame struct {
	Tick     uint64         `json:"tick"`
	Snapshot state.Snapshot `json:"snapshot"`
	Events   []state.Event  `json:"events,omitempty"`
}

// Ack summarises a SubmitCommands stream once the client closes it.
type Ack struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}
