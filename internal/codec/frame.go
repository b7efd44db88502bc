// Package codec maps world snapshots onto google.protobuf.Struct messages for
// replay frames and gRPC streams.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"portalshift/engine/internal/state"
)

// ErrFrameTooLarge reports a snapshot whose encoding exceeds the encoder budget.
var ErrFrameTooLarge = errors.New("encoded frame exceeds budget")

// Encoder turns snapshots into google.protobuf.Struct frames.
type Encoder struct {
	maxBytes int
	options  proto.MarshalOptions
}

// NewEncoder constructs an encoder. A non-positive maxBytes disables the budget.
func NewEncoder(maxBytes int) *Encoder {
	return &Encoder{
		maxBytes: maxBytes,
		options:  proto.MarshalOptions{Deterministic: true},
	}
}

// Encode marshals the snapshot. Identical snapshots always yield identical bytes.
func (e *Encoder) Encode(snapshot state.Snapshot) ([]byte, error) {
	if e == nil {
		e = NewEncoder(0)
	}
	//1.- Route through JSON so the frame keys match the websocket field names.
	message, err := StructOf(snapshot)
	if err != nil {
		return nil, err
	}
	payload, err := e.options.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	//2.- Enforce the budget after encoding since struct sizes are data dependent.
	if e.maxBytes > 0 && len(payload) > e.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, len(payload), e.maxBytes)
	}
	return payload, nil
}

// EncodeFrame marshals a snapshot without a size budget.
func EncodeFrame(snapshot state.Snapshot) ([]byte, error) {
	return NewEncoder(0).Encode(snapshot)
}

// DecodeFrame restores a snapshot previously produced by EncodeFrame.
func DecodeFrame(payload []byte) (state.Snapshot, error) {
	var message structpb.Struct
	if err := proto.Unmarshal(payload, &message); err != nil {
		return state.Snapshot{}, fmt.Errorf("unmarshal frame: %w", err)
	}
	var snapshot state.Snapshot
	if err := DecodeStruct(&message, &snapshot); err != nil {
		return state.Snapshot{}, err
	}
	return snapshot, nil
}

// StructOf converts any JSON-encodable value into a google.protobuf.Struct,
// keeping the value's JSON field names.
func StructOf(value interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("flatten value: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("flatten value: %w", err)
	}
	message, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	return message, nil
}

// DecodeStruct fills dst, a pointer to a JSON-decodable value, from message.
func DecodeStruct(message *structpb.Struct, dst interface{}) error {
	data, err := json.Marshal(message.AsMap())
	if err != nil {
		return fmt.Errorf("flatten struct: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return nil
}
