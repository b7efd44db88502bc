package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"portalshift/engine/internal/codec"
	"portalshift/engine/internal/state"
)

// Client calls the spectator service over an existing connection.
type Client struct {
	conn gogrpc.ClientConnInterface
}

// NewClient wraps conn.
func NewClient(conn gogrpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// FrameStream receives frames from WatchFrames.
type FrameStream struct {
	stream gogrpc.ClientStream
}

// Watch opens a WatchFrames stream.
func (c *Client) Watch(ctx context.Context) (*FrameStream, error) {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], methodName("WatchFrames"))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&structpb.Struct{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &FrameStream{stream: stream}, nil
}

// Recv blocks for the next frame. It returns io.EOF once the server finishes.
func (s *FrameStream) Recv() (Frame, error) {
	message := new(structpb.Struct)
	if err := s.stream.RecvMsg(message); err != nil {
		return Frame{}, err
	}
	var frame Frame
	if err := codec.DecodeStruct(message, &frame); err != nil {
		return Frame{}, err
	}
	return frame, nil
}

// Submit streams commands and returns the server's acknowledgement.
func (c *Client) Submit(ctx context.Context, commands []state.WireCommand) (Ack, error) {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[1], methodName("SubmitCommands"))
	if err != nil {
		return Ack{}, err
	}
	for idx, cmd := range commands {
		message, err := codec.StructOf(cmd)
		if err != nil {
			return Ack{}, fmt.Errorf("encode command %d: %w", idx, err)
		}
		if err := stream.SendMsg(message); err != nil {
			//1.- The real failure surfaces from RecvMsg once the server aborted.
			if errors.Is(err, io.EOF) {
				break
			}
			return Ack{}, err
		}
	}
	if err := stream.CloseSend(); err != nil {
		return Ack{}, err
	}
	reply := new(structpb.Struct)
	if err := stream.RecvMsg(reply); err != nil {
		return Ack{}, err
	}
	var ack Ack
	if err := codec.DecodeStruct(reply, &ack); err != nil {
		return Ack{}, err
	}
	return ack, nil
}
