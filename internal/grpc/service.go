package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"portalshift/engine/internal/codec"
	"portalshift/engine/internal/state"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "portalshift.v1.Spectator"
	// ClientIDMetadataKey lets callers name themselves; the peer address is used otherwise.
	ClientIDMetadataKey = "x-portal-client"

	// DefaultStreamRate caps WatchFrames at this many messages per second.
	DefaultStreamRate = 20
	// maxAckErrors bounds how many rejection reasons an Ack carries.
	maxAckErrors = 16
)

// Option customises the behaviour of the spectator service.
type Option func(*Service)

// tickerFactory constructs cancellable tick channels for throttled streaming.
type tickerFactory func(time.Duration) (<-chan time.Time, func())

// WithStreamRate overrides how many frames per second WatchFrames sends.
func WithStreamRate(hz int) Option {
	return func(s *Service) {
		if hz > 0 {
			s.rate = hz
		}
	}
}

// WithTickerFactory overrides the throttling ticker factory (used in tests).
func WithTickerFactory(factory tickerFactory) Option {
	return func(s *Service) {
		if factory != nil {
			s.newTicker = factory
		}
	}
}

// Service streams frames to spectators and accepts their commands.
type Service struct {
	bridge    Bridge
	rate      int
	newTicker tickerFactory
}

// NewService wires the spectator service to the bridge.
func NewService(bridge Bridge, opts ...Option) *Service {
	service := &Service{bridge: bridge, rate: DefaultStreamRate, newTicker: defaultTickerFactory}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

func defaultTickerFactory(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

// WatchFrames sends the newest snapshot at the throttled cadence together with
// every event emitted since the previous message.
func (s *Service) WatchFrames(_ *structpb.Struct, stream gogrpc.ServerStream) error {
	if s == nil || s.bridge == nil {
		return status.Error(codes.FailedPrecondition, "streaming unavailable")
	}
	ctx := stream.Context()
	diffs, cancel, err := s.bridge.SubscribeDiffs(ctx)
	if err != nil {
		return status.Errorf(codes.Internal, "subscribe diffs: %v", err)
	}
	defer cancel()

	tickCh, stop := s.newTicker(time.Second / time.Duration(s.rate))
	defer stop()

	var (
		latest  *state.TickDiff
		pending []state.Event
		closed  bool
	)
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return status.Error(codes.Canceled, "stream cancelled")
			}
			return status.Error(codes.DeadlineExceeded, "stream deadline exceeded")
		case diff, ok := <-diffs:
			if !ok {
				//1.- Flush what is buffered on the next tick, then finish.
				closed = true
				diffs = nil
				if latest == nil {
					return nil
				}
				continue
			}
			//2.- Snapshots conflate to the newest; events accumulate so none are skipped.
			pending = append(pending, diff.Events...)
			latest = &diff
		case <-tickCh:
			if latest == nil {
				if closed {
					return nil
				}
				continue
			}
			message, err := codec.StructOf(Frame{Tick: latest.Tick, Snapshot: latest.Snapshot, Events: pending})
			if err != nil {
				return status.Errorf(codes.Internal, "encode frame: %v", err)
			}
			if err := stream.SendMsg(message); err != nil {
				return err
			}
			latest, pending = nil, nil
			if closed {
				return nil
			}
		}
	}
}

// SubmitCommands forwards each received command and acknowledges the totals on close.
func (s *Service) SubmitCommands(stream gogrpc.ServerStream) error {
	if s == nil || s.bridge == nil {
		return status.Error(codes.FailedPrecondition, "streaming unavailable")
	}
	clientID := clientIDFromContext(stream.Context())
	release := s.bridge.OpenCommands(clientID)
	defer release()
	var ack Ack
	for {
		message := new(structpb.Struct)
		err := stream.RecvMsg(message)
		if errors.Is(err, io.EOF) {
			reply, encErr := codec.StructOf(ack)
			if encErr != nil {
				return status.Errorf(codes.Internal, "encode ack: %v", encErr)
			}
			return stream.SendMsg(reply)
		}
		if err != nil {
			return err
		}
		raw, err := message.MarshalJSON()
		if err == nil {
			err = s.bridge.SubmitCommand(clientID, raw)
		}
		if err != nil {
			ack.Rejected++
			if len(ack.Errors) < maxAckErrors {
				ack.Errors = append(ack.Errors, err.Error())
			}
			continue
		}
		ack.Accepted++
	}
}

func clientIDFromContext(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for _, value := range md.Get(ClientIDMetadataKey) {
			if value != "" {
				return "grpc:" + value
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return "grpc:" + p.Addr.String()
	}
	return "grpc:anonymous"
}

// spectatorServer is the handler contract registered with the gRPC server.
type spectatorServer interface {
	WatchFrames(*structpb.Struct, gogrpc.ServerStream) error
	SubmitCommands(gogrpc.ServerStream) error
}

var serviceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*spectatorServer)(nil),
	Streams: []gogrpc.StreamDesc{
		{StreamName: "WatchFrames", Handler: watchFramesHandler, ServerStreams: true},
		{StreamName: "SubmitCommands", Handler: submitCommandsHandler, ClientStreams: true},
	},
	Metadata: "portalshift/v1/spectator.proto",
}

func watchFramesHandler(srv interface{}, stream gogrpc.ServerStream) error {
	request := new(structpb.Struct)
	if err := stream.RecvMsg(request); err != nil {
		return err
	}
	return srv.(spectatorServer).WatchFrames(request, stream)
}

func submitCommandsHandler(srv interface{}, stream gogrpc.ServerStream) error {
	return srv.(spectatorServer).SubmitCommands(stream)
}

// Register attaches the spectator service to server.
func Register(server gogrpc.ServiceRegistrar, service *Service) {
	server.RegisterService(&serviceDesc, service)
}

func methodName(stream string) string {
	return fmt.Sprintf("/%s/%s", ServiceName, stream)
}
