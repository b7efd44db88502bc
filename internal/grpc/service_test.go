package grpc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"portalshift/engine/internal/state"
)

type bridgeStub struct {
	mu       sync.Mutex
	diffs    []state.TickDiff
	fed      chan struct{}
	received []string
	clients  []string
	opened   int
	released int
}

func (b *bridgeStub) SubscribeDiffs(ctx context.Context) (<-chan state.TickDiff, func(), error) {
	ch := make(chan state.TickDiff)
	go func() {
		defer close(ch)
		defer close(b.fed)
		for _, diff := range b.diffs {
			select {
			case ch <- diff:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, func() {}, nil
}

func (b *bridgeStub) SubmitCommand(clientID string, raw []byte) error {
	if _, _, err := state.DecodeCommand(raw, clientID); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.received = append(b.received, string(raw))
	b.clients = append(b.clients, clientID)
	return nil
}

func (b *bridgeStub) OpenCommands(string) func() {
	b.mu.Lock()
	b.opened++
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.released++
		b.mu.Unlock()
	}
}

// startServer serves srv over an in-memory listener and returns a connected client.
func startServer(t *testing.T, srv *gogrpc.Server) *gogrpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	conn, err := gogrpc.NewClient("passthrough:///bufnet",
		gogrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
	})
	return conn
}

func TestWatchFramesConflatesSnapshotsAndKeepsEvents(t *testing.T) {
	bridge := &bridgeStub{
		fed: make(chan struct{}),
		diffs: []state.TickDiff{
			{Tick: 1, Snapshot: state.Snapshot{Tick: 1, Level: "tutorial"}, Events: []state.Event{{ID: "e1", Tick: 1, Type: state.EventPortalPlaced}}},
			{Tick: 2, Snapshot: state.Snapshot{Tick: 2, Level: "tutorial"}, Events: []state.Event{{ID: "e2", Tick: 2, Type: state.EventTransfer}}},
		},
	}
	ticks := make(chan time.Time)
	srv := gogrpc.NewServer()
	Register(srv, NewService(bridge, WithTickerFactory(func(time.Duration) (<-chan time.Time, func()) {
		return ticks, func() {}
	})))
	conn := startServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := NewClient(conn).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	//1.- Tick only once both diffs were handed over.
	<-bridge.fed
	ticks <- time.Now()

	frame, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if frame.Tick != 2 || frame.Snapshot.Tick != 2 || frame.Snapshot.Level != "tutorial" {
		t.Fatalf("expected the newest snapshot, got %+v", frame)
	}
	if len(frame.Events) != 2 || frame.Events[0].ID != "e1" || frame.Events[1].Type != state.EventTransfer {
		t.Fatalf("expected both events, got %+v", frame.Events)
	}
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after the source closed, got %v", err)
	}
}

func TestSubmitCommandsAcknowledgesTotals(t *testing.T) {
	bridge := &bridgeStub{fed: make(chan struct{})}
	srv := gogrpc.NewServer()
	Register(srv, NewService(bridge))
	conn := startServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, ClientIDMetadataKey, "tester")
	ack, err := NewClient(conn).Submit(ctx, []state.WireCommand{
		{Type: "move", Right: true},
		{Type: "teleport"},
		{Type: "reset"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ack.Accepted != 2 || ack.Rejected != 1 || len(ack.Errors) != 1 {
		t.Fatalf("unexpected ack %+v", ack)
	}
	bridge.mu.Lock()
	if len(bridge.clients) != 2 || bridge.clients[0] != "grpc:tester" {
		t.Fatalf("unexpected client attribution %v", bridge.clients)
	}
	bridge.mu.Unlock()

	//1.- The command lease is returned once the stream finishes.
	deadline := time.Now().Add(2 * time.Second)
	for {
		bridge.mu.Lock()
		opened, released := bridge.opened, bridge.released
		bridge.mu.Unlock()
		if opened == 1 && released == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected one released lease, opened=%d released=%d", opened, released)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerGuardsSpectatorButNotHealth(t *testing.T) {
	bridge := &bridgeStub{fed: make(chan struct{})}
	server := NewServer(ServerOptions{Bridge: bridge, SharedSecret: "hunter2"})
	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	conn, err := gogrpc.NewClient("passthrough:///bufnet",
		gogrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health := healthpb.NewHealthClient(conn)
	resp, err := health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING before the loop starts, got %v", resp.GetStatus())
	}
	server.SetServing(true)
	if resp, err = health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName}); err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v (%v)", resp.GetStatus(), err)
	}

	//1.- Without the secret the call is refused when the first message is read.
	_, err = NewClient(conn).Submit(ctx, []state.WireCommand{{Type: "reset"}})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
	authed := metadata.AppendToOutgoingContext(ctx, SharedSecretMetadataKey, "hunter2")
	if ack, err := NewClient(conn).Submit(authed, []state.WireCommand{{Type: "reset"}}); err != nil || ack.Accepted != 1 {
		t.Fatalf("expected authenticated submit to pass, got %+v (%v)", ack, err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	server.Stop(stopCtx)
}

func TestExtractSharedSecretAcceptsBearer(t *testing.T) {
	md := metadata.Pairs("authorization", "Bearer hunter2")
	if got := extractSharedSecret(md); got != "hunter2" {
		t.Fatalf("unexpected secret %q", got)
	}
	if err := authorise(context.Background(), methodName("WatchFrames"), ""); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated without a configured secret, got %v", err)
	}
}
