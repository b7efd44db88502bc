package grpc

import (
	"context"
	"net"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"portalshift/engine/internal/logging"
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	// Bridge enables the spectator service; health checks are always served.
	Bridge       Bridge
	SharedSecret string
	StreamRate   int
	Logger       *logging.Logger
}

// Server bundles the gRPC server with its health reporter.
type Server struct {
	server *gogrpc.Server
	health *health.Server
	logger *logging.Logger
}

// NewServer builds a server that starts out NOT_SERVING until SetServing(true).
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	var serverOpts []gogrpc.ServerOption
	if opts.SharedSecret != "" {
		unary, stream := SharedSecretInterceptors(opts.SharedSecret)
		serverOpts = append(serverOpts, gogrpc.ChainUnaryInterceptor(unary), gogrpc.ChainStreamInterceptor(stream))
		logger.Info("gRPC shared-secret authentication enabled")
	}
	s := &Server{server: gogrpc.NewServer(serverOpts...), health: health.NewServer(), logger: logger}
	healthpb.RegisterHealthServer(s.server, s.health)
	if opts.Bridge != nil {
		Register(s.server, NewService(opts.Bridge, WithStreamRate(opts.StreamRate)))
	}
	s.SetServing(false)
	return s
}

// SetServing flips the overall and spectator health status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks accepting connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Stop marks the server unhealthy and drains in-flight RPCs until ctx expires.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("gRPC graceful stop timed out; forcing shutdown")
		s.server.Stop()
		<-done
	}
}
