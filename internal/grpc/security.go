package grpc

import (
	"context"
	"crypto/subtle"
	"strings"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// SharedSecretMetadataKey carries the shared secret on authenticated calls.
const SharedSecretMetadataKey = "x-portal-shared-secret"

const healthMethodPrefix = "/grpc.health.v1.Health/"

// SharedSecretInterceptors guard every method except health checks behind secret.
func SharedSecretInterceptors(secret string) (gogrpc.UnaryServerInterceptor, gogrpc.StreamServerInterceptor) {
	normalized := strings.TrimSpace(secret)
	unary := func(ctx context.Context, req interface{}, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (interface{}, error) {
		if err := authorise(ctx, info.FullMethod, normalized); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
	stream := func(srv interface{}, ss gogrpc.ServerStream, info *gogrpc.StreamServerInfo, handler gogrpc.StreamHandler) error {
		if err := authorise(ss.Context(), info.FullMethod, normalized); err != nil {
			return err
		}
		return handler(srv, ss)
	}
	return unary, stream
}

func authorise(ctx context.Context, method, secret string) error {
	if strings.HasPrefix(method, healthMethodPrefix) {
		return nil
	}
	if secret == "" {
		return status.Error(codes.Unauthenticated, "shared secret not configured")
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	candidate := extractSharedSecret(md)
	if candidate == "" {
		return status.Error(codes.Unauthenticated, "missing shared secret")
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid shared secret")
	}
	return nil
}

func extractSharedSecret(md metadata.MD) string {
	for _, value := range md.Get(SharedSecretMetadataKey) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	for _, value := range md.Get("authorization") {
		if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
			if token := strings.TrimSpace(value[7:]); token != "" {
				return token
			}
		}
	}
	return ""
}
