package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewUnaryAuthInterceptor returns a gRPC unary interceptor that extracts Basic
// credentials from incoming metadata and injects them into the context.
// Methods listed in allowUnauthenticated bypass the check (e.g., registration, health).
func NewUnaryAuthInterceptor(allowUnauthenticated ...string) grpc.UnaryServerInterceptor {
	allow := make(map[string]struct{}, len(allowUnauthenticated))
	for _, m := range allowUnauthenticated {
		allow[strings.TrimSpace(m)] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		c, err := ParseFromMD(ctx)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "auth error: %v", err)
		}
		return handler(WithCredentials(ctx, c), req)
	}
}

// RequireCredentials ensures credentials are present in context.
func RequireCredentials(ctx context.Context) (Credentials, error) {
	c, ok := FromContext(ctx)
	if !ok {
		return Credentials{}, status.Error(codes.Unauthenticated, "missing credentials")
	}
	return c, nil
}
