package auth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"deliveryService/internal/apperr"
	"deliveryService/internal/logx"
)

// NewUnaryAuthInterceptor returns a gRPC unary interceptor that verifies basic-auth
// credentials from incoming metadata and injects the Principal into the context.
// Methods listed in allowUnauthenticated bypass authentication (e.g., health checks).
func NewUnaryAuthInterceptor(v *Verifier, allowUnauthenticated ...string) grpc.UnaryServerInterceptor {
	allow := make(map[string]struct{}, len(allowUnauthenticated))
	for _, m := range allowUnauthenticated {
		allow[strings.TrimSpace(m)] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		username, password, err := CredentialsFromMD(ctx)
		if err != nil {
			v.log.Info("rejected credentials", logx.String("method", info.FullMethod), logx.Err(err))
			return nil, status.Error(codes.Unauthenticated, "authentication failed")
		}
		p, err := v.Verify(ctx, username, password)
		if err != nil {
			if errors.Is(err, apperr.Unauthenticated) {
				return nil, status.Error(codes.Unauthenticated, "authentication failed")
			}
			v.log.Error("verify credentials", logx.String("method", info.FullMethod), logx.Err(err))
			return nil, status.Error(codes.Internal, "internal error")
		}
		return handler(WithPrincipal(ctx, p), req)
	}
}

// RequirePrincipal ensures a principal is present in context.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, apperr.New(apperr.Unauthenticated, "missing principal")
	}
	return p, nil
}
