// Package grpcserver exposes the delivery and admin services over gRPC.
package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"deliveryService/internal/auth"
	"deliveryService/internal/logx"
	"deliveryService/internal/metrics"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// Deps are the collaborators of the gRPC server.
type Deps struct {
	Delivery *Server
	Admin    *AdminServer
	Verifier *auth.Verifier
	Metrics  *metrics.Metrics
	Logger   logx.Logger
}

// NewServer builds a grpc.Server with both services, the health service and the
// interceptor chain: recovery, logging, metrics, then authentication.
func NewServer(d Deps) *grpc.Server {
	log := d.Logger
	if log == nil {
		log = logx.Nop()
	}
	interceptors := []grpc.UnaryServerInterceptor{recoveryInterceptor(log), loggingInterceptor(log)}
	if d.Metrics != nil {
		interceptors = append(interceptors, metricsInterceptor(d.Metrics))
	}
	interceptors = append(interceptors, auth.NewUnaryAuthInterceptor(d.Verifier, healthCheckMethod))

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	srv.RegisterService(&DeliveryServiceDesc, d.Delivery)
	srv.RegisterService(&AdminServiceDesc, d.Admin)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(deliveryServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(adminServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// StartGRPC starts the gRPC server on addr and returns a shutdown function.
func StartGRPC(addr string, d Deps) (func(context.Context) error, error) {
	if addr == "" {
		addr = ":50051"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	// Plaintext; terminate TLS in front of the service.
	srv := NewServer(d)
	go func() { _ = srv.Serve(lis) }()

	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}, nil
}
