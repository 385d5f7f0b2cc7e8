// Package grpc serves the daemon's gRPC health endpoint and keeps it in sync
// with the reachability of the cache store.
package grpc

import (
	"sync"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthService is the health check name reporting the cache store status.
const HealthService = "flash.Cache"

var (
	grpcServerMetrics         *grpcprom.ServerMetrics
	registerServerMetricsOnce sync.Once
)

// Server bundles the gRPC server with its health server.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// NewGRPCServer creates a gRPC server with Prometheus metrics, health checking,
// and reflection. Both the overall and the HealthService status start as
// NOT_SERVING until a probe succeeds.
func NewGRPCServer() *Server {
	// Set up Prometheus gRPC server metrics once per process
	registerServerMetricsOnce.Do(func() {
		grpcServerMetrics = grpcprom.NewServerMetrics(
			grpcprom.WithServerHandlingTimeHistogram(),
		)
		prometheus.MustRegister(grpcServerMetrics)
	})

	srvMetrics := grpcServerMetrics

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(srvMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(srvMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Register reflection service for tools like grpcurl
	reflection.Register(grpcServer)

	srvMetrics.InitializeMetrics(grpcServer)

	return &Server{Server: grpcServer, Health: healthServer}
}

// GracefulStop marks every service NOT_SERVING and stops the server.
func (s *Server) GracefulStop() {
	s.Health.Shutdown()
	s.Server.GracefulStop()
}
