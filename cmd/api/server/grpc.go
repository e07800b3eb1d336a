package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"user-crud-service/internal/adapter/grpc/middleware"
	"user-crud-service/pkg/logger"
	"user-crud-service/pkg/ratelimit"
)

// SetupGRPC creates the gRPC server carrying the standard health service.
// The returned health server flips to NOT_SERVING on shutdown.
func SetupGRPC(l *zap.Logger, rateLimiter *ratelimit.Limiter) (*grpc.Server, *health.Server) {
	// Create gRPC server with request ID and rate limit interceptors
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.RequestIDInterceptor(),
			middleware.RateLimitInterceptor(rateLimiter),
		),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	l.Info("gRPC health service registered")

	return grpcServer, healthServer
}
