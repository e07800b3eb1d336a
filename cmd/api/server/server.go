package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	ginhandler "user-crud-service/internal/adapter/gin/handler"
	"user-crud-service/internal/config"
	"user-crud-service/pkg/ratelimit"
)

// Server struct holds the HTTP server and, when enabled, the gRPC health server
type Server struct {
	Config *config.Config
	Logger *zap.Logger
	HTTP   *http.Server
	GRPC   *grpc.Server
	Health *health.Server
}

// New creates a new server instance
func New(
	cfg *config.Config,
	l *zap.Logger,
	userHandler *ginhandler.UserHandler,
	healthHandler *ginhandler.HealthHandler,
	rateLimiter *ratelimit.Limiter,
) *Server {
	s := &Server{
		Config: cfg,
		Logger: l,
	}

	s.HTTP = SetupGinServer(cfg.App.APIPrefix, userHandler, healthHandler, rateLimiter, s.httpAddress(), l)
	if cfg.App.GRPCEnabled {
		s.GRPC, s.Health = SetupGRPC(l, rateLimiter)
	}

	return s
}

// Start listens on the configured ports and serves until Shutdown is called or a server fails
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}

	httpLis, err := lc.Listen(ctx, "tcp", s.httpAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpAddress(), err)
	}

	var grpcLis net.Listener
	if s.GRPC != nil {
		grpcLis, err = lc.Listen(ctx, "tcp", s.grpcAddress())
		if err != nil {
			return multierr.Append(
				fmt.Errorf("failed to listen on %s: %w", s.grpcAddress(), err),
				httpLis.Close(),
			)
		}
	}

	return s.Serve(httpLis, grpcLis)
}

// Serve runs the servers on the given listeners. grpcLis is ignored when gRPC is disabled.
// If one server fails the other is stopped.
func (s *Server) Serve(httpLis, grpcLis net.Listener) error {
	var g errgroup.Group

	g.Go(func() error {
		s.Logger.Info("HTTP server running", zap.String("address", httpLis.Addr().String()))
		err := s.HTTP.Serve(httpLis)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		if s.GRPC != nil {
			s.GRPC.Stop()
		}
		return fmt.Errorf("HTTP server: %w", err)
	})

	if s.GRPC != nil && grpcLis != nil {
		g.Go(func() error {
			s.Logger.Info("gRPC server running", zap.String("address", grpcLis.Addr().String()))
			err := s.GRPC.Serve(grpcLis)
			if err == nil || errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			_ = s.HTTP.Close()
			return fmt.Errorf("gRPC server: %w", err)
		})
	}

	return g.Wait()
}

// Shutdown drains both servers. gRPC is stopped hard if ctx expires before in-flight calls finish.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error

	if s.Health != nil {
		s.Health.Shutdown()
	}

	if s.HTTP != nil {
		s.Logger.Info("shutting down HTTP server...")
		if herr := s.HTTP.Shutdown(ctx); herr != nil {
			err = multierr.Append(err, fmt.Errorf("HTTP shutdown: %w", herr))
		}
	}

	if s.GRPC != nil {
		s.Logger.Info("shutting down gRPC server...")
		stopped := make(chan struct{})
		go func() {
			s.GRPC.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-ctx.Done():
			s.GRPC.Stop()
			err = multierr.Append(err, fmt.Errorf("gRPC shutdown: %w", ctx.Err()))
		}
	}

	return err
}

// grpcAddress returns the gRPC server address
func (s *Server) grpcAddress() string {
	return ":" + s.Config.App.GRPCPort
}

// httpAddress returns the HTTP server address
func (s *Server) httpAddress() string {
	return ":" + s.Config.App.HTTPPort
}
