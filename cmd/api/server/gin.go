package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	ginhandler "user-crud-service/internal/adapter/gin/handler"
	ginrouter "user-crud-service/internal/adapter/gin/router"
	"user-crud-service/pkg/ratelimit"
)

// SetupGinServer creates the REST API server: the Gin router behind the CORS policy
func SetupGinServer(
	apiPrefix string,
	userHandler *ginhandler.UserHandler,
	healthHandler *ginhandler.HealthHandler,
	rateLimiter *ratelimit.Limiter,
	addr string,
	l *zap.Logger,
) *http.Server {
	router := ginrouter.SetupRouter(apiPrefix, userHandler, healthHandler, rateLimiter, l)

	l.Info("REST API configured",
		zap.String("address", addr),
		zap.String("api_prefix", apiPrefix),
		zap.String("docs", "/docs/index.html"),
	)

	return &http.Server{
		Addr:              addr,
		Handler:           ginrouter.WithCORS(router),
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
