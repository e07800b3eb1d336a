package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"user-crud-service/internal/adapter/clock"
)

// dependencyTimeout bounds each dependency check made by GET /health.
const dependencyTimeout = time.Second

// Checker is an optional backing service the health endpoint reports on.
type Checker interface {
	Check(ctx context.Context) error
}

type dependency struct {
	name    string
	checker Checker
}

// HealthHandler serves the liveness check and the root welcome document.
type HealthHandler struct {
	serviceName string
	clock       clock.Clock
	deps        []dependency
}

// NewHealthHandler creates a HealthHandler for the named service
func NewHealthHandler(serviceName string, c clock.Clock) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, clock: c}
}

// WithDependency registers a backing service checked on every GET /health.
// The cache and the rate limiter both keep serving without Redis, so a failed
// check reports "degraded" with 200 rather than failing liveness.
func (h *HealthHandler) WithDependency(name string, ch Checker) *HealthHandler {
	h.deps = append(h.deps, dependency{name: name, checker: ch})
	return h
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RootResponse is the body of GET /
type RootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Docs    string `json:"docs"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	for _, d := range h.deps {
		ctx, cancel := context.WithTimeout(c.Request.Context(), dependencyTimeout)
		err := d.checker.Check(ctx)
		cancel()
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusOK, HealthResponse{
				Status:    "degraded",
				Message:   d.name + " is unavailable",
				Timestamp: h.clock.Now(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Message:   "API is running successfully",
		Timestamp: h.clock.Now(),
	})
}

// Root handles GET /
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, RootResponse{
		Message: "Welcome to " + h.serviceName,
		Status:  "running",
		Docs:    "/docs",
	})
}
