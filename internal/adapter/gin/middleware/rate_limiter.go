package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"user-crud-service/pkg/ratelimit"
)

// RateLimiter returns a Gin middleware for rate limiting using the shared token bucket.
// Buckets are keyed by method, route template and client IP, so /users/1 and /users/2 share one bucket.
func RateLimiter(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Enabled() {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := ratelimit.Key(c.Request.Method, route, c.ClientIP())

		allowed, _ := limiter.Allow(c.Request.Context(), key)
		if !allowed {
			cfg := limiter.Config()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail": fmt.Sprintf("Rate limit exceeded: %.2f requests/second (burst capacity: %d)",
					cfg.RequestsPerSecond, cfg.BurstCapacity),
			})
			return
		}

		c.Next()
	}
}
