package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// tokenBucket refills at ARGV[1] tokens per second up to ARGV[2], then tries to take one token.
// Bucket state lives in a hash {last_refill, tokens} that expires after a minute of inactivity.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'last_refill', 'tokens')
local last_refill = tonumber(bucket[1]) or now
local tokens = tonumber(bucket[2]) or capacity

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', key, 'last_refill', tostring(now), 'tokens', tostring(tokens))
redis.call('EXPIRE', key, 60)
return allowed
`)

// Config holds configuration for the rate limiter.
type Config struct {
	RequestsPerSecond float64
	BurstCapacity     int
	Enabled           bool
}

// Limiter is a Redis-backed token bucket shared by the HTTP and gRPC entry points.
type Limiter struct {
	client *redis.Client
	config Config
	now    func() time.Time
	log    *zap.Logger
}

// New creates a limiter. A nil client or a disabled config allows every request.
func New(client *redis.Client, config Config, log *zap.Logger) *Limiter {
	return &Limiter{
		client: client,
		config: config,
		now:    time.Now,
		log:    log,
	}
}

// Enabled reports whether requests are actually being limited.
func (l *Limiter) Enabled() bool {
	return l != nil && l.client != nil && l.config.Enabled
}

// Config returns the limiter settings.
func (l *Limiter) Config() Config {
	return l.config
}

// Allow takes one token from the bucket identified by key.
// On Redis errors the request is allowed and the error is returned for logging (fail open).
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}

	now := float64(l.now().UnixMilli()) / 1000
	allowed, err := tokenBucket.Run(ctx, l.client, []string{key},
		l.config.RequestsPerSecond,
		l.config.BurstCapacity,
		now,
	).Int64()
	if err != nil {
		l.log.Warn("rate limiter redis error, allowing request", zap.String("key", key), zap.Error(err))
		return true, fmt.Errorf("rate limiter: %w", err)
	}

	if allowed == 0 {
		l.log.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Float64("requests_per_second", l.config.RequestsPerSecond),
			zap.Int("burst_capacity", l.config.BurstCapacity),
		)
		return false, nil
	}

	return true, nil
}

// Key builds the bucket key for one caller of one route.
func Key(scope, route, client string) string {
	return fmt.Sprintf("ratelimit:tb:%s:%s:%s", scope, route, client)
}
