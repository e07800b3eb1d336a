package di

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-crud-service/cmd/api/infrastructure"
	"user-crud-service/internal/adapter/cache"
	"user-crud-service/internal/adapter/clock"
	sqliterepo "user-crud-service/internal/adapter/db/sqlite"
	ginhandler "user-crud-service/internal/adapter/gin/handler"
	"user-crud-service/internal/adapter/repository/cached"
	"user-crud-service/internal/adapter/repository/memory"
	"user-crud-service/internal/config"
	"user-crud-service/internal/usecase/user"
	"user-crud-service/pkg/ratelimit"
	redisclient "user-crud-service/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	// InstanceID is unique per process. It namespaces cache keys so a restarted
	// process with an empty store never reads records cached by its predecessor.
	InstanceID    string
	Config        *config.Config
	Logger        *zap.Logger
	Clock         clock.Clock
	DB            *gorm.DB
	RedisClient   *redisclient.Client
	Store         user.Repository
	UserUC        user.Usecase
	RateLimiter   *ratelimit.Limiter
	UserHandler   *ginhandler.UserHandler
	HealthHandler *ginhandler.HealthHandler
}

// NewContainer creates and initializes all application dependencies.
// With default configuration no external service is contacted.
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c := &Container{
		InstanceID: uuid.NewString(),
		Config:     cfg,
		Logger:     l,
		Clock:      clock.System{},
	}

	if cfg.RedisRequired() {
		rdb, err := infrastructure.NewRedisClient(ctx, cfg, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		c.RedisClient = rdb
	}

	store, err := c.newStore(ctx)
	if err != nil {
		return nil, multierr.Append(err, c.Close())
	}

	if cfg.Cache.Enabled {
		userCache := cache.NewRedisUserCache(
			c.RedisClient.Client,
			time.Duration(cfg.Cache.TTLSeconds)*time.Second,
			"user:"+c.InstanceID,
			l,
		)
		store = cached.NewUserRepository(store, userCache, l)
	}
	c.Store = store

	c.UserUC = user.New(store, l)

	var limiterClient *redisclient.Client
	if cfg.RateLimit.Enabled {
		limiterClient = c.RedisClient
	}
	c.RateLimiter = ratelimit.New(
		limiterClient.Raw(),
		ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstCapacity:     cfg.RateLimit.BurstCapacity,
			Enabled:           cfg.RateLimit.Enabled,
		},
		l,
	)

	c.UserHandler = ginhandler.NewUserHandler(c.UserUC, l)
	c.HealthHandler = ginhandler.NewHealthHandler(cfg.Logger.ServiceName, c.Clock)
	if c.RedisClient != nil {
		c.HealthHandler.WithDependency("redis", c.RedisClient)
	}

	l.Info("container initialized",
		zap.String("instance_id", c.InstanceID),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
	)

	return c, nil
}

func (c *Container) newStore(ctx context.Context) (user.Repository, error) {
	switch c.Config.Store.Driver {
	case config.StoreDriverSQLite:
		db, err := infrastructure.NewDatabase(c.Config, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		c.DB = db

		repo, err := sqliterepo.NewUserRepoSQLite(ctx, db, c.Clock, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite store: %w", err)
		}
		return repo, nil
	default:
		return memory.NewUserRepo(c.Clock, c.Logger), nil
	}
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var err error

	if c.RedisClient != nil {
		if cerr := c.RedisClient.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close Redis: %w", cerr))
		}
	}

	if c.DB != nil {
		if cerr := infrastructure.CloseDatabase(c.DB); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close database: %w", cerr))
		}
	}

	return err
}
