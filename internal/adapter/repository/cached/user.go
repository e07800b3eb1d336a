package cached

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"user-crud-service/internal/adapter/cache"
	domain "user-crud-service/internal/domain/user"
	"user-crud-service/internal/usecase/user"
)

// UserRepository decorates a record store with a read-through cache on GetByID.
// Writes go to the store first; the cache entry is then refreshed or dropped.
type UserRepository struct {
	store user.Repository
	cache cache.UserCache
	log   *zap.Logger
	group singleflight.Group

	// fill is held shared while a miss copies a store record into the cache and
	// exclusively by writes, so a fill that read the store before a write cannot
	// put the old record back after the write invalidated it.
	fill sync.RWMutex
}

// NewUserRepository wraps store. A nil cache turns the decorator into a pass-through.
func NewUserRepository(store user.Repository, c cache.UserCache, log *zap.Logger) *UserRepository {
	return &UserRepository{
		store: store,
		cache: c,
		log:   log,
	}
}

// Create stores the user and warms the cache with the stored record.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	r.fill.Lock()
	defer r.fill.Unlock()

	created, err := r.store.Create(ctx, u)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, created); err != nil {
			r.log.Warn("failed to warm cache after create", zap.Int64("id", created.ID), zap.Error(err))
		}
	}

	return created, nil
}

// GetByID retrieves a user by ID using the cache-aside pattern.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if r.cache != nil {
		cachedUser, err := r.cache.Get(ctx, id)
		if err != nil {
			r.log.Warn("cache get error, falling back to store", zap.Int64("id", id), zap.Error(err))
		} else if cachedUser != nil {
			return cachedUser, nil
		}
	}

	// Concurrent misses for the same ID share one store lookup.
	key := fmt.Sprintf("user:%d", id)
	result, err, _ := r.group.Do(key, func() (any, error) {
		r.fill.RLock()
		defer r.fill.RUnlock()

		u, err := r.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if r.cache != nil {
			if err := r.cache.Set(ctx, u); err != nil {
				r.log.Warn("failed to cache user", zap.Int64("id", id), zap.Error(err))
			}
		}

		return u, nil
	})
	if err != nil {
		return nil, err
	}

	// Hand each caller its own copy of the shared result.
	u := *result.(*domain.User)
	return &u, nil
}

// GetByEmail always reads the store so uniqueness checks never see stale data.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.store.GetByEmail(ctx, email)
}

// Update updates the store and invalidates the cache entry.
func (r *UserRepository) Update(ctx context.Context, id int64, patch domain.Patch) (*domain.User, error) {
	r.fill.Lock()
	defer r.fill.Unlock()

	updated, err := r.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	r.invalidate(ctx, id, "update")
	return updated, nil
}

// Delete deletes the user from the store and invalidates the cache entry.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	r.fill.Lock()
	defer r.fill.Unlock()

	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}

	r.invalidate(ctx, id, "delete")
	return nil
}

// List delegates to the store.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	return r.store.List(ctx)
}

func (r *UserRepository) invalidate(ctx context.Context, id int64, op string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, id); err != nil {
		r.log.Warn("failed to invalidate cache", zap.String("op", op), zap.Int64("id", id), zap.Error(err))
	}
}
