package memory

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"user-crud-service/internal/adapter/clock"
	domain "user-crud-service/internal/domain/user"
)

// UserRepo is the in-memory record store: an ordered slice of users plus the
// next-identifier counter. Lookups are linear scans.
// It is safe for concurrent use; callers always receive copies.
type UserRepo struct {
	mu     sync.RWMutex
	users  []domain.User
	nextID int64
	clock  clock.Clock
	log    *zap.Logger
}

// NewUserRepo creates an empty store whose first assigned ID is 1.
func NewUserRepo(c clock.Clock, log *zap.Logger) *UserRepo {
	return &UserRepo{
		users:  make([]domain.User, 0),
		nextID: 1,
		clock:  c,
		log:    log,
	}
}

// Create assigns the next ID and the current time, then appends the user.
// Email uniqueness is enforced by the caller.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	_ = ctx
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := domain.User{
		ID:        r.nextID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: r.clock.Now(),
	}
	r.nextID++
	r.users = append(r.users, stored)

	r.log.Debug("user stored", zap.Int64("id", stored.ID), zap.Int("count", len(r.users)))
	return &stored, nil
}

// GetByID returns a copy of the user with the given ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, domain.ErrUserNotFound
	}
	u := r.users[i]
	return &u, nil
}

// GetByEmail returns a copy of the user holding email, or nil when no user does.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

// Update overwrites the supplied fields in place. CreatedAt and ID are never touched.
func (r *UserRepo) Update(ctx context.Context, id int64, patch domain.Patch) (*domain.User, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, domain.ErrUserNotFound
	}
	patch.Apply(&r.users[i])

	u := r.users[i]
	return &u, nil
}

// Delete removes the user, preserving the order of the remaining records.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return domain.ErrUserNotFound
	}
	r.users = append(r.users[:i], r.users[i+1:]...)

	r.log.Debug("user removed", zap.Int64("id", id), zap.Int("count", len(r.users)))
	return nil
}

// List returns a copy of all users in insertion order.
func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.User, len(r.users))
	copy(out, r.users)
	return out, nil
}

// indexOf must be called with mu held.
func (r *UserRepo) indexOf(id int64) int {
	for i := range r.users {
		if r.users[i].ID == id {
			return i
		}
	}
	return -1
}
