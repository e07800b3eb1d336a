// Package repotest holds the behavioural suite every user store must pass.
package repotest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-crud-service/internal/adapter/clock"
	domain "user-crud-service/internal/domain/user"
	"user-crud-service/internal/usecase/user"
)

// Factory builds a fresh, empty store that stamps records with c.
type Factory func(t *testing.T, c clock.Clock) user.Repository

// Start is the time the manual clock is set to for every contract case.
var Start = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Run executes the store contract against stores produced by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("list empty", func(t *testing.T) {
		repo := newRepo(t, clock.NewManual(Start))

		users, err := repo.List(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, users)
		assert.Empty(t, users)
	})

	t.Run("create assigns increasing ids and timestamps", func(t *testing.T) {
		clk := clock.NewManual(Start)
		repo := newRepo(t, clk)
		ctx := context.Background()

		first, err := repo.Create(ctx, &domain.User{Name: "Test User", Email: "test@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), first.ID)
		assert.WithinDuration(t, Start, first.CreatedAt, time.Millisecond)

		clk.Add(time.Minute)
		second, err := repo.Create(ctx, &domain.User{Name: "Second", Email: "second@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), second.ID)
		assert.WithinDuration(t, Start.Add(time.Minute), second.CreatedAt, time.Millisecond)
	})

	t.Run("list preserves insertion order", func(t *testing.T) {
		repo := newRepo(t, clock.NewManual(Start))
		ctx := context.Background()

		emails := []string{"c@example.com", "a@example.com", "b@example.com"}
		for _, e := range emails {
			_, err := repo.Create(ctx, &domain.User{Name: "User", Email: e})
			require.NoError(t, err)
		}

		users, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 3)
		for i, u := range users {
			assert.Equal(t, emails[i], u.Email)
			assert.Equal(t, int64(i+1), u.ID)
		}
	})

	t.Run("get by id", func(t *testing.T) {
		repo := newRepo(t, clock.NewManual(Start))
		ctx := context.Background()

		created, err := repo.Create(ctx, &domain.User{Name: "Test User", Email: "test@example.com"})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Test User", got.Name)
		assert.Equal(t, "test@example.com", got.Email)

		_, err = repo.GetByID(ctx, 9999)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("get by email is exact and case sensitive", func(t *testing.T) {
		repo := newRepo(t, clock.NewManual(Start))
		ctx := context.Background()

		created, err := repo.Create(ctx, &domain.User{Name: "Test User", Email: "test@example.com"})
		require.NoError(t, err)

		got, err := repo.GetByEmail(ctx, "test@example.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)

		got, err = repo.GetByEmail(ctx, "TEST@example.com")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = repo.GetByEmail(ctx, "missing@example.com")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("update name only keeps email and created_at", func(t *testing.T) {
		clk := clock.NewManual(Start)
		repo := newRepo(t, clk)
		ctx := context.Background()

		created, err := repo.Create(ctx, &domain.User{Name: "Test User", Email: "test@example.com"})
		require.NoError(t, err)
		clk.Add(time.Hour)

		name := "Updated"
		updated, err := repo.Update(ctx, created.ID, domain.Patch{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Updated", updated.Name)
		assert.Equal(t, "test@example.com", updated.Email)
		assert.WithinDuration(t, created.CreatedAt, updated.CreatedAt, time.Millisecond)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Updated", got.Name)
	})

	t.Run("update email only keeps name and created_at", func(t *testing.T) {
		clk := clock.NewManual(Start)
		repo := newRepo(t, clk)
		ctx := context.Background()

		created, err := repo.Create(ctx, &domain.User{Name: "Test User", Email: "test@example.com"})
		require.NoError(t, err)
		clk.Add(time.Hour)

		email := "new@example.com"
		updated, err := repo.Update(ctx, created.ID, domain.Patch{Email: &email})
		require.NoError(t, err)
		assert.Equal(t, "Test User", updated.Name)
		assert.Equal(t, "new@example.com", updated.Email)
		assert.WithinDuration(t, created.CreatedAt, updated.CreatedAt, time.Millisecond)
	})

	t.Run("update with empty patch returns record unchanged", func(t *testing.T) {
		repo := newRepo(t, clock.NewManual(Start))
		ctx := context.Background()

		created, err := repo.Create(ctx, &domain.User{Name: "Test User", Email: "test@example.com"})
		require.NoError(t, err)

		updated, err := repo.Update(ctx, created.ID, domain.Patch{})
		require.NoError(t, err)
		assert.Equal(t, created.Name, updated.Name)
		assert.Equal(t, created.Email, updated.Email)
	})

	t.Run("update missing user", func(t *testing.T) {
		repo := newRepo(t, clock.NewManual(Start))

		name := "Nobody"
		_, err := repo.Update(context.Background(), 42, domain.Patch{Name: &name})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("delete never reuses ids", func(t *testing.T) {
		repo := newRepo(t, clock.NewManual(Start))
		ctx := context.Background()

		first, err := repo.Create(ctx, &domain.User{Name: "First", Email: "first@example.com"})
		require.NoError(t, err)
		second, err := repo.Create(ctx, &domain.User{Name: "Second", Email: "second@example.com"})
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, second.ID))
		_, err = repo.GetByID(ctx, second.ID)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, second.ID), domain.ErrUserNotFound)

		third, err := repo.Create(ctx, &domain.User{Name: "Third", Email: "second@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), third.ID)

		users, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, first.ID, users[0].ID)
		assert.Equal(t, third.ID, users[1].ID)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		repo := newRepo(t, clock.NewManual(Start))
		ctx := context.Background()

		created, err := repo.Create(ctx, &domain.User{Name: "Test User", Email: "test@example.com"})
		require.NoError(t, err)

		created.Name = "mutated by caller"
		users, err := repo.List(ctx)
		require.NoError(t, err)
		users[0].Email = "mutated@example.com"

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Test User", got.Name)
		assert.Equal(t, "test@example.com", got.Email)
	})

	t.Run("concurrent creates get distinct ids", func(t *testing.T) {
		repo := newRepo(t, clock.NewManual(Start))
		ctx := context.Background()

		const n = 20
		ids := make(chan int64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				u, err := repo.Create(ctx, &domain.User{Name: "User", Email: string(rune('a'+i)) + "@example.com"})
				if assert.NoError(t, err) {
					ids <- u.ID
				}
			}(i)
		}
		wg.Wait()
		close(ids)

		seen := make(map[int64]bool, n)
		for id := range ids {
			assert.False(t, seen[id], "id %d assigned twice", id)
			seen[id] = true
		}
		assert.Len(t, seen, n)
	})
}
