package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-crud-service/internal/adapter/clock"
	"user-crud-service/internal/domain/user"
)

// UserRepoSQLite implements the Repository interface on top of an in-process SQLite database via GORM.
// IDs come from a counter owned by the repository, so a deleted ID is never handed out again.
type UserRepoSQLite struct {
	mu     sync.Mutex  // guards nextID and serializes writes
	db     *gorm.DB    // GORM database connection
	clock  clock.Clock // Source of creation timestamps
	log    *zap.Logger // Structured logger for database operations
	nextID int64
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false"` // Assigned by the repository counter
	Name      string    `gorm:"not null"`                       // User's full name (required)
	Email     string    `gorm:"not null;uniqueIndex"`           // User's unique email address (required, unique)
	CreatedAt time.Time `gorm:"not null"`                       // Creation time, never updated
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// NewUserRepoSQLite migrates the users table and resumes the ID counter after the highest stored ID.
func NewUserRepoSQLite(ctx context.Context, db *gorm.DB, c clock.Clock, log *zap.Logger) (*UserRepoSQLite, error) {
	if err := db.WithContext(ctx).AutoMigrate(&UserSchema{}); err != nil {
		return nil, fmt.Errorf("failed to migrate users table: %w", err)
	}

	var maxID int64
	if err := db.WithContext(ctx).Model(&UserSchema{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
		return nil, fmt.Errorf("failed to read max user id: %w", err)
	}

	return &UserRepoSQLite{db: db, clock: c, log: log, nextID: maxID + 1}, nil
}

// Create inserts a new user into the database.
func (r *UserRepoSQLite) Create(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	model := UserSchema{
		ID:        r.nextID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: r.clock.Now(),
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		r.log.Error("failed to create user in db", zap.Error(err), zap.String("email", u.Email))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	r.nextID++

	r.log.Info("user created in db", zap.Int64("id", model.ID))
	return toDomain(&model), nil
}

// Update overwrites the supplied fields of an existing user inside a transaction.
func (r *UserRepoSQLite) Update(ctx context.Context, id int64, patch user.Patch) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var model UserSchema
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, id).Error; err != nil {
			return err
		}

		if patch.IsEmpty() {
			return nil
		}

		updates := make(map[string]any, 2)
		if patch.Name != nil {
			updates["name"] = *patch.Name
			model.Name = *patch.Name
		}
		if patch.Email != nil {
			updates["email"] = *patch.Email
			model.Email = *patch.Email
		}
		return tx.Model(&UserSchema{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Warn("user not found for update", zap.Int64("id", id))
			return nil, user.ErrUserNotFound
		}
		r.log.Error("failed to update user in db", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	r.log.Info("user updated in db", zap.Int64("id", model.ID))
	return toDomain(&model), nil
}

// Delete removes a user from the database by ID.
func (r *UserRepoSQLite) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.db.WithContext(ctx).Delete(&UserSchema{}, id)
	if res.Error != nil {
		r.log.Error("failed to delete user in db", zap.Error(res.Error), zap.Int64("id", id))
		return fmt.Errorf("failed to delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		r.log.Warn("user not found for delete", zap.Int64("id", id))
		return user.ErrUserNotFound
	}

	r.log.Info("user deleted in db", zap.Int64("id", id))
	return nil
}

// GetByID retrieves a user from the database by their unique ID.
func (r *UserRepoSQLite) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found", zap.Int64("id", id))
			return nil, user.ErrUserNotFound
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return toDomain(&model), nil
}

// GetByEmail retrieves a user from the database by their email address.
func (r *UserRepoSQLite) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found by email", zap.String("email", email))
			return nil, nil
		}
		r.log.Error("failed to get user by email from db", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return toDomain(&model), nil
}

// List retrieves all users ordered by ID, which is also their insertion order.
func (r *UserRepoSQLite) List(ctx context.Context) ([]user.User, error) {
	var models []UserSchema
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		r.log.Error("failed to list users from db", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i := range models {
		users[i] = *toDomain(&models[i])
	}

	return users, nil
}

func toDomain(m *UserSchema) *user.User {
	return &user.User{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		CreatedAt: m.CreatedAt.UTC(),
	}
}
