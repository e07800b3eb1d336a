package user

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	domain "user-crud-service/internal/domain/user"
	pkgerrors "user-crud-service/pkg/errors"
	"user-crud-service/pkg/logger"

	"github.com/go-playground/validator/v10"
)

const (
	// MsgUserNotFound is the detail returned when no user matches an ID.
	MsgUserNotFound = "User not found"
	// MsgEmailRegistered is the detail returned when an email is already held by another user.
	MsgEmailRegistered = "Email already registered"
)

// Repository defines the interface for user data access operations.
// It abstracts the record store, allowing different implementations
// (in-memory slice, in-memory SQLite, cached decorator) to be used interchangeably.
type Repository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)               // Assign ID and creation time, then append
	GetByID(ctx context.Context, id int64) (*domain.User, error)                    // Retrieve user by ID or domain.ErrUserNotFound
	GetByEmail(ctx context.Context, email string) (*domain.User, error)             // Retrieve user by email, nil when absent
	Update(ctx context.Context, id int64, patch domain.Patch) (*domain.User, error) // Overwrite supplied fields in place
	Delete(ctx context.Context, id int64) error                                     // Remove user by ID or domain.ErrUserNotFound
	List(ctx context.Context) ([]domain.User, error)                                // All users in insertion order
}

// Service implements the business logic for user management operations.
// Every mutating call holds mu across its uniqueness check and the store write,
// so concurrent requests cannot both claim the same email.
// Reads hold mu shared, so a read never straddles a write.
type Service struct {
	mu       sync.RWMutex
	repo     Repository          // Repository for data access
	log      *zap.Logger         // Logger for structured logging
	validate *validator.Validate // Validator for request validation
}

// New creates a new Service with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Service {
	return &Service{repo: r, log: log, validate: validator.New()}
}

// validationError maps validator failures onto the public validation error type.
func validationError(err error) error {
	if verr, ok := pkgerrors.FromValidator(err); ok {
		return verr
	}
	return err
}

// CreateUser creates a new user after validating the request and checking email uniqueness.
func (uc *Service) CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("creating user", zap.String("name", in.Name), zap.String("email", in.Email))

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, validationError(err)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	existingUser, err := uc.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		log.Error("failed to check existing email", zap.String("email", in.Email), zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to validate email uniqueness", err)
	}
	if existingUser != nil {
		log.Warn("email already exists", zap.String("email", in.Email), zap.Int64("existing_id", existingUser.ID))
		return nil, pkgerrors.NewAlreadyExistsError("user", MsgEmailRegistered)
	}

	created, err := uc.repo.Create(ctx, &domain.User{
		Name:  in.Name,
		Email: in.Email,
	})
	if err != nil {
		log.Error("failed to create user", zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to create user", err)
	}

	log.Info("user created", zap.Int64("id", created.ID))
	return &CreateUserResponse{User: toDTO(created)}, nil
}

// UpdateUser overwrites the supplied fields of an existing user.
// An email held by a different user is rejected; the user's own email is not a conflict.
func (uc *Service) UpdateUser(ctx context.Context, in UpdateUserRequest) (*UpdateUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("updating user",
		zap.Int64("id", in.ID),
		zap.Bool("name_supplied", in.Name != nil),
		zap.Bool("email_supplied", in.Email != nil),
	)

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, validationError(err)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if _, err := uc.repo.GetByID(ctx, in.ID); err != nil {
		return nil, uc.translateLookupError(log, in.ID, err)
	}

	if in.Email != nil {
		existingUser, err := uc.repo.GetByEmail(ctx, *in.Email)
		if err != nil {
			log.Error("failed to check existing email", zap.String("email", *in.Email), zap.Error(err))
			return nil, pkgerrors.NewInternalError("failed to validate email uniqueness", err)
		}
		if existingUser != nil && existingUser.ID != in.ID {
			log.Warn("email already exists", zap.String("email", *in.Email), zap.Int64("existing_id", existingUser.ID))
			return nil, pkgerrors.NewAlreadyExistsError("user", MsgEmailRegistered)
		}
	}

	updated, err := uc.repo.Update(ctx, in.ID, domain.Patch{Name: in.Name, Email: in.Email})
	if err != nil {
		return nil, uc.translateLookupError(log, in.ID, err)
	}

	return &UpdateUserResponse{User: toDTO(updated)}, nil
}

// DeleteUser removes a user. Its ID is never handed out again.
func (uc *Service) DeleteUser(ctx context.Context, in DeleteUserRequest) (*DeleteUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("deleting user", zap.Int64("id", in.ID))

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := uc.repo.Delete(ctx, in.ID); err != nil {
		return nil, uc.translateLookupError(log, in.ID, err)
	}

	return &DeleteUserResponse{ID: in.ID}, nil
}

// GetUser retrieves a user by ID.
func (uc *Service) GetUser(ctx context.Context, in GetUserRequest) (*GetUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	uc.mu.RLock()
	defer uc.mu.RUnlock()

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, uc.translateLookupError(log, in.ID, err)
	}

	return &GetUserResponse{User: toDTO(u)}, nil
}

// ListUsers returns every stored user in creation order.
func (uc *Service) ListUsers(ctx context.Context, _ ListUsersRequest) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Debug("listing users")

	uc.mu.RLock()
	defer uc.mu.RUnlock()

	domainUsers, err := uc.repo.List(ctx)
	if err != nil {
		log.Error("failed to list users", zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to list users", err)
	}

	users := make([]User, len(domainUsers))
	for i := range domainUsers {
		users[i] = toDTO(&domainUsers[i])
	}

	return &ListUsersResponse{Users: users}, nil
}

// translateLookupError maps store errors for a single ID onto the public error taxonomy.
func (uc *Service) translateLookupError(log *zap.Logger, id int64, err error) error {
	if errors.Is(err, domain.ErrUserNotFound) {
		log.Warn("user not found", zap.Int64("id", id))
		return pkgerrors.NewNotFoundError("user", MsgUserNotFound)
	}
	log.Error("user store failure", zap.Int64("id", id), zap.Error(err))
	return pkgerrors.NewInternalError("user store failure", err)
}

var _ Usecase = (*Service)(nil)

func toDTO(u *domain.User) User {
	return User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
