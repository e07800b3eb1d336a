package user

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "user-crud-service/internal/domain/user"
	pkgerrors "user-crud-service/pkg/errors"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, id int64, patch domain.Patch) (*domain.User, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

var createdAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupTestUsecase(t *testing.T) (*Service, *MockRepository) {
	mockRepo := new(MockRepository)
	uc := New(mockRepo, zaptest.NewLogger(t))
	return uc, mockRepo
}

func strPtr(s string) *string { return &s }

// ==================== CREATE USER TESTS ====================

func TestCreateUser_Success(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	req := CreateUserRequest{Name: "Test User", Email: "test@example.com"}

	mockRepo.On("GetByEmail", ctx, req.Email).Return(nil, nil)
	mockRepo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Name == req.Name && u.Email == req.Email && u.ID == 0
	})).Return(&domain.User{ID: 1, Name: req.Name, Email: req.Email, CreatedAt: createdAt}, nil)

	resp, err := uc.CreateUser(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, "Test User", resp.Name)
	assert.Equal(t, "test@example.com", resp.Email)
	assert.Equal(t, createdAt, resp.CreatedAt)
	mockRepo.AssertExpectations(t)
}

func TestCreateUser_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateUserRequest
		message string
	}{
		{"missing name", CreateUserRequest{Email: "a@example.com"}, "name is required"},
		{"missing email", CreateUserRequest{Name: "A"}, "email is required"},
		{"missing both", CreateUserRequest{}, "name is required, email is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, mockRepo := setupTestUsecase(t)

			resp, err := uc.CreateUser(context.Background(), tt.req)

			assert.Nil(t, resp)
			var vErr *pkgerrors.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.message, vErr.Message)
			mockRepo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByEmail", ctx, "test@example.com").
		Return(&domain.User{ID: 1, Name: "Someone Else", Email: "test@example.com"}, nil)

	resp, err := uc.CreateUser(ctx, CreateUserRequest{Name: "Different Name", Email: "test@example.com"})

	assert.Nil(t, resp)
	var aErr *pkgerrors.AlreadyExistsError
	require.ErrorAs(t, err, &aErr)
	assert.Equal(t, MsgEmailRegistered, aErr.Error())
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateUser_EmailIsCaseSensitive(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByEmail", ctx, "Test@Example.com").Return(nil, nil)
	mockRepo.On("Create", ctx, mock.Anything).
		Return(&domain.User{ID: 2, Name: "B", Email: "Test@Example.com", CreatedAt: createdAt}, nil)

	resp, err := uc.CreateUser(ctx, CreateUserRequest{Name: "B", Email: "Test@Example.com"})

	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.ID)
}

func TestCreateUser_StoreErrors(t *testing.T) {
	t.Run("email lookup fails", func(t *testing.T) {
		uc, mockRepo := setupTestUsecase(t)
		ctx := context.Background()
		mockRepo.On("GetByEmail", ctx, "a@example.com").Return(nil, errors.New("boom"))

		_, err := uc.CreateUser(ctx, CreateUserRequest{Name: "A", Email: "a@example.com"})

		var iErr *pkgerrors.InternalError
		assert.ErrorAs(t, err, &iErr)
	})

	t.Run("insert fails", func(t *testing.T) {
		uc, mockRepo := setupTestUsecase(t)
		ctx := context.Background()
		mockRepo.On("GetByEmail", ctx, "a@example.com").Return(nil, nil)
		mockRepo.On("Create", ctx, mock.Anything).Return(nil, errors.New("boom"))

		_, err := uc.CreateUser(ctx, CreateUserRequest{Name: "A", Email: "a@example.com"})

		var iErr *pkgerrors.InternalError
		assert.ErrorAs(t, err, &iErr)
	})
}

// ==================== UPDATE USER TESTS ====================

func TestUpdateUser_NameOnly(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	existing := &domain.User{ID: 1, Name: "Test User", Email: "test@example.com", CreatedAt: createdAt}
	name := strPtr("Updated Name")

	mockRepo.On("GetByID", ctx, int64(1)).Return(existing, nil)
	mockRepo.On("Update", ctx, int64(1), domain.Patch{Name: name}).
		Return(&domain.User{ID: 1, Name: "Updated Name", Email: "test@example.com", CreatedAt: createdAt}, nil)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 1, Name: name})

	require.NoError(t, err)
	assert.Equal(t, "Updated Name", resp.Name)
	assert.Equal(t, "test@example.com", resp.Email)
	assert.Equal(t, createdAt, resp.CreatedAt)
	mockRepo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestUpdateUser_EmailOnly(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	email := strPtr("new@example.com")
	mockRepo.On("GetByID", ctx, int64(1)).Return(&domain.User{ID: 1, Name: "A", Email: "old@example.com"}, nil)
	mockRepo.On("GetByEmail", ctx, "new@example.com").Return(nil, nil)
	mockRepo.On("Update", ctx, int64(1), domain.Patch{Email: email}).
		Return(&domain.User{ID: 1, Name: "A", Email: "new@example.com", CreatedAt: createdAt}, nil)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 1, Email: email})

	require.NoError(t, err)
	assert.Equal(t, "A", resp.Name)
	assert.Equal(t, "new@example.com", resp.Email)
	mockRepo.AssertExpectations(t)
}

func TestUpdateUser_OwnEmailIsNotAConflict(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	own := &domain.User{ID: 3, Name: "A", Email: "a@example.com", CreatedAt: createdAt}
	email := strPtr("a@example.com")
	mockRepo.On("GetByID", ctx, int64(3)).Return(own, nil)
	mockRepo.On("GetByEmail", ctx, "a@example.com").Return(own, nil)
	mockRepo.On("Update", ctx, int64(3), domain.Patch{Email: email}).Return(own, nil)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 3, Email: email})

	require.NoError(t, err)
	assert.Equal(t, "a@example.com", resp.Email)
}

func TestUpdateUser_EmailHeldByAnotherUser(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(1)).Return(&domain.User{ID: 1, Name: "A", Email: "a@example.com"}, nil)
	mockRepo.On("GetByEmail", ctx, "b@example.com").Return(&domain.User{ID: 2, Name: "B", Email: "b@example.com"}, nil)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 1, Name: strPtr("New"), Email: strPtr("b@example.com")})

	assert.Nil(t, resp)
	var aErr *pkgerrors.AlreadyExistsError
	require.ErrorAs(t, err, &aErr)
	// nothing is written when the email check fails, not even the name
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateUser_NotFound(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(99)).Return(nil, domain.ErrUserNotFound)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 99, Email: strPtr("x@example.com")})

	assert.Nil(t, resp)
	var nfErr *pkgerrors.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, MsgUserNotFound, nfErr.Error())
	mockRepo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestUpdateUser_EmptyFieldRejected(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)

	resp, err := uc.UpdateUser(context.Background(), UpdateUserRequest{ID: 1, Name: strPtr("")})

	assert.Nil(t, resp)
	var vErr *pkgerrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name must not be empty", vErr.Message)
	mockRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestUpdateUser_EmptyPatch(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	existing := &domain.User{ID: 1, Name: "A", Email: "a@example.com", CreatedAt: createdAt}
	mockRepo.On("GetByID", ctx, int64(1)).Return(existing, nil)
	mockRepo.On("Update", ctx, int64(1), domain.Patch{}).Return(existing, nil)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 1})

	require.NoError(t, err)
	assert.Equal(t, "A", resp.Name)
}

func TestUpdateUser_StoreFailure(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(1)).Return(nil, errors.New("connection lost"))

	_, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 1, Name: strPtr("A")})

	var iErr *pkgerrors.InternalError
	assert.ErrorAs(t, err, &iErr)
}

// ==================== DELETE USER TESTS ====================

func TestDeleteUser_Success(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("Delete", ctx, int64(1)).Return(nil)

	resp, err := uc.DeleteUser(ctx, DeleteUserRequest{ID: 1})

	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.ID)
	mockRepo.AssertExpectations(t)
}

func TestDeleteUser_NotFound(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("Delete", ctx, int64(7)).Return(domain.ErrUserNotFound)

	resp, err := uc.DeleteUser(ctx, DeleteUserRequest{ID: 7})

	assert.Nil(t, resp)
	var nfErr *pkgerrors.NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

// ==================== GET USER TESTS ====================

func TestGetUser(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		uc, mockRepo := setupTestUsecase(t)
		ctx := context.Background()
		mockRepo.On("GetByID", ctx, int64(1)).
			Return(&domain.User{ID: 1, Name: "A", Email: "a@example.com", CreatedAt: createdAt}, nil)

		resp, err := uc.GetUser(ctx, GetUserRequest{ID: 1})

		require.NoError(t, err)
		assert.Equal(t, User{ID: 1, Name: "A", Email: "a@example.com", CreatedAt: createdAt}, resp.User)
	})

	t.Run("not found", func(t *testing.T) {
		uc, mockRepo := setupTestUsecase(t)
		ctx := context.Background()
		mockRepo.On("GetByID", ctx, int64(1)).Return(nil, domain.ErrUserNotFound)

		resp, err := uc.GetUser(ctx, GetUserRequest{ID: 1})

		assert.Nil(t, resp)
		var nfErr *pkgerrors.NotFoundError
		assert.ErrorAs(t, err, &nfErr)
	})
}

// ==================== LIST USERS TESTS ====================

func TestListUsers_PreservesOrder(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("List", ctx).Return([]domain.User{
		{ID: 1, Name: "A", Email: "a@example.com", CreatedAt: createdAt},
		{ID: 3, Name: "C", Email: "c@example.com", CreatedAt: createdAt.Add(time.Second)},
	}, nil)

	resp, err := uc.ListUsers(ctx, ListUsersRequest{})

	require.NoError(t, err)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, int64(1), resp.Users[0].ID)
	assert.Equal(t, int64(3), resp.Users[1].ID)
}

func TestListUsers_Empty(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("List", ctx).Return([]domain.User{}, nil)

	resp, err := uc.ListUsers(ctx, ListUsersRequest{})

	require.NoError(t, err)
	assert.NotNil(t, resp.Users)
	assert.Empty(t, resp.Users)
}

func TestListUsers_Error(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("List", ctx).Return(nil, errors.New("boom"))

	_, err := uc.ListUsers(ctx, ListUsersRequest{})

	var iErr *pkgerrors.InternalError
	assert.ErrorAs(t, err, &iErr)
}

// ==================== CONCURRENCY ====================

// fakeRepo is a minimal in-package store used to observe serialization.
type fakeRepo struct {
	mu     sync.Mutex
	users  []domain.User
	nextID int64
}

func (f *fakeRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	stored := domain.User{ID: f.nextID, Name: u.Name, Email: u.Email, CreatedAt: createdAt}
	f.users = append(f.users, stored)
	return &stored, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	// widen the gap between the check and the insert
	time.Sleep(time.Millisecond)
	return nil, nil
}

func (f *fakeRepo) Update(context.Context, int64, domain.Patch) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRepo) Delete(context.Context, int64) error {
	return errors.New("not implemented")
}

func (f *fakeRepo) List(context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.User(nil), f.users...), nil
}

func TestCreateUser_ConcurrentSameEmail(t *testing.T) {
	repo := &fakeRepo{}
	uc := New(repo, zaptest.NewLogger(t))
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.CreateUser(ctx, CreateUserRequest{Name: "Racer", Email: "race@example.com"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var aErr *pkgerrors.AlreadyExistsError
		assert.ErrorAs(t, err, &aErr)
	}
	assert.Equal(t, 1, succeeded)

	users, _ := repo.List(ctx)
	assert.Len(t, users, 1)
}

func TestUpdateUser_WaitsForInFlightRead(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	old := &domain.User{ID: 1, Name: "Old", Email: "old@example.com", CreatedAt: createdAt}
	renamed := &domain.User{ID: 1, Name: "New", Email: "old@example.com", CreatedAt: createdAt}
	read, release := make(chan struct{}), make(chan struct{})

	mockRepo.On("GetByID", ctx, int64(1)).
		Run(func(mock.Arguments) {
			close(read)
			<-release
		}).
		Return(old, nil).Once()
	mockRepo.On("GetByID", ctx, int64(1)).Return(old, nil).Once()
	mockRepo.On("Update", ctx, int64(1), mock.Anything).Return(renamed, nil).Once()
	mockRepo.On("GetByID", ctx, int64(1)).Return(renamed, nil).Once()

	var first *GetUserResponse
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		var err error
		first, err = uc.GetUser(ctx, GetUserRequest{ID: 1})
		assert.NoError(t, err)
	}()
	<-read

	updated := make(chan struct{})
	go func() {
		defer close(updated)
		_, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 1, Name: strPtr("New")})
		assert.NoError(t, err)
	}()

	select {
	case <-updated:
		t.Fatal("update completed while a read was still in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-readDone
	<-updated

	require.NotNil(t, first)
	assert.Equal(t, "Old", first.Name)

	got, err := uc.GetUser(ctx, GetUserRequest{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	mockRepo.AssertExpectations(t)
}
