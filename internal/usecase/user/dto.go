package user

import "time"

// CreateUserRequest represents the request payload for creating a new user.
type CreateUserRequest struct {
	Name  string `validate:"required"`
	Email string `validate:"required"`
}

// CreateUserResponse carries the stored user, including its assigned ID and creation time.
type CreateUserResponse struct {
	User
}

// UpdateUserRequest represents the request payload for updating an existing user.
// Nil fields are left untouched; supplied fields must not be empty.
type UpdateUserRequest struct {
	ID    int64
	Name  *string `validate:"omitempty,min=1"`
	Email *string `validate:"omitempty,min=1"`
}

// UpdateUserResponse carries the user after the update was applied.
type UpdateUserResponse struct {
	User
}

// DeleteUserRequest represents the request payload for deleting a user.
type DeleteUserRequest struct {
	ID int64
}

// DeleteUserResponse represents the response payload after deleting a user.
type DeleteUserResponse struct {
	ID int64
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID int64
}

// GetUserResponse represents the response payload for user details.
type GetUserResponse struct {
	User
}

// ListUsersRequest represents the request payload for listing users.
type ListUsersRequest struct{}

// ListUsersResponse represents the response payload for user listing, in creation order.
type ListUsersResponse struct {
	Users []User
}

// User represents a user DTO (Data Transfer Object) for API responses.
type User struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}
