package user

import "errors"

// ErrUserNotFound is returned by stores when no user matches the requested ID.
var ErrUserNotFound = errors.New("user not found")
