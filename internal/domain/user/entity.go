package user

import "time"

// User represents a user entity in the system.
type User struct {
	ID        int64     // ID is assigned by the store and never reused
	Name      string    // Name is the full name of the user
	Email     string    // Email is unique across all stored users
	CreatedAt time.Time // CreatedAt is set once when the user is created
}

// Patch carries the optional fields of an update. A nil field is left untouched.
type Patch struct {
	Name  *string
	Email *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil
}

// Apply overwrites the supplied fields of u.
func (p Patch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
}
