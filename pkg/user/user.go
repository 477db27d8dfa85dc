// Package user provides the user record store consumed by the auth service.
// The store holds credentials and profile data; session state lives in the
// session package and references users only by ID.
package user

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateEmail is returned by Create when the email is already taken.
var ErrDuplicateEmail = errors.New("email already registered")

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	Company      string    `json:"company,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store defines the interface for user persistence.
type Store interface {
	// Create persists a new user. Returns ErrDuplicateEmail if the email
	// is already registered.
	Create(ctx context.Context, u *User) error

	// GetByEmail retrieves a user by email. Returns nil, nil if not found.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by ID. Returns nil, nil if not found.
	GetByID(ctx context.Context, id string) (*User, error)
}
