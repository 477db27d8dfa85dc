// Package session provides bearer-token session management for the platform.
// It defines the Store interface for session persistence and the Session type
// that binds an opaque token to a user identity with an absolute expiry.
package session

import (
	"context"
	"time"
)

// DefaultDuration is the session lifetime applied when none is configured.
const DefaultDuration = 24 * time.Hour

// Session binds an opaque bearer token to a user identity.
type Session struct {
	// Token is the opaque bearer token. Generated at creation, never reused.
	Token string

	// UserID identifies the session owner. Immutable for the life of the
	// session.
	UserID string

	// CreatedAt is when the session was established.
	CreatedAt time.Time

	// ExpiresAt is the absolute expiry. Resolving a session never extends it.
	ExpiresAt time.Time
}

// Store defines the interface for session persistence.
//
// Implementations must be safe for concurrent use and must never resolve a
// token past its expiry, swept or not.
type Store interface {
	// Create generates a fresh token for userID and persists the session.
	Create(ctx context.Context, userID string) (*Session, error)

	// Resolve returns the session for token if it exists and has not
	// expired. Returns nil, nil if the token is unknown or expired.
	Resolve(ctx context.Context, token string) (*Session, error)

	// Revoke removes the session for token, reporting whether it was
	// present. Revoking an absent token is not an error.
	Revoke(ctx context.Context, token string) (bool, error)

	// Sweep removes every expired session and returns the number removed.
	// Safe to call concurrently with any other operation.
	Sweep(ctx context.Context) (int, error)

	// Close stops background routines and releases resources.
	Close() error
}
