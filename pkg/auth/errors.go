package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors exposed to dispatchers. Each maps to a distinct
// caller-visible message; none leaks more than its message says.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The two cases are deliberately indistinguishable to resist account
	// enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrDuplicateEmail is returned by Register when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrWeakInput is returned by Register when a field fails validation.
	// Wrapped instances carry the failing field in their message.
	ErrWeakInput = errors.New("invalid input")

	// ErrTokenInvalid is returned when a bearer token is unknown, revoked,
	// or expired. The three cases are not distinguished.
	ErrTokenInvalid = errors.New("token invalid or expired")

	// ErrPersistenceFailure is the opaque upstream failure surfaced to
	// callers. Detail is logged, never returned.
	ErrPersistenceFailure = errors.New("internal error")
)

// RateLimitedError reports a rejected attempt and how long to wait. It is a
// normal, expected outcome the caller must branch on, never a fatal
// condition.
type RateLimitedError struct {
	RetryAfterSeconds int
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfterSeconds)
}
