// Package audit provides security-event recording for the platform. The auth
// service and rate-limit middleware emit typed events into a Recorder sink;
// sinks must never fail a request, only log their own errors.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType categorizes security events.
type EventType string

const (
	// EventLoginFailure is a failed credential check.
	EventLoginFailure EventType = "login_failure"

	// EventLoginSuccess is a successful login.
	EventLoginSuccess EventType = "login_success"

	// EventRateLimitExceeded is an attempt rejected by the rate limiter.
	EventRateLimitExceeded EventType = "rate_limit_exceeded"

	// EventBruteForceAttempt is a caller that exhausted its login budget.
	EventBruteForceAttempt EventType = "brute_force_attempt"
)

// Event is one recorded security event.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	IP     string `json:"ip,omitempty"`
	Email  string `json:"email,omitempty"`
	UserID string `json:"user_id,omitempty"`

	// Reason is set on login_failure events.
	Reason string `json:"reason,omitempty"`

	// Action and RetryAfterSeconds are set on rate_limit_exceeded events.
	Action            string `json:"action,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`

	// FailedAttempts is set on brute_force_attempt events.
	FailedAttempts int `json:"failed_attempts,omitempty"`
}

// NewEvent creates an event of the given type stamped with a fresh ID.
func NewEvent(t EventType) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      t,
	}
}

// WithIP sets the client network address.
func (e *Event) WithIP(ip string) *Event {
	e.IP = ip
	return e
}

// WithUser sets the user identity fields.
func (e *Event) WithUser(userID, email string) *Event {
	e.UserID = userID
	e.Email = email
	return e
}

// WithEmail sets only the email, for events without a resolved user.
func (e *Event) WithEmail(email string) *Event {
	e.Email = email
	return e
}

// WithReason sets the failure reason.
func (e *Event) WithReason(reason string) *Event {
	e.Reason = reason
	return e
}

// WithRateLimit sets the rejected action and its retry delay.
func (e *Event) WithRateLimit(action string, retryAfterSeconds int) *Event {
	e.Action = action
	e.RetryAfterSeconds = retryAfterSeconds
	return e
}

// WithFailedAttempts sets the exhausted-attempt count.
func (e *Event) WithFailedAttempts(n int) *Event {
	e.FailedAttempts = n
	return e
}
