package audit

import (
	"context"
	"log/slog"
	"time"
)

// Recorder consumes security events.
type Recorder interface {
	// Record persists one event.
	Record(ctx context.Context, event Event) error

	// Query retrieves events matching the filter, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Close releases resources.
	Close() error
}

// QueryFilter defines criteria for querying security events.
type QueryFilter struct {
	StartTime *time.Time
	EndTime   *time.Time
	Type      EventType
	IP        string
	Email     string
	UserID    string
	Limit     int
	Offset    int
}

// SlogRecorder writes events to a structured logger. It keeps no history, so
// Query always returns nothing. It is the sink of last resort: always
// available, never failing.
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder creates a recorder over logger, defaulting to slog.Default.
func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogRecorder{logger: logger}
}

// Record logs the event with structured attributes.
func (r *SlogRecorder) Record(ctx context.Context, event Event) error {
	attrs := []any{
		"event_id", event.ID,
		"type", string(event.Type),
	}
	if event.IP != "" {
		attrs = append(attrs, "ip", event.IP)
	}
	if event.Email != "" {
		attrs = append(attrs, "email", event.Email)
	}
	if event.UserID != "" {
		attrs = append(attrs, "user_id", event.UserID)
	}
	if event.Reason != "" {
		attrs = append(attrs, "reason", event.Reason)
	}
	if event.Action != "" {
		attrs = append(attrs, "action", event.Action, "retry_after_seconds", event.RetryAfterSeconds)
	}
	if event.FailedAttempts > 0 {
		attrs = append(attrs, "failed_attempts", event.FailedAttempts)
	}

	if event.Type == EventLoginSuccess {
		r.logger.InfoContext(ctx, "security event", attrs...)
	} else {
		r.logger.WarnContext(ctx, "security event", attrs...)
	}
	return nil
}

// Query returns no events: the slog sink keeps no history.
func (r *SlogRecorder) Query(_ context.Context, _ QueryFilter) ([]Event, error) {
	return nil, nil
}

// Close is a no-op.
func (r *SlogRecorder) Close() error { return nil }

// Verify interface compliance.
var _ Recorder = (*SlogRecorder)(nil)
