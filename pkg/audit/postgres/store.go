// Package postgres provides PostgreSQL storage for security events.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/leadfoundry/leadfoundry/pkg/audit"
)

const (
	defaultRetentionDays = 90
	defaultQueryLimit    = 100
	maxQueryLimit        = 10000
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// eventColumns lists columns returned by security-event SELECT queries.
var eventColumns = []string{
	"id", "timestamp", "type", "ip", "email", "user_id",
	"reason", "action", "retry_after_seconds", "failed_attempts",
}

// Store implements audit.Recorder using PostgreSQL.
type Store struct {
	db            *sql.DB
	retentionDays int

	cancel context.CancelFunc
	done   chan struct{}
}

// Config configures the PostgreSQL security-event store.
type Config struct {
	RetentionDays int
}

// New creates a new PostgreSQL security-event store.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	return &Store{
		db:            db,
		retentionDays: cfg.RetentionDays,
	}
}

// Record inserts one security event.
func (s *Store) Record(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO security_events
		(id, timestamp, type, ip, email, user_id, reason, action, retry_after_seconds, failed_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.Type),
		event.IP,
		event.Email,
		event.UserID,
		event.Reason,
		event.Action,
		event.RetryAfterSeconds,
		event.FailedAttempts,
	)
	if err != nil {
		return fmt.Errorf("inserting security event: %w", err)
	}
	return nil
}

// applyFilter adds filter conditions to a SELECT builder.
func applyFilter(qb sq.SelectBuilder, filter audit.QueryFilter) sq.SelectBuilder {
	if filter.StartTime != nil {
		qb = qb.Where(sq.GtOrEq{"timestamp": *filter.StartTime})
	}
	if filter.EndTime != nil {
		qb = qb.Where(sq.LtOrEq{"timestamp": *filter.EndTime})
	}
	if filter.Type != "" {
		qb = qb.Where(sq.Eq{"type": string(filter.Type)})
	}
	if filter.IP != "" {
		qb = qb.Where(sq.Eq{"ip": filter.IP})
	}
	if filter.Email != "" {
		qb = qb.Where(sq.Eq{"email": filter.Email})
	}
	if filter.UserID != "" {
		qb = qb.Where(sq.Eq{"user_id": filter.UserID})
	}
	return qb
}

// Query retrieves security events matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	qb := applyFilter(psq.Select(eventColumns...).From("security_events"), filter).
		OrderBy("timestamp DESC").
		Limit(uint64(limit))
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building security event query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying security events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var typ string
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &typ, &e.IP, &e.Email, &e.UserID,
			&e.Reason, &e.Action, &e.RetryAfterSeconds, &e.FailedAttempts,
		); err != nil {
			return nil, fmt.Errorf("scanning security event: %w", err)
		}
		e.Type = audit.EventType(typ)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Purge deletes events older than the retention period and returns the
// number removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM security_events WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging security events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return int(n), nil
}

// StartRetentionRoutine starts a background goroutine that periodically
// purges events past retention. The goroutine is stopped when Close is called.
func (s *Store) StartRetentionRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.Purge(ctx); err != nil {
					slog.Error("audit: retention purge failed", "error", err)
				} else if n > 0 {
					slog.Debug("audit: purged expired events", "count", n)
				}
			}
		}
	}()
}

// Close stops the retention goroutine. The *sql.DB is owned by the caller
// and is not closed here.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Verify interface compliance.
var _ audit.Recorder = (*Store)(nil)
