// Package postgres provides PostgreSQL storage for sessions.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leadfoundry/leadfoundry/pkg/session"
)

// Store implements session.Store using PostgreSQL. Expiry is enforced in SQL
// against the database clock, so a token past its expiry never resolves even
// before the sweep removes the row.
type Store struct {
	db       *sql.DB
	duration time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// Config configures the PostgreSQL session store.
type Config struct {
	Duration time.Duration
}

// New creates a new PostgreSQL session store.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.Duration <= 0 {
		cfg.Duration = session.DefaultDuration
	}
	return &Store{
		db:       db,
		duration: cfg.Duration,
	}
}

// Create generates a fresh token and inserts the session.
func (s *Store) Create(ctx context.Context, userID string) (*session.Session, error) {
	token, err := session.GenerateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &session.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.duration),
	}

	query := `
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query,
		sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt,
	); err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return sess, nil
}

// Resolve returns the session for token, or nil, nil if unknown or expired.
// An expired row found here is deleted immediately.
func (s *Store) Resolve(ctx context.Context, token string) (*session.Session, error) {
	query := `
		SELECT token, user_id, created_at, expires_at
		FROM sessions
		WHERE token = $1
	`
	var sess session.Session
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if time.Now().After(sess.ExpiresAt) {
		if _, err := s.Revoke(ctx, token); err != nil {
			return nil, err
		}
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for expired
	}
	return &sess, nil
}

// Revoke deletes the session for token, reporting whether a row was removed.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// Sweep deletes expired sessions and returns the number removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("sweeping sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return int(n), nil
}

// StartSweepRoutine starts a background goroutine that periodically removes
// expired sessions. The goroutine is stopped when Close is called.
func (s *Store) StartSweepRoutine(interval time.Duration) {
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
				_, _ = s.Sweep(ctx)
			}
		}
	}()
}

// Close stops the sweep goroutine. The *sql.DB is owned by the caller and is
// not closed here.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Verify interface compliance.
var _ session.Store = (*Store)(nil)
