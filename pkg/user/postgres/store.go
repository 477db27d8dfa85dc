// Package postgres provides PostgreSQL storage for users.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/leadfoundry/leadfoundry/pkg/user"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

// Store implements user.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL user store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists a new user, assigning an ID when none is set. A unique
// violation on the email column maps to user.ErrDuplicateEmail.
func (s *Store) Create(ctx context.Context, u *user.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, password_hash, name, company, created_at, updated_at)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Company, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return user.ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of the stored record for u.ID.
func (s *Store) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users
		SET email = LOWER($2), password_hash = $3, name = $4, company = $5, updated_at = NOW()
		WHERE id = $1
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Company,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return user.ErrDuplicateEmail
		}
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// GetByEmail retrieves a user by email. Returns nil, nil if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `
		SELECT id, email, password_hash, name, company, created_at, updated_at
		FROM users
		WHERE email = LOWER($1)
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

// GetByID retrieves a user by ID. Returns nil, nil if not found.
func (s *Store) GetByID(ctx context.Context, id string) (*user.User, error) {
	query := `
		SELECT id, email, password_hash, name, company, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) scanUser(row *sql.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Company, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

// Verify interface compliance.
var _ user.Store = (*Store)(nil)
