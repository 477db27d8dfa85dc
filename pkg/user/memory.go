package user

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store using an in-memory map. It backs tests and
// single-process development setups.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]*User
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]*User),
	}
}

// normalizeEmail lowercases the address so lookups are case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create persists a new user, assigning an ID when none is set.
func (s *MemoryStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(u.Email)
	if _, exists := s.byEmail[email]; exists {
		return ErrDuplicateEmail
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	stored := *u
	s.byID[u.ID] = &stored
	s.byEmail[email] = &stored
	return nil
}

// Update replaces the stored record for u.ID. Unknown IDs are a no-op; the
// CRUD layer that calls this treats them as not-found by reading first.
func (s *MemoryStore) Update(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[u.ID]
	if !ok {
		return nil
	}

	updated := *u
	updated.UpdatedAt = time.Now().UTC()
	delete(s.byEmail, normalizeEmail(existing.Email))
	s.byID[u.ID] = &updated
	s.byEmail[normalizeEmail(u.Email)] = &updated
	return nil
}

// GetByEmail retrieves a user by email. Returns nil, nil if not found.
func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	copied := *u
	return &copied, nil
}

// GetByID retrieves a user by ID. Returns nil, nil if not found.
func (s *MemoryStore) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	copied := *u
	return &copied, nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
