package session

import (
	"context"
	"sync"
	"time"

	"github.com/leadfoundry/leadfoundry/pkg/clock"
)

// MemoryStore implements Store using an in-memory map guarded by a single
// mutex. Sessions do not survive a process restart; deployments that need
// restart-safe sessions use the redis or postgres backends instead.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	duration time.Duration
	clk      clock.Clock

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryStore creates an in-memory session store. A zero duration falls
// back to DefaultDuration; a nil clk falls back to the system clock.
func NewMemoryStore(duration time.Duration, clk clock.Clock) *MemoryStore {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		duration: duration,
		clk:      clk,
	}
}

// Create generates a fresh token and stores the session.
func (s *MemoryStore) Create(_ context.Context, userID string) (*Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	sess := &Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.duration),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[token] = sess
	return sess, nil
}

// Resolve returns the session for token, or nil, nil if unknown or expired.
// An expired record found here is removed immediately so a later sweep does
// no redundant work.
func (s *MemoryStore) Resolve(_ context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if s.clk.Now().After(sess.ExpiresAt) {
		delete(s.sessions, token)
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for expired
	}
	return sess, nil
}

// Revoke removes the session for token, reporting whether it was present.
func (s *MemoryStore) Revoke(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[token]
	delete(s.sessions, token)
	return ok, nil
}

// Sweep removes expired sessions and returns the number removed.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	removed := 0
	for token, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of records currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartSweepRoutine starts a background goroutine that periodically removes
// expired sessions. The goroutine is stopped when Close is called.
func (s *MemoryStore) StartSweepRoutine(interval time.Duration) {
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

// Close stops the sweep goroutine and waits for it to exit.
// It is safe to call Close even if StartSweepRoutine was never called.
func (s *MemoryStore) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
