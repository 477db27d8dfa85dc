// Package redis provides Redis-backed storage for sessions. Key TTLs carry
// the expiry, so sessions survive a process restart and Redis reclaims
// expired records on its own.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/leadfoundry/leadfoundry/pkg/session"
)

const keyPrefix = "session:"

// Store implements session.Store using Redis.
type Store struct {
	client   *goredis.Client
	duration time.Duration
}

// Config configures the Redis session store.
type Config struct {
	Addr     string
	Password string
	DB       int
	Duration time.Duration
}

// New creates a Redis session store and verifies connectivity with a ping.
func New(cfg Config) (*Store, error) {
	if cfg.Duration <= 0 {
		cfg.Duration = session.DefaultDuration
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &Store{client: client, duration: cfg.Duration}, nil
}

func key(token string) string {
	return keyPrefix + token
}

// Create generates a fresh token and stores the session with a TTL.
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

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshaling session: %w", err)
	}

	if err := s.client.Set(ctx, key(token), data, s.duration).Err(); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return sess, nil
}

// Resolve returns the session for token, or nil, nil if unknown or expired.
// Redis evicts expired keys itself, but the expiry is re-checked here in case
// the key has not been reclaimed yet.
func (s *Store) Resolve(ctx context.Context, token string) (*session.Session, error) {
	val, err := s.client.Get(ctx, key(token)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("fetching session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}

	if time.Now().After(sess.ExpiresAt) {
		if _, err := s.Revoke(ctx, token); err != nil {
			return nil, err
		}
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for expired
	}
	return &sess, nil
}

// Revoke deletes the session for token, reporting whether a key was removed.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Del(ctx, key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	return n > 0, nil
}

// Sweep is a no-op: Redis reclaims expired keys through key TTLs.
func (s *Store) Sweep(_ context.Context) (int, error) {
	return 0, nil
}

// Close releases the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Verify interface compliance.
var _ session.Store = (*Store)(nil)
