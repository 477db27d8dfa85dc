package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadfoundry/leadfoundry/pkg/clock"
)

const (
	memTestDuration   = 24 * time.Hour
	memTestGoroutines = 10
	memTestIterations = 100
	memTestUser       = "user-1"
)

func newTestStore() (*MemoryStore, *clock.Mock) {
	clk := clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewMemoryStore(memTestDuration, clk), clk
}

func TestMemoryStore_CreateAndResolve(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, memTestUser)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, memTestUser, sess.UserID)
	assert.Equal(t, sess.CreatedAt.Add(memTestDuration), sess.ExpiresAt)

	got, err := store.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, memTestUser, got.UserID)
}

func TestMemoryStore_ResolveUnknownToken(t *testing.T) {
	store, _ := newTestStore()

	got, err := store.Resolve(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_TokensAreUniqueAndURLSafe(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	seen := make(map[string]bool)
	for range 50 {
		sess, err := store.Create(ctx, memTestUser)
		require.NoError(t, err)
		assert.False(t, seen[sess.Token], "token reuse")
		seen[sess.Token] = true
		assert.Len(t, sess.Token, 43, "32 bytes base64url without padding")
		assert.NotContains(t, sess.Token, "+")
		assert.NotContains(t, sess.Token, "/")
		assert.NotContains(t, sess.Token, "=")
	}
}

func TestMemoryStore_ExpiryBoundary(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, memTestUser)
	require.NoError(t, err)

	// Just inside the lifetime.
	clk.Advance(memTestDuration - time.Second)
	got, err := store.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	assert.NotNil(t, got, "session should resolve before expiry")

	// Just past it.
	clk.Advance(2 * time.Second)
	got, err = store.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, got, "expired session must never resolve")
}

func TestMemoryStore_ResolveNeverExtendsExpiry(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, memTestUser)
	require.NoError(t, err)
	expiry := sess.ExpiresAt

	clk.Advance(memTestDuration / 2)
	got, err := store.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, expiry, got.ExpiresAt, "resolving must not renew the session")
}

func TestMemoryStore_LazyEvictionOnResolve(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, memTestUser)
	require.NoError(t, err)

	clk.Advance(memTestDuration + time.Second)

	got, err := store.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, store.Len(), "expired record should be evicted on resolve")

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "sweep after lazy eviction has nothing to do")
}

func TestMemoryStore_RevokeIsIdempotent(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, memTestUser)
	require.NoError(t, err)

	ok, err := store.Revoke(ctx, sess.Token)
	require.NoError(t, err)
	assert.True(t, ok, "first revoke removes the session")

	ok, err = store.Revoke(ctx, sess.Token)
	require.NoError(t, err)
	assert.False(t, ok, "second revoke finds nothing")

	got, err := store.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()

	old1, err := store.Create(ctx, "user-old-1")
	require.NoError(t, err)
	old2, err := store.Create(ctx, "user-old-2")
	require.NoError(t, err)

	clk.Advance(memTestDuration + time.Minute)

	fresh, err := store.Create(ctx, "user-fresh")
	require.NoError(t, err)

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	for _, token := range []string{old1.Token, old2.Token} {
		got, err := store.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, got)
	}

	got, err := store.Resolve(ctx, fresh.Token)
	require.NoError(t, err)
	assert.NotNil(t, got, "sweep must not remove live sessions")
}

func TestMemoryStore_SweepRoutineLifecycle(t *testing.T) {
	clk := clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(10*time.Millisecond, clk)
	ctx := context.Background()

	_, err := store.Create(ctx, memTestUser)
	require.NoError(t, err)

	clk.Advance(time.Second)
	store.StartSweepRoutine(20 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond, "sweep routine should remove expired session")

	assert.NoError(t, store.Close())
}

func TestMemoryStore_CloseWithoutStart(t *testing.T) {
	store, _ := newTestStore()
	assert.NoError(t, store.Close(), "Close without StartSweepRoutine should not panic")
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range memTestGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range memTestIterations {
				sess, err := store.Create(ctx, memTestUser)
				if err != nil {
					t.Error(err)
					return
				}
				_, _ = store.Resolve(ctx, sess.Token)
				_, _ = store.Revoke(ctx, sess.Token)
				_, _ = store.Sweep(ctx)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, store.Len())
}
