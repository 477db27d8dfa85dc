package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadfoundry/leadfoundry/pkg/audit"
	"github.com/leadfoundry/leadfoundry/pkg/session"
	"github.com/leadfoundry/leadfoundry/pkg/user"
)

const (
	testEmail    = "owner@example.com"
	testPassword = "correcth0rse"
	testIP       = "198.51.100.7"
)

// captureRecorder keeps recorded events in memory for assertions.
type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *captureRecorder) Record(_ context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *captureRecorder) Query(_ context.Context, _ audit.QueryFilter) ([]audit.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Event(nil), r.events...), nil
}

func (r *captureRecorder) Close() error { return nil }

func (r *captureRecorder) byType(t audit.EventType) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestService() (*Service, *captureRecorder) {
	rec := &captureRecorder{}
	svc := NewService(Config{
		Sessions: session.NewMemoryStore(time.Hour, nil),
		Users:    user.NewMemoryStore(),
		Events:   rec,
	})
	return svc, rec
}

func registerTestUser(t *testing.T, svc *Service) *Result {
	t.Helper()
	res, err := svc.Register(context.Background(), RegisterInput{
		Email:    testEmail,
		Password: testPassword,
		Name:     "Ana",
	})
	require.NoError(t, err)
	return res
}

func TestRegister_Success(t *testing.T) {
	svc, _ := newTestService()

	res := registerTestUser(t, svc)
	assert.NotEmpty(t, res.User.ID)
	assert.NotEmpty(t, res.Token)
	assert.NotEqual(t, testPassword, res.User.PasswordHash, "password must be hashed")
	assert.True(t, res.ExpiresAt.After(time.Now()))

	// The returned token authenticates immediately.
	u, err := svc.Authenticate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, u.ID)
}

func TestRegister_WeakInput(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"empty email", RegisterInput{Email: "", Password: testPassword}},
		{"malformed email", RegisterInput{Email: "not-an-email", Password: testPassword}},
		{"weak password", RegisterInput{Email: testEmail, Password: "short"}},
		{"letters-only password", RegisterInput{Email: testEmail, Password: "abcdefgh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			assert.ErrorIs(t, err, ErrWeakInput)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	registerTestUser(t, svc)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    testEmail,
		Password: testPassword,
	})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestLogin_Success(t *testing.T) {
	svc, rec := newTestService()
	reg := registerTestUser(t, svc)

	res, err := svc.Login(context.Background(), testEmail, testPassword, testIP)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)
	assert.NotEqual(t, reg.Token, res.Token, "each login issues a fresh token")

	events := rec.byType(audit.EventLoginSuccess)
	require.Len(t, events, 1)
	assert.Equal(t, reg.User.ID, events[0].UserID)
	assert.Equal(t, testIP, events[0].IP)
}

func TestLogin_UnknownEmailAndWrongPasswordAreIdentical(t *testing.T) {
	svc, rec := newTestService()
	registerTestUser(t, svc)
	ctx := context.Background()

	_, errUnknown := svc.Login(ctx, "nobody@example.com", testPassword, testIP)
	_, errWrong := svc.Login(ctx, testEmail, "wrong-passw0rd", testIP)

	require.Error(t, errUnknown)
	require.Error(t, errWrong)
	assert.Equal(t, errUnknown, errWrong, "failure modes must be one error value")
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)

	failures := rec.byType(audit.EventLoginFailure)
	require.Len(t, failures, 2)
	assert.Equal(t, failures[0].Reason, failures[1].Reason,
		"event reasons must not distinguish the failure modes")
}

func TestLogout_Idempotent(t *testing.T) {
	svc, _ := newTestService()
	res := registerTestUser(t, svc)
	ctx := context.Background()

	ok, err := svc.Logout(ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Logout(ctx, res.Token)
	require.NoError(t, err)
	assert.False(t, ok, "second logout finds nothing")

	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid, "logout invalidates immediately")
}

func TestAuthenticate_UnknownToken(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Authenticate(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestAuthenticate_ReflectsProfileEdits(t *testing.T) {
	users := user.NewMemoryStore()
	svc := NewService(Config{
		Sessions: session.NewMemoryStore(time.Hour, nil),
		Users:    users,
	})
	res, err := svc.Register(context.Background(), RegisterInput{
		Email:    testEmail,
		Password: testPassword,
		Name:     "Ana",
	})
	require.NoError(t, err)

	// Edit the profile behind the session's back.
	stored, err := users.GetByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	stored.Name = "Ana Maria"
	require.NoError(t, users.Update(context.Background(), stored))

	u, err := svc.Authenticate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", u.Name,
		"sessions store only the user ID, so edits show up immediately")
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword(testPassword)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, testPassword))
	assert.False(t, VerifyPassword(hash, "other-passw0rd"))
}

func TestDummyHashIsValidBcrypt(t *testing.T) {
	// The constant-work login path depends on this comparing cleanly.
	assert.False(t, VerifyPassword(dummyHash, "anything"))
}

func TestService_PersistenceFailureIsOpaque(t *testing.T) {
	svc := NewService(Config{
		Sessions: session.NewMemoryStore(time.Hour, nil),
		Users:    failingUserStore{},
	})

	_, err := svc.Login(context.Background(), testEmail, testPassword, testIP)
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.Equal(t, "internal error", err.Error(), "no internal detail leaks")
}

// failingUserStore fails every operation.
type failingUserStore struct{}

func (failingUserStore) Create(context.Context, *user.User) error {
	return errors.New("disk on fire")
}

func (failingUserStore) GetByEmail(context.Context, string) (*user.User, error) {
	return nil, errors.New("disk on fire")
}

func (failingUserStore) GetByID(context.Context, string) (*user.User, error) {
	return nil, errors.New("disk on fire")
}
