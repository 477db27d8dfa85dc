// Package auth implements the credential flows: register, login, logout, and
// bearer-token authentication. The service composes the session store with
// the user store and the password hash primitive; it owns no session or user
// state of its own.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadfoundry/leadfoundry/pkg/audit"
	"github.com/leadfoundry/leadfoundry/pkg/session"
	"github.com/leadfoundry/leadfoundry/pkg/user"
	"github.com/leadfoundry/leadfoundry/pkg/validate"
)

// Config wires the service's collaborators.
type Config struct {
	Sessions session.Store
	Users    user.Store

	// Events receives security events. Optional; nil drops them.
	Events audit.Recorder
}

// Service implements the credential flows.
type Service struct {
	sessions session.Store
	users    user.Store
	events   audit.Recorder
}

// NewService creates an auth service over the given collaborators.
func NewService(cfg Config) *Service {
	return &Service{
		sessions: cfg.Sessions,
		users:    cfg.Users,
		events:   cfg.Events,
	}
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Company  string
}

// Result is a successful register or login outcome.
type Result struct {
	User      *user.User
	Token     string
	ExpiresAt time.Time
}

// Register creates a user account and an initial session.
//
// Field validation failures map to ErrWeakInput, a taken email to
// ErrDuplicateEmail, and store failures to ErrPersistenceFailure with detail
// logged, not returned.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	if !validate.NonEmpty(in.Email) {
		return nil, fmt.Errorf("%w: email is required", ErrWeakInput)
	}
	if !validate.Email(in.Email) {
		return nil, fmt.Errorf("%w: malformed email", ErrWeakInput)
	}
	if !validate.PasswordStrength(in.Password) {
		return nil, fmt.Errorf("%w: password too weak", ErrWeakInput)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		slog.Error("auth: hashing password failed", "error", err)
		return nil, ErrPersistenceFailure
	}

	u := &user.User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Company:      in.Company,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		slog.Error("auth: creating user failed", "error", err)
		return nil, ErrPersistenceFailure
	}

	sess, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		slog.Error("auth: creating session failed", "error", err, "user_id", u.ID)
		return nil, ErrPersistenceFailure
	}

	return &Result{User: u, Token: sess.Token, ExpiresAt: sess.ExpiresAt}, nil
}

// Login verifies credentials and creates a session. Unknown email and wrong
// password return the identical ErrInvalidCredentials value, and the unknown
// email path still runs a bcrypt compare so the two are not separable by
// timing. ip is recorded on the emitted security events.
func (s *Service) Login(ctx context.Context, email, password, ip string) (*Result, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		slog.Error("auth: looking up user failed", "error", err)
		return nil, ErrPersistenceFailure
	}

	if u == nil {
		VerifyPassword(dummyHash, password)
		s.record(ctx, audit.NewEvent(audit.EventLoginFailure).
			WithIP(ip).WithEmail(email).WithReason("unknown account or bad password"))
		return nil, ErrInvalidCredentials
	}

	if !VerifyPassword(u.PasswordHash, password) {
		s.record(ctx, audit.NewEvent(audit.EventLoginFailure).
			WithIP(ip).WithEmail(email).WithReason("unknown account or bad password"))
		return nil, ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		slog.Error("auth: creating session failed", "error", err, "user_id", u.ID)
		return nil, ErrPersistenceFailure
	}

	s.record(ctx, audit.NewEvent(audit.EventLoginSuccess).
		WithIP(ip).WithUser(u.ID, u.Email))

	return &Result{User: u, Token: sess.Token, ExpiresAt: sess.ExpiresAt}, nil
}

// Logout revokes the session for token, reporting whether one existed.
// Logging out an absent or expired token is not an error.
func (s *Service) Logout(ctx context.Context, token string) (bool, error) {
	ok, err := s.sessions.Revoke(ctx, token)
	if err != nil {
		slog.Error("auth: revoking session failed", "error", err)
		return false, ErrPersistenceFailure
	}
	return ok, nil
}

// Authenticate resolves a bearer token to the full user record. The session
// stores only the user ID, so profile edits show up without session
// invalidation.
func (s *Service) Authenticate(ctx context.Context, token string) (*user.User, error) {
	sess, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		slog.Error("auth: resolving session failed", "error", err)
		return nil, ErrPersistenceFailure
	}
	if sess == nil {
		return nil, ErrTokenInvalid
	}

	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		slog.Error("auth: loading user failed", "error", err, "user_id", sess.UserID)
		return nil, ErrPersistenceFailure
	}
	if u == nil {
		// Account deleted out from under a live session.
		return nil, ErrTokenInvalid
	}
	return u, nil
}

// record emits a security event, dropping it when no recorder is wired.
// Sink errors are logged and never fail the request.
func (s *Service) record(ctx context.Context, event *audit.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, *event); err != nil {
		slog.Error("auth: recording security event failed", "error", err, "type", string(event.Type))
	}
}
