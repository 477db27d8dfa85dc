package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/leadfoundry/leadfoundry/pkg/audit"
	"github.com/leadfoundry/leadfoundry/pkg/auth"
	"github.com/leadfoundry/leadfoundry/pkg/httpmiddleware"
	"github.com/leadfoundry/leadfoundry/pkg/ratelimit"
	"github.com/leadfoundry/leadfoundry/pkg/user"
)

// registerRequest is the body of POST /v1/auth/register.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Company  string `json:"company"`
}

// loginRequest is the body of POST /v1/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is the body of successful register and login responses.
type authResponse struct {
	User      *user.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// logoutResponse is the body of POST /v1/auth/logout.
type logoutResponse struct {
	Revoked bool `json:"revoked"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpmiddleware.WriteJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Company:  req.Company,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakInput):
			httpmiddleware.WriteJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrDuplicateEmail):
			httpmiddleware.WriteJSONError(w, http.StatusConflict, err.Error())
		default:
			httpmiddleware.WriteJSONError(w, http.StatusInternalServerError, auth.ErrPersistenceFailure.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		User:      res.User,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpmiddleware.WriteJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ip := httpmiddleware.ClientIP(r)

	res, err := s.auth.Login(r.Context(), req.Email, req.Password, ip)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.reportBruteForce(r, ip, req.Email)
			httpmiddleware.WriteJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}
		httpmiddleware.WriteJSONError(w, http.StatusInternalServerError, auth.ErrPersistenceFailure.Error())
		return
	}

	// A successful login immediately un-penalizes the caller.
	s.limiter.Reset(ip, ratelimit.ActionLogin)

	writeJSON(w, http.StatusOK, authResponse{
		User:      res.User,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	})
}

// reportBruteForce emits a brute_force_attempt event when a failed login
// used up the caller's last admitted attempt in the window.
func (s *Server) reportBruteForce(r *http.Request, ip, email string) {
	d, ok := httpmiddleware.DecisionFrom(r.Context())
	if !ok || d.Remaining > 0 {
		return
	}
	if s.events == nil {
		return
	}

	pol := s.limiter.PolicyFor(ratelimit.ActionLogin)
	event := audit.NewEvent(audit.EventBruteForceAttempt).
		WithIP(ip).
		WithEmail(email).
		WithFailedAttempts(pol.MaxAttempts)
	if err := s.events.Record(r.Context(), *event); err != nil {
		slog.Error("server: recording brute force event failed", "error", err)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := httpmiddleware.BearerToken(r)
	if token == "" {
		httpmiddleware.WriteJSONError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	revoked, err := s.auth.Logout(r.Context(), token)
	if err != nil {
		httpmiddleware.WriteJSONError(w, http.StatusInternalServerError, auth.ErrPersistenceFailure.Error())
		return
	}

	writeJSON(w, http.StatusOK, logoutResponse{Revoked: revoked})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := httpmiddleware.UserFrom(r.Context())
	if !ok {
		httpmiddleware.WriteJSONError(w, http.StatusUnauthorized, auth.ErrTokenInvalid.Error())
		return
	}
	writeJSON(w, http.StatusOK, u)
}
