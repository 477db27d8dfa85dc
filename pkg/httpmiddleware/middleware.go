// Package httpmiddleware provides the HTTP gates in front of the handlers:
// client identification, rate-limit admission, and bearer-token
// authentication. The two gates consult independent structures and never
// hold one's lock while touching the other.
package httpmiddleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/leadfoundry/leadfoundry/pkg/audit"
	"github.com/leadfoundry/leadfoundry/pkg/auth"
	"github.com/leadfoundry/leadfoundry/pkg/ratelimit"
	"github.com/leadfoundry/leadfoundry/pkg/user"
)

// contextKey is a private type for context keys.
type contextKey int

const (
	userContextKey contextKey = iota
	decisionContextKey
)

// ClientIP extracts the caller's network address: the first entry of
// X-Forwarded-For when present, otherwise the connection's remote host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// BearerToken extracts the bearer token from the Authorization header, or ""
// when absent.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFrom returns the authenticated user stored in ctx, if any.
func UserFrom(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userContextKey).(*user.User)
	return u, ok
}

// DecisionFrom returns the admission decision stored in ctx by RateLimit,
// if any. Handlers use it to detect exhausted budgets.
func DecisionFrom(ctx context.Context) (ratelimit.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey).(ratelimit.Decision)
	return d, ok
}

// errorResponse is the JSON body for middleware rejections.
type errorResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// WriteJSONError writes a JSON error body with the given status.
func WriteJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

// RateLimit gates requests through the limiter under the given action class.
// Rejections get HTTP 429 with a Retry-After header and are reported to the
// event sink; admitted requests carry their Decision in the context.
func RateLimit(lim *ratelimit.Limiter, action string, events audit.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			d := lim.Allow(ip, action)

			if !d.Allowed {
				if events != nil {
					event := audit.NewEvent(audit.EventRateLimitExceeded).
						WithIP(ip).
						WithRateLimit(action, d.RetryAfterSeconds)
					if err := events.Record(r.Context(), *event); err != nil {
						slog.Error("ratelimit: recording event failed", "error", err)
					}
				}

				rlErr := &auth.RateLimitedError{RetryAfterSeconds: d.RetryAfterSeconds}
				w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(errorResponse{
					Error:             rlErr.Error(),
					RetryAfterSeconds: d.RetryAfterSeconds,
				})
				return
			}

			ctx := context.WithValue(r.Context(), decisionContextKey, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth gates requests behind bearer-token authentication. The
// resolved user is stored in the request context for handlers.
func RequireAuth(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				WriteJSONError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			u, err := svc.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrTokenInvalid) {
					WriteJSONError(w, http.StatusUnauthorized, auth.ErrTokenInvalid.Error())
					return
				}
				WriteJSONError(w, http.StatusInternalServerError, auth.ErrPersistenceFailure.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
