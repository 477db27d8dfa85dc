// Package server assembles the HTTP surface: auth endpoints behind their
// rate-limit action classes, and health probes. CRUD resources (funnels,
// pages, UTMs) mount alongside these routes and are handled elsewhere.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/leadfoundry/leadfoundry/pkg/audit"
	"github.com/leadfoundry/leadfoundry/pkg/auth"
	"github.com/leadfoundry/leadfoundry/pkg/health"
	"github.com/leadfoundry/leadfoundry/pkg/httpmiddleware"
	"github.com/leadfoundry/leadfoundry/pkg/platform"
	"github.com/leadfoundry/leadfoundry/pkg/ratelimit"
)

// Version is set at build time.
var Version = "dev"

// Server is the HTTP front of the auth core.
type Server struct {
	cfg     *platform.Config
	auth    *auth.Service
	limiter *ratelimit.Limiter
	events  audit.Recorder
	checker *health.Checker
	mux     *http.ServeMux
}

// New assembles the routes over the given components. The components are
// constructed by the caller and injected; the server owns none of their
// lifecycles.
func New(cfg *platform.Config, authSvc *auth.Service, limiter *ratelimit.Limiter, events audit.Recorder) *Server {
	s := &Server{
		cfg:     cfg,
		auth:    authSvc,
		limiter: limiter,
		events:  events,
		checker: health.NewChecker(),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	rateLimited := func(action string, h http.Handler) http.Handler {
		return httpmiddleware.RateLimit(s.limiter, action, s.events)(h)
	}
	authenticated := httpmiddleware.RequireAuth(s.auth)

	s.mux.Handle("POST /v1/auth/register",
		rateLimited(ratelimit.ActionRegister, http.HandlerFunc(s.handleRegister)))
	s.mux.Handle("POST /v1/auth/login",
		rateLimited(ratelimit.ActionLogin, http.HandlerFunc(s.handleLogin)))
	s.mux.Handle("POST /v1/auth/logout",
		rateLimited(ratelimit.ActionAPI, http.HandlerFunc(s.handleLogout)))
	s.mux.Handle("GET /v1/auth/me",
		rateLimited(ratelimit.ActionAPI, authenticated(http.HandlerFunc(s.handleMe))))

	s.mux.HandleFunc("GET /healthz", s.checker.LivenessHandler())
	s.mux.HandleFunc("GET /readyz", s.checker.ReadinessHandler())
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Checker exposes the readiness state machine to the process lifecycle.
func (s *Server) Checker() *health.Checker {
	return s.checker
}

// Run serves HTTP until ctx is cancelled, then drains connections within the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.Address,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server: listening", "address", s.cfg.Server.Address, "version", Version)
		s.checker.SetReady()
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.checker.SetDraining()
	slog.Info("server: draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
