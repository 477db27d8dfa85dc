// Package main provides the entry point for the leadfoundry API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/leadfoundry/leadfoundry/internal/server"
	"github.com/leadfoundry/leadfoundry/pkg/audit"
	auditpostgres "github.com/leadfoundry/leadfoundry/pkg/audit/postgres"
	"github.com/leadfoundry/leadfoundry/pkg/auth"
	"github.com/leadfoundry/leadfoundry/pkg/database/migrate"
	"github.com/leadfoundry/leadfoundry/pkg/platform"
	"github.com/leadfoundry/leadfoundry/pkg/ratelimit"
	"github.com/leadfoundry/leadfoundry/pkg/session"
	sessionpostgres "github.com/leadfoundry/leadfoundry/pkg/session/postgres"
	sessionredis "github.com/leadfoundry/leadfoundry/pkg/session/redis"
	"github.com/leadfoundry/leadfoundry/pkg/user"
	userpostgres "github.com/leadfoundry/leadfoundry/pkg/user/postgres"
	"github.com/leadfoundry/leadfoundry/pkg/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	address     string
	showVersion bool
}

func parseFlags() serverOptions {
	opts := serverOptions{}
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.address, "address", "", "Listen address, overrides config")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

func loadConfig(opts serverOptions) (*platform.Config, error) {
	if opts.configPath == "" {
		return platform.DefaultConfig(), nil
	}
	return platform.LoadConfig(opts.configPath)
}

func run() error {
	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("leadfoundry version %s\n", server.Version)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.address != "" {
		cfg.Server.Address = opts.address
	}

	ctx := setupSignalHandler()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	sessions, err := newSessionStore(cfg, db)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	defer func() { _ = sessions.Close() }()

	users, err := newUserStore(cfg, db)
	if err != nil {
		return err
	}

	events, err := newEventRecorder(cfg, db)
	if err != nil {
		return err
	}
	defer func() { _ = events.Close() }()

	limiter := ratelimit.NewLimiter(cfg.RateLimit.PolicyTable(), nil)
	limiter.StartSweepRoutine(cfg.RateLimit.SweepInterval)
	defer func() { _ = limiter.Close() }()

	authSvc := auth.NewService(auth.Config{
		Sessions: sessions,
		Users:    users,
		Events:   events,
	})

	srv := server.New(cfg, authSvc, limiter, events)

	slog.Info("starting leadfoundry",
		"version", server.Version,
		"address", cfg.Server.Address,
		"session_backend", cfg.Sessions.Backend,
	)

	return srv.Run(ctx)
}

// openDatabase connects to PostgreSQL and runs migrations. Returns nil when
// no component needs a database.
func openDatabase(cfg *platform.Config) (*sql.DB, error) {
	needsDB := cfg.Sessions.Backend == "postgres" || cfg.Audit.Persist
	if cfg.Database.DSN == "" {
		if needsDB {
			return nil, fmt.Errorf("database.dsn is required for session backend %q", cfg.Sessions.Backend)
		}
		return nil, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := migrate.Run(db); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return db, nil
}

func newSessionStore(cfg *platform.Config, db *sql.DB) (session.Store, error) {
	switch cfg.Sessions.Backend {
	case "memory":
		store := session.NewMemoryStore(cfg.Sessions.Duration, nil)
		store.StartSweepRoutine(cfg.Sessions.SweepInterval)
		return store, nil
	case "redis":
		return sessionredis.New(sessionredis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Duration: cfg.Sessions.Duration,
		})
	case "postgres":
		store := sessionpostgres.New(db, sessionpostgres.Config{
			Duration: cfg.Sessions.Duration,
		})
		store.StartSweepRoutine(cfg.Sessions.SweepInterval)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session backend: %s", cfg.Sessions.Backend)
	}
}

func newUserStore(cfg *platform.Config, db *sql.DB) (user.Store, error) {
	if db != nil {
		return userpostgres.New(db), nil
	}
	if cfg.Sessions.Backend == "postgres" {
		return nil, fmt.Errorf("user store requires a database connection")
	}
	slog.Warn("no database configured, user accounts will not survive restarts")
	return user.NewMemoryStore(), nil
}

// newEventRecorder assembles the security-event pipeline: structured log
// always, PostgreSQL when persistence is on, webhook when a URL is set.
func newEventRecorder(cfg *platform.Config, db *sql.DB) (audit.Recorder, error) {
	recorders := []audit.Recorder{audit.NewSlogRecorder(nil)}

	if cfg.Audit.Persist {
		if db == nil {
			return nil, fmt.Errorf("audit.persist requires database.dsn")
		}
		store := auditpostgres.New(db, auditpostgres.Config{
			RetentionDays: cfg.Audit.RetentionDays,
		})
		store.StartRetentionRoutine(24 * time.Hour)
		recorders = append(recorders, store)
	}

	if cfg.Webhook.URL != "" {
		recorders = append(recorders, webhook.New(webhook.Config{
			URL:     cfg.Webhook.URL,
			Timeout: cfg.Webhook.Timeout,
		}))
	}

	if len(recorders) == 1 {
		return recorders[0], nil
	}
	return audit.NewFanout(recorders...), nil
}
