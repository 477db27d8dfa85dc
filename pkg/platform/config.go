// Package platform holds the process-wide configuration tree: server
// address, session backend and duration, the rate-limit policy table, and
// the security-event sinks. Configuration is read once at process start and
// treated as read-only afterwards.
package platform

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leadfoundry/leadfoundry/pkg/ratelimit"
	"github.com/leadfoundry/leadfoundry/pkg/session"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Audit     AuditConfig     `yaml:"audit"`
	Webhook   WebhookConfig   `yaml:"webhook"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SessionsConfig configures the session store.
type SessionsConfig struct {
	// Backend selects the store: "memory", "redis", or "postgres".
	// The memory backend loses all sessions on process restart.
	Backend string `yaml:"backend"`

	// Duration is the fixed session lifetime.
	Duration time.Duration `yaml:"duration"`

	// SweepInterval is how often the janitor purges expired sessions.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// PolicyConfig is one action's admission policy.
type PolicyConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	// Policies overrides or extends the built-in action policy table.
	Policies map[string]PolicyConfig `yaml:"policies"`

	// SweepInterval is how often the janitor drops stale windows.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig configures the Redis connection for the redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuditConfig configures security-event recording.
type AuditConfig struct {
	// Persist stores events in PostgreSQL in addition to the log.
	Persist       bool `yaml:"persist"`
	RetentionDays int  `yaml:"retention_days"`
}

// WebhookConfig configures outbound security-event delivery.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by
// the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Sessions.Backend == "" {
		cfg.Sessions.Backend = "memory"
	}
	if cfg.Sessions.Duration == 0 {
		cfg.Sessions.Duration = session.DefaultDuration
	}
	if cfg.Sessions.SweepInterval == 0 {
		cfg.Sessions.SweepInterval = 10 * time.Minute
	}
	if cfg.RateLimit.SweepInterval == 0 {
		cfg.RateLimit.SweepInterval = time.Minute
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 90
	}
	if cfg.Webhook.Timeout == 0 {
		cfg.Webhook.Timeout = 5 * time.Second
	}
}

// PolicyTable merges the configured overrides onto the built-in policy
// table. Overrides are per field: an entry that sets only max_attempts or
// only window inherits the other field from the built-in policy, or from
// the api policy for actions the built-in table does not know.
func (c *RateLimitConfig) PolicyTable() map[string]ratelimit.Policy {
	policies := ratelimit.DefaultPolicies()
	for action, p := range c.Policies {
		base, ok := policies[action]
		if !ok {
			base = policies[ratelimit.ActionAPI]
		}
		if p.MaxAttempts > 0 {
			base.MaxAttempts = p.MaxAttempts
		}
		if p.Window > 0 {
			base.Window = p.Window
		}
		policies[action] = base
	}
	return policies
}
