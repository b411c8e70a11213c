// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all runtime settings.
type Config struct {
	Addr   string `env:"ADDR" envDefault:":5050"`
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"focusblock.db"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"focusblock"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	OIDCIssuer       string `env:"OIDC_ISSUER"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID"`
	AdminGroup       string `env:"ADMIN_GROUP" envDefault:"admins"`
	TrustForwardAuth bool   `env:"TRUST_FORWARD_AUTH"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	ActivityQueueSize    int           `env:"ACTIVITY_QUEUE_SIZE" envDefault:"256"`
	ActivityWriteTimeout time.Duration `env:"ACTIVITY_WRITE_TIMEOUT" envDefault:"5s"`

	OTelEndpoint    string        `env:"OTEL_ENDPOINT"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	origins := cfg.AllowedOrigins[:0]
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.AllowedOrigins = origins
	return cfg, cfg.Validate()
}

// Production reports whether the service runs with APP_ENV=production.
func (c Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Validate checks required and mutually dependent settings. The signing
// secret is checked separately by ValidateSecret.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if (c.OIDCIssuer == "") != (c.OIDCClientID == "") {
		errs = append(errs, errors.New("OIDC_ISSUER and OIDC_CLIENT_ID must be set together"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.ActivityQueueSize < 1 {
		errs = append(errs, errors.New("ACTIVITY_QUEUE_SIZE must be at least 1"))
	}
	if c.ActivityWriteTimeout <= 0 {
		errs = append(errs, errors.New("ACTIVITY_WRITE_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateSecret checks that a token signing secret is configured.
func (c Config) ValidateSecret() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Production() && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes in production")
	}
	return nil
}
