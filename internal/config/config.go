// Package config loads the server configuration from the environment.
//
// A .env file in the working directory is loaded first when present, so
// local development needs no exported variables. Real environment variables
// always win over .env entries.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Auth modes.
const (
	AuthModeFirebase    = "firebase"
	AuthModeInsecureDev = "insecure-dev"
)

// EnvProduction is the APP_ENV value that switches on production behaviour.
const EnvProduction = "production"

// Config contains server configuration parameters.
type Config struct {
	AppEnv   string     `env:"APP_ENV" envDefault:"development"`
	Port     int        `env:"PORT" envDefault:"8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	Storage Storage
	Auth    Auth
	HTTP    HTTP
}

// Storage contains table store parameters.
type Storage struct {
	// ConnectionString selects the backend: sqlite:<path>, file:<path>,
	// :memory: or redis://... Empty means storage is not configured.
	ConnectionString string `env:"RESUME_STORAGE_CONNECTION_STRING"`
	TableName        string `env:"RESUME_TABLE_NAME" envDefault:"Resumes"`
}

// Auth contains token verification parameters.
type Auth struct {
	Mode string `env:"AUTH_MODE" envDefault:"firebase"`
	// ServiceAccount is the service account JSON itself, not a path.
	ServiceAccount string `env:"FIREBASE_SERVICE_ACCOUNT"`
	ProjectID      string `env:"FIREBASE_PROJECT_ID"`
}

// HTTP contains transport parameters.
type HTTP struct {
	AllowedOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	MaxBodyBytes   int64    `env:"MAX_BODY_BYTES" envDefault:"5242880"`
}

// Load reads .env (if present) and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse()
}

// Parse parses the process environment without touching .env.
func Parse() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.HTTP.AllowedOrigins = trimAll(cfg.HTTP.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects malformed values. Missing storage or auth settings are
// not errors: the server starts and reports them per request.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.HTTP.MaxBodyBytes < 1 {
		return fmt.Errorf("config: MAX_BODY_BYTES must be positive, got %d", c.HTTP.MaxBodyBytes)
	}

	switch c.Auth.Mode {
	case AuthModeFirebase:
	case AuthModeInsecureDev:
		if c.IsProduction() {
			return errors.New("config: AUTH_MODE=insecure-dev is not allowed when APP_ENV=production")
		}
	default:
		return fmt.Errorf("config: unknown AUTH_MODE %q (want %q or %q)", c.Auth.Mode, AuthModeFirebase, AuthModeInsecureDev)
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, EnvProduction)
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
