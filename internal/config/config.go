// Package config loads app config from env and an optional .env file using Viper.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// AppName is used for the startup banner and logs.
	AppName string `mapstructure:"APP_NAME"`
	// Env is the application environment; "production" turns on Secure cookies.
	Env string `mapstructure:"APP_ENV"`
	// TokenSecret is the HMAC secret for access token signing. Required in production.
	TokenSecret string `mapstructure:"TOKEN_SECRET"`
	// TokenIssuer is the iss claim on access tokens.
	TokenIssuer string `mapstructure:"TOKEN_ISSUER"`
	// DatabasePath is the SQLite path for the user directory; ":memory:" for ephemeral.
	DatabasePath string `mapstructure:"DATABASE_PATH"`
	// RedisAddr enables the Redis session store when set; empty keeps the in-memory store.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// AllowedOrigins is a comma-separated CORS allow list.
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	// SessionSweepInterval is how often expired sessions are swept (e.g. "10m").
	SessionSweepInterval string `mapstructure:"SESSION_SWEEP_INTERVAL"`
	// SeedUsers populates development users at startup.
	SeedUsers bool `mapstructure:"SEED_USERS"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_NAME", "Portal Auth")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("TOKEN_SECRET", "")
	v.SetDefault("TOKEN_ISSUER", "portal-auth")
	v.SetDefault("DATABASE_PATH", "./data/portal-auth.db")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("SESSION_SWEEP_INTERVAL", "10m")
	v.SetDefault("SEED_USERS", true)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "[config.Load] unmarshal")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.IsProduction() && c.TokenSecret == "" {
		return errors.New("[config.validate] TOKEN_SECRET is required in production")
	}
	if c.TokenSecret == "" {
		c.TokenSecret = "dev-only-insecure-secret"
	}
	if _, err := time.ParseDuration(c.SessionSweepInterval); err != nil {
		return errors.Wrap(err, "[config.validate] SESSION_SWEEP_INTERVAL")
	}
	return nil
}

// IsProduction reports whether secure-cookie behaviour should be enabled.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Origins returns the parsed CORS allow list.
func (c *Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// SweepInterval returns the parsed sweep interval. validate guarantees it parses.
func (c *Config) SweepInterval() time.Duration {
	d, _ := time.ParseDuration(c.SessionSweepInterval)
	return d
}
