// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package config loads and validates the Keyward service configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file,
// command-line flags, then the environment for secrets (DATABASE_URL,
// KEYWARD_TOKEN_SECRET).
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultHTTPAddr          = ":8080"
	DefaultMetricsAddr       = "127.0.0.1:9100"
	DefaultLogFormat         = "json"
	DefaultTokenLifetimeDays = 30
	DefaultIssuedAtSkewHours = 24
)

// Config is the root service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Token    TokenConfig    `koanf:"token"`
	Username UsernameConfig `koanf:"username"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig configures the observability side listener.
// An empty address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format"`
}

// TokenConfig configures the session token engine.
type TokenConfig struct {
	Secret            string `koanf:"secret"`
	LifetimeDays      int    `koanf:"lifetime_days"`
	IssuedAtSkewHours int    `koanf:"issued_at_skew_hours"`
	CookieSecure      bool   `koanf:"cookie_secure"`
	RefreshOnVerify   bool   `koanf:"refresh_on_verify"`
}

// Lifetime returns the configured session lifetime as a duration.
func (c TokenConfig) Lifetime() time.Duration {
	return time.Duration(c.LifetimeDays) * 24 * time.Hour
}

// IssuedAtSkew returns the configured iat/nbf backdating as a duration.
func (c TokenConfig) IssuedAtSkew() time.Duration {
	return time.Duration(c.IssuedAtSkewHours) * time.Hour
}

// UsernameConfig overrides the built-in username blocklists. Empty slices
// keep the defaults.
type UsernameConfig struct {
	Risky    []string `koanf:"risky"`
	Reserved []string `koanf:"reserved"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP:    HTTPConfig{Addr: DefaultHTTPAddr},
		Metrics: MetricsConfig{Addr: DefaultMetricsAddr},
		Log:     LogConfig{Format: DefaultLogFormat},
		Token: TokenConfig{
			LifetimeDays:      DefaultTokenLifetimeDays,
			IssuedAtSkewHours: DefaultIssuedAtSkewHours,
			CookieSecure:      true,
			RefreshOnVerify:   true,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, environment variables, and flags, in that order of precedence.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal config").
			Wrap(err)
	}

	// Secrets come from the environment, never from flags where they would
	// show up in process listings.
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if secret := os.Getenv("KEYWARD_TOKEN_SECRET"); secret != "" {
		cfg.Token.Secret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (set DATABASE_URL)")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if len(c.Token.Secret) < 32 {
		return oops.Code("CONFIG_INVALID").Errorf("token.secret must be at least 32 bytes (set KEYWARD_TOKEN_SECRET)")
	}
	if c.Token.LifetimeDays < 1 {
		return oops.Code("CONFIG_INVALID").Errorf("token.lifetime_days must be at least 1")
	}
	if c.Token.IssuedAtSkewHours < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("token.issued_at_skew_hours cannot be negative")
	}
	return nil
}
