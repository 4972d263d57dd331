// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrRunPodURLRequired is returned when RUNPOD_URL is not set.
	ErrRunPodURLRequired = errors.New("config: RUNPOD_URL is required")
	// ErrRunPodAPIKeyRequired is returned when RUNPOD_API_KEY is not set.
	ErrRunPodAPIKeyRequired = errors.New("config: RUNPOD_API_KEY is required")
	// ErrBackendURLRequired is returned when BACKEND_URL is not set.
	ErrBackendURLRequired = errors.New("config: BACKEND_URL is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port        int    `env:"PORT, default=8080" json:"port"`
	Environment string `env:"ENVIRONMENT, default=development" json:"environment"` // "development" or "production"
	BackendURL  string `env:"BACKEND_URL, required" json:"backend_url"`            // externally reachable base for webhooks

	// Worker settings
	RunPodURL     string        `env:"RUNPOD_URL, required" json:"runpod_url"`
	RunPodAPIKey  string        `env:"RUNPOD_API_KEY, required" json:"-"` // Masked in JSON
	SubmitTimeout time.Duration `env:"SUBMIT_TIMEOUT, default=120s" json:"submit_timeout"`

	// Session settings
	SessionTTL time.Duration `env:"SESSION_TTL, default=6h" json:"session_ttl"`

	// Persistence settings (all optional; memory fallbacks otherwise)
	DatabaseURL string `env:"DATABASE_URL" json:"-"` // Masked in JSON
	RedisAddr   string `env:"REDIS_ADDR" json:"redis_addr,omitempty"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// PostgresEnabled returns true if a database URL is provided.
func (c *Config) PostgresEnabled() bool {
	return c.DatabaseURL != ""
}

// RedisEnabled returns true if a Redis address is provided.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Production returns true when running with production cookie settings.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "RUNPOD_URL") {
			return nil, ErrRunPodURLRequired
		}
		if strings.Contains(err.Error(), "RUNPOD_API_KEY") {
			return nil, ErrRunPodAPIKeyRequired
		}
		if strings.Contains(err.Error(), "BACKEND_URL") {
			return nil, ErrBackendURLRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	// Honor a floor so the worker round-trip is never cut off mid-submit.
	if cfg.SubmitTimeout < 30*time.Second {
		cfg.SubmitTimeout = 30 * time.Second
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.RunPodURL == "" {
		return ErrRunPodURLRequired
	}
	if c.RunPodAPIKey == "" {
		return ErrRunPodAPIKeyRequired
	}
	if c.BackendURL == "" {
		return ErrBackendURLRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, Environment: %s, BackendURL: %s, RunPodURL: %s, SubmitTimeout: %s, SessionTTL: %s, Postgres: %t, Redis: %t, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.Environment,
		c.BackendURL,
		c.RunPodURL,
		c.SubmitTimeout,
		c.SessionTTL,
		c.PostgresEnabled(),
		c.RedisEnabled(),
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
