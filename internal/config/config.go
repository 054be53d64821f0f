// Package config loads and validates the warden configuration file.
package config

import (
	"encoding/json"
	"time"

	"github.com/fariz/warden/pkg/errkit"
	"github.com/fariz/warden/pkg/ratelimit"
	"github.com/fariz/warden/pkg/security"
)

// Config is the full warden configuration
type Config struct {
	// Workspace security policy
	Security security.Policy `json:"security" mapstructure:"security"`

	// Rate limiting
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`

	// Confirmation gate
	Confirmation ConfirmationConfig `json:"confirmation" mapstructure:"confirmation"`

	// Retry behavior for transient execution failures
	Retry RetryConfig `json:"retry" mapstructure:"retry"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Audit event store
	Audit AuditConfig `json:"audit" mapstructure:"audit"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// RateLimitConfig holds rate limiter settings
type RateLimitConfig struct {
	Algorithm         string `json:"algorithm" mapstructure:"algorithm"` // token_bucket, sliding_window, fixed_window
	RequestsPerMinute int    `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	BurstLimit        int    `json:"burst_limit" mapstructure:"burst_limit"`
	WindowSizeMs      int    `json:"window_size_ms" mapstructure:"window_size_ms"`
}

// LimiterConfig converts to the limiter's native config
func (r RateLimitConfig) LimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		Algorithm:         r.Algorithm,
		RequestsPerMinute: r.RequestsPerMinute,
		BurstLimit:        r.BurstLimit,
		WindowSize:        time.Duration(r.WindowSizeMs) * time.Millisecond,
	}
}

// ConfirmationConfig holds approval gate settings
type ConfirmationConfig struct {
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// Timeout returns the confirmation timeout as a duration
func (c ConfirmationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryConfig holds retry settings for transient failures
type RetryConfig struct {
	MaxAttempts int     `json:"max_attempts" mapstructure:"max_attempts"`
	BaseDelayMs int     `json:"base_delay_ms" mapstructure:"base_delay_ms"`
	Multiplier  float64 `json:"multiplier" mapstructure:"multiplier"`
	MaxDelayMs  int     `json:"max_delay_ms" mapstructure:"max_delay_ms"`
}

// RetrierConfig converts to the retrier's native config
func (r RetryConfig) RetrierConfig() errkit.RetryConfig {
	return errkit.RetryConfig{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   time.Duration(r.BaseDelayMs) * time.Millisecond,
		Multiplier:  r.Multiplier,
		MaxDelay:    time.Duration(r.MaxDelayMs) * time.Millisecond,
	}
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// AuditConfig holds audit store configuration
type AuditConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	Path          string `json:"path" mapstructure:"path"`
	RetentionDays int    `json:"retention_days" mapstructure:"retention_days"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Security: security.Policy{
			AllowedExtensions: []string{".txt", ".md", ".json", ".yaml", ".yml", ".go", ".py", ".js", ".ts", ".csv", ".log"},
			BlockedPaths:      []string{".git", ".env", "node_modules"},
			MaxFileSize:       security.DefaultMaxFileSize,
			MaxRequestSize:    security.DefaultMaxRequestSize,
		},
		RateLimit: RateLimitConfig{
			Algorithm:         ratelimit.AlgorithmSlidingWindow,
			RequestsPerMinute: 60,
			BurstLimit:        10,
			WindowSizeMs:      60_000,
		},
		Confirmation: ConfirmationConfig{
			TimeoutSeconds: 60,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMs: 1000,
			Multiplier:  2.0,
			MaxDelayMs:  30_000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9090,
		},
		Audit: AuditConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks the configuration. Any failure is a configuration error
// and aborts startup.
func (c *Config) Validate() error {
	if c.Security.RootDirectory == "" {
		return errkit.New(errkit.KindConfiguration, "security.root_directory is required")
	}
	if c.Security.MaxFileSize < 0 {
		return errkit.New(errkit.KindConfiguration, "security.max_file_size must not be negative")
	}
	if c.Security.MaxRequestSize < 0 {
		return errkit.New(errkit.KindConfiguration, "security.max_request_size must not be negative")
	}

	switch c.RateLimit.Algorithm {
	case ratelimit.AlgorithmTokenBucket, ratelimit.AlgorithmSlidingWindow, ratelimit.AlgorithmFixedWindow, "":
	default:
		return errkit.Newf(errkit.KindConfiguration, "rate_limit.algorithm %q is not supported", c.RateLimit.Algorithm)
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return errkit.New(errkit.KindConfiguration, "rate_limit.requests_per_minute must be positive")
	}
	if c.RateLimit.WindowSizeMs <= 0 {
		return errkit.New(errkit.KindConfiguration, "rate_limit.window_size_ms must be positive")
	}

	if c.Confirmation.TimeoutSeconds <= 0 {
		return errkit.New(errkit.KindConfiguration, "confirmation.timeout_seconds must be positive")
	}

	if c.Retry.MaxAttempts <= 0 {
		return errkit.New(errkit.KindConfiguration, "retry.max_attempts must be positive")
	}
	if c.Retry.Multiplier < 1 {
		return errkit.New(errkit.KindConfiguration, "retry.multiplier must be at least 1")
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return errkit.Newf(errkit.KindConfiguration, "logging.level %q is not valid", c.Logging.Level)
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return errkit.Newf(errkit.KindConfiguration, "metrics.port %d is out of range", c.Metrics.Port)
	}

	if c.Audit.Enabled && c.Audit.RetentionDays <= 0 {
		return errkit.New(errkit.KindConfiguration, "audit.retention_days must be positive when audit is enabled")
	}

	return nil
}
