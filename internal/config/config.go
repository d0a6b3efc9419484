package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Feed    FeedConfig    `mapstructure:"feed" yaml:"feed"`
}

// StorageConfig selects the message store backend.
type StorageConfig struct {
	Driver       string `mapstructure:"driver" yaml:"driver" validate:"oneof=sqlite memory"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path" validate:"required_if=Driver sqlite"`
}

// AuthConfig configures the token issuer.
type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret" validate:"required,min=8"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl" validate:"gt=0"`
}

// FeedConfig tunes the live feed.
type FeedConfig struct {
	HealthInterval     time.Duration `mapstructure:"health_interval" yaml:"health_interval" validate:"gte=0"`
	ReplayBatchSize    int           `mapstructure:"replay_batch_size" yaml:"replay_batch_size" validate:"gte=0"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute" validate:"gte=0"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		Storage: StorageConfig{
			Driver:       DriverSQLite,
			DatabasePath: "wirechat.db",
		},
		Auth: AuthConfig{
			JWTSecret:   "change-me-in-production",
			JWTIssuer:   "wirechat",
			JWTAudience: "wirechat-feed",
			TokenTTL:    24 * time.Hour,
		},
		Feed: FeedConfig{
			HealthInterval:     10 * time.Second,
			ReplayBatchSize:    256,
			RateLimitPerMinute: 120,
		},
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Storage.Driver != "" {
		c.Storage.Driver = other.Storage.Driver
	}
	if other.Storage.DatabasePath != "" {
		c.Storage.DatabasePath = other.Storage.DatabasePath
	}
	if other.Auth.JWTSecret != "" {
		c.Auth.JWTSecret = other.Auth.JWTSecret
	}
	if other.Feed.HealthInterval != 0 {
		c.Feed.HealthInterval = other.Feed.HealthInterval
	}
	if other.Feed.RateLimitPerMinute != 0 {
		c.Feed.RateLimitPerMinute = other.Feed.RateLimitPerMinute
	}
}
