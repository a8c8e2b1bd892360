// Package config holds the settings the SDK reads at startup and the
// Provider view the poller consumes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/flagbase/flagbase-go/internal/domain"
)

const (
	DefaultPollingServiceURL = "https://poller.core.flagbase.com"
	DefaultPollingIntervalMs = 300000
	DefaultRequestTimeout    = 10 * time.Second
	DefaultRedisChannel      = "flagbase:events"
)

// Provider exposes the values the poller reads once per worker run.
type Provider interface {
	PollingServiceURL() string
	PollingIntervalMs() int
	ServerKey() string
}

// Config holds SDK configuration
type Config struct {
	ServiceURL     string        `yaml:"polling_service_url" validate:"required,url"`
	IntervalMs     int           `yaml:"polling_interval_ms"`
	SDKKey         string        `yaml:"server_key" validate:"required"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`

	// Optional components; empty disables them.
	SnapshotPath  string `yaml:"snapshot_path"`
	SQLitePath    string `yaml:"sqlite_path"`
	CacheFilter   string `yaml:"cache_filter"`
	RedisAddr     string `yaml:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisChannel  string `yaml:"redis_channel"`
	AdminAddr     string `yaml:"admin_addr"`
	WebhookSecret string `yaml:"webhook_secret"`

	// FaultEvents publishes NETWORK_FETCH_ERROR for transient faults.
	FaultEvents bool `yaml:"fault_events"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		ServiceURL:     DefaultPollingServiceURL,
		IntervalMs:     DefaultPollingIntervalMs,
		RequestTimeout: DefaultRequestTimeout,
		RedisChannel:   DefaultRedisChannel,
	}
}

func (c Config) PollingServiceURL() string { return c.ServiceURL }
func (c Config) PollingIntervalMs() int    { return c.IntervalMs }
func (c Config) ServerKey() string         { return c.SDKKey }

var validate = validator.New()

// Validate validates the configuration
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return domain.NewValidationErrorWithCause("invalid config", err)
	}
	return nil
}

// FromEnv overlays FLAGBASE_* environment variables onto the defaults.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	return cfg, applyEnv(&cfg)
}

// LoadFile reads a YAML file, then applies environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, applyEnv(&cfg)
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("FLAGBASE_POLLING_SERVICE_URL"); v != "" {
		cfg.ServiceURL = v
	}
	if v := os.Getenv("FLAGBASE_POLLING_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return domain.NewValidationErrorWithCause("FLAGBASE_POLLING_INTERVAL_MS must be an integer", err)
		}
		cfg.IntervalMs = ms
	}
	if v := os.Getenv("FLAGBASE_SERVER_KEY"); v != "" {
		cfg.SDKKey = v
	}
	if v := os.Getenv("FLAGBASE_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return domain.NewValidationErrorWithCause("FLAGBASE_REQUEST_TIMEOUT must be a duration", err)
		}
		cfg.RequestTimeout = d
	}
	if v := os.Getenv("FLAGBASE_FAULT_EVENTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return domain.NewValidationErrorWithCause("FLAGBASE_FAULT_EVENTS must be a boolean", err)
		}
		cfg.FaultEvents = b
	}
	cfg.SnapshotPath = envOrDefault("FLAGBASE_SNAPSHOT_PATH", cfg.SnapshotPath)
	cfg.SQLitePath = envOrDefault("FLAGBASE_SQLITE_PATH", cfg.SQLitePath)
	cfg.CacheFilter = envOrDefault("FLAGBASE_CACHE_FILTER", cfg.CacheFilter)
	cfg.RedisAddr = envOrDefault("FLAGBASE_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envOrDefault("FLAGBASE_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisChannel = envOrDefault("FLAGBASE_REDIS_CHANNEL", cfg.RedisChannel)
	cfg.AdminAddr = envOrDefault("FLAGBASE_ADMIN_ADDR", cfg.AdminAddr)
	cfg.WebhookSecret = envOrDefault("FLAGBASE_WEBHOOK_SECRET", cfg.WebhookSecret)
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
