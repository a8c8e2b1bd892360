package flagbase

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option configures a Flagbase client.
type Option func(*clientConfig) error

// clientConfig holds internal configuration.
type clientConfig struct {
	cfg Config

	zapLogger  *zap.Logger
	httpClient *http.Client

	otelEnabled    bool
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// RedisConfig configures event fan-out to a Redis channel.
type RedisConfig struct {
	Addr     string
	Password string
	// Channel defaults to "flagbase:events".
	Channel string
}

// AdminConfig configures the admin HTTP server.
type AdminConfig struct {
	// Addr is the listen address, e.g. ":9100".
	Addr string

	// WebhookSecret enables HMAC-SHA256 verification of POST /webhook.
	WebhookSecret string
}

// WithPollingServiceURL sets the flag-delivery endpoint.
//
// Example: flagbase.WithPollingServiceURL("https://poller.core.flagbase.com")
func WithPollingServiceURL(url string) Option {
	return func(c *clientConfig) error {
		if url == "" {
			return &ConfigError{Field: "polling_service_url", Message: "cannot be empty"}
		}
		c.cfg.ServiceURL = url
		return nil
	}
}

// WithServerKey sets the key sent in the x-sdk-key header. This is required.
func WithServerKey(key string) Option {
	return func(c *clientConfig) error {
		if key == "" {
			return &ConfigError{Field: "server_key", Message: "cannot be empty"}
		}
		c.cfg.SDKKey = key
		return nil
	}
}

// WithPollingInterval sets the time between polls. Values below 3s are
// raised to 3s when the poller starts.
// Default: 5 minutes
func WithPollingInterval(interval time.Duration) Option {
	return func(c *clientConfig) error {
		c.cfg.IntervalMs = int(interval / time.Millisecond)
		return nil
	}
}

// WithRequestTimeout bounds each poll request.
// Default: 10 seconds
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) error {
		if timeout <= 0 {
			return &ConfigError{Field: "request_timeout", Message: "must be positive"}
		}
		c.cfg.RequestTimeout = timeout
		return nil
	}
}

// WithSnapshotPath persists the flag cache to dir on Stop and preloads it
// on Start, so a restarted process serves flags before its first poll.
func WithSnapshotPath(dir string) Option {
	return func(c *clientConfig) error {
		c.cfg.SnapshotPath = dir
		return nil
	}
}

// WithSQLiteStore caches flags in a SQLite database at path instead of
// memory. An empty path uses an in-memory database.
func WithSQLiteStore(path string) Option {
	return func(c *clientConfig) error {
		if path == "" {
			path = ":memory:"
		}
		c.cfg.SQLitePath = path
		return nil
	}
}

// WithCacheFilter only caches flags matching an expr expression evaluated
// against `key` and `attributes`.
//
// Example: flagbase.WithCacheFilter(`key startsWith "checkout-"`)
func WithCacheFilter(expression string) Option {
	return func(c *clientConfig) error {
		c.cfg.CacheFilter = expression
		return nil
	}
}

// WithFaultEvents publishes an EventFetchError for every failed poll.
func WithFaultEvents(enabled bool) Option {
	return func(c *clientConfig) error {
		c.cfg.FaultEvents = enabled
		return nil
	}
}

// WithRedisSink publishes every event as JSON to a Redis channel.
func WithRedisSink(config RedisConfig) Option {
	return func(c *clientConfig) error {
		if config.Addr == "" {
			return &ConfigError{Field: "redis_addr", Message: "cannot be empty"}
		}
		c.cfg.RedisAddr = config.Addr
		c.cfg.RedisPassword = config.Password
		if config.Channel != "" {
			c.cfg.RedisChannel = config.Channel
		}
		return nil
	}
}

// WithAdminServer enables the admin HTTP server.
//
// Available endpoints:
//   - GET /health - poller status
//   - GET /admin/flags - every cached flag
//   - GET /admin/flags/{key} - one cached flag
//   - GET /admin/stats - store metrics
//   - POST /admin/refresh - restart the poller with an unconditional fetch
//   - POST /webhook - change notification, triggers a refresh
func WithAdminServer(config AdminConfig) Option {
	return func(c *clientConfig) error {
		if config.Addr == "" {
			return &ConfigError{Field: "admin_addr", Message: "cannot be empty"}
		}
		c.cfg.AdminAddr = config.Addr
		c.cfg.WebhookSecret = config.WebhookSecret
		return nil
	}
}

// WithLogger routes SDK logs to l.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) error {
		c.zapLogger = l
		return nil
	}
}

// WithOpenTelemetry records poll metrics and fetch spans. Nil providers
// fall back to the global ones.
func WithOpenTelemetry(mp metric.MeterProvider, tp trace.TracerProvider) Option {
	return func(c *clientConfig) error {
		c.otelEnabled = true
		c.meterProvider = mp
		c.tracerProvider = tp
		return nil
	}
}

// WithHTTPClient replaces the HTTP client used for polling. Its Timeout
// takes precedence over WithRequestTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) error {
		if hc == nil {
			return &ConfigError{Field: "http_client", Message: "cannot be nil"}
		}
		c.httpClient = hc
		return nil
	}
}

// WithConfig applies a full Config struct.
// This is an alternative to using individual options.
func WithConfig(cfg Config) Option {
	return func(c *clientConfig) error {
		c.cfg = cfg
		return nil
	}
}
