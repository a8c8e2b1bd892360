// Package flagbase is a server-side client for the Flagbase flag-delivery
// service. It keeps a local flag cache in sync by polling in the background.
package flagbase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/flagbase/flagbase-go/internal/config"
	"github.com/flagbase/flagbase-go/internal/events"
	"github.com/flagbase/flagbase-go/internal/filter"
	"github.com/flagbase/flagbase-go/internal/logger"
	"github.com/flagbase/flagbase-go/internal/poller"
	"github.com/flagbase/flagbase-go/internal/server"
	"github.com/flagbase/flagbase-go/internal/storage"
	"github.com/flagbase/flagbase-go/internal/telemetry"
	"github.com/flagbase/flagbase-go/internal/transport"
)

const (
	redisConnectTimeout = 5 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// Client is the main entry point for Flagbase.
type Client struct {
	cfg       Config
	provider  *config.Static
	log       *logger.Logger
	telemetry telemetry.Provider

	store     storage.Store
	snapshots *storage.DiskSnapshot
	bus       *events.Bus
	redis     *events.RedisSink
	poller    *poller.Poller
	admin     *server.AdminServer

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a new Flagbase client with the given options. It does not
// contact the flag service until Start.
//
// Example:
//
//	client, err := flagbase.New(
//	    flagbase.WithServerKey("sdk-server_..."),
//	    flagbase.WithPollingInterval(30 * time.Second),
//	)
func New(opts ...Option) (*Client, error) {
	cc := &clientConfig{cfg: DefaultConfig()}

	// Apply options
	for _, opt := range opts {
		if err := opt(cc); err != nil {
			return nil, err
		}
	}

	cfg := cc.cfg
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Field: "config", Message: "validation failed", Err: err}
	}

	cacheFilter, err := filter.Compile(cfg.CacheFilter)
	if err != nil {
		return nil, &ConfigError{Field: "cache_filter", Message: "invalid expression", Err: err}
	}

	log := logger.FromZap(cc.zapLogger)
	if cc.zapLogger == nil {
		if log, err = logger.New("flagbase"); err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	c := &Client{
		cfg:      cfg,
		provider: config.NewStatic(cfg),
		log:      log,
		bus:      events.NewBus(),
	}

	c.telemetry = telemetry.NewNoOp()
	if cc.otelEnabled {
		var otelOpts []telemetry.Option
		if cc.meterProvider != nil {
			otelOpts = append(otelOpts, telemetry.WithMeterProvider(cc.meterProvider))
		}
		if cc.tracerProvider != nil {
			otelOpts = append(otelOpts, telemetry.WithTracerProvider(cc.tracerProvider))
		}
		if c.telemetry, err = telemetry.NewOTel(otelOpts...); err != nil {
			return nil, fmt.Errorf("failed to create telemetry provider: %w", err)
		}
	}

	if c.store, err = newStore(cfg); err != nil {
		return nil, err
	}

	if cfg.SnapshotPath != "" {
		if c.snapshots, err = storage.NewDiskSnapshot(cfg.SnapshotPath); err != nil {
			_ = c.store.Close()
			return nil, &ConfigError{Field: "snapshot_path", Message: "cannot create directory", Err: err}
		}
	}

	sinks := events.Fanout{c.bus}
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		c.redis, err = events.NewRedisSink(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisChannel, log.Component("events"))
		cancel()
		if err != nil {
			_ = c.store.Close()
			return nil, err
		}
		sinks = append(sinks, c.redis)
	}

	fetcher := transport.NewHTTPClient(transport.Config{
		Timeout:    cfg.RequestTimeout,
		HTTPClient: cc.httpClient,
		Telemetry:  c.telemetry,
	})

	c.poller = poller.New(c.provider, c.store, sinks, fetcher,
		poller.WithLogger(log),
		poller.WithTelemetry(c.telemetry),
		poller.WithFilter(cacheFilter),
		poller.WithFaultEvents(cfg.FaultEvents),
	)

	if cfg.AdminAddr != "" {
		c.admin = server.NewAdminServer(c, cfg.AdminAddr, cfg.WebhookSecret, log)
	}

	return c, nil
}

func newStore(cfg Config) (storage.Store, error) {
	if cfg.SQLitePath != "" {
		store, err := storage.NewSQLStore(cfg.SQLitePath)
		if err != nil {
			return nil, &ConfigError{Field: "sqlite_path", Message: "cannot open database", Err: err}
		}
		return store, nil
	}
	return storage.NewMemoryStore(storage.DefaultConfig())
}

// Start preloads the disk snapshot if one is configured, binds the admin
// server, then launches the background poller and returns without waiting
// for the first poll. ctx bounds the preload only; the poller runs until
// Stop. An admin address that cannot be bound fails Start.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("flagbase client is closed")
	}
	if c.started {
		return nil
	}

	if c.snapshots != nil {
		c.preload(ctx)
	}

	if c.admin != nil {
		if err := c.admin.Start(); err != nil {
			return err
		}
	}

	c.poller.Start(context.WithoutCancel(ctx))

	c.started = true
	return nil
}

// preload seeds the store from disk. Failures are logged; the first poll
// repopulates the cache anyway.
func (c *Client) preload(ctx context.Context) {
	snapshot, err := c.snapshots.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return
	case err != nil:
		c.log.WithError(err).Warn("failed to load flag snapshot")
		return
	}

	if err := storage.Load(ctx, c.store, snapshot); err != nil {
		c.log.WithError(err).Warn("failed to preload flag snapshot")
		return
	}
	c.log.Info("preloaded flag snapshot", logger.Int(logger.FieldFlagCount, len(snapshot)))
}

// Stop halts the poller, waiting for it to exit, shuts the admin server
// down and writes the disk snapshot. The client can be started again.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	c.started = false

	c.poller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if c.admin != nil {
		if err := c.admin.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin server shutdown: %w", err))
		}
	}

	if c.snapshots != nil {
		if err := c.saveSnapshot(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c *Client) saveSnapshot(ctx context.Context) error {
	snapshot, err := c.store.GetFlags(ctx)
	if err != nil {
		return fmt.Errorf("failed to read flags for snapshot: %w", err)
	}
	if err := c.snapshots.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save flag snapshot: %w", err)
	}
	return nil
}

// Close stops the client and releases the store, the Redis connection and
// telemetry registrations. A closed client cannot be restarted.
func (c *Client) Close() error {
	errs := []error{c.Stop()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.Join(errs...)
	}
	c.closed = true

	errs = append(errs, c.store.Close())
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	errs = append(errs, c.telemetry.Shutdown(context.Background()))
	c.log.Sync()

	return errors.Join(errs...)
}

// Refresh restarts the poller so its next request is unconditional. It
// returns ErrNotRunning when the client has not been started. It waits for
// the current worker to exit, so an EventHandler must call it from its own
// goroutine.
func (c *Client) Refresh(ctx context.Context) error {
	if !c.poller.Restart() {
		return ErrNotRunning
	}
	c.log.Info("poller restarted for refresh")
	return nil
}

// UpdateConfig swaps the service URL, interval and server key. A running
// poller keeps its values until the next Start or Refresh.
func (c *Client) UpdateConfig(url string, interval time.Duration, serverKey string) {
	c.provider.Update(url, int(interval/time.Millisecond), serverKey)
}

// Flags returns a snapshot of every cached flag.
func (c *Client) Flags(ctx context.Context) (Snapshot, error) {
	return c.store.GetFlags(ctx)
}

// Flag returns one cached flag or a *NotFoundError.
func (c *Client) Flag(ctx context.Context, key string) (Flag, error) {
	flag, err := c.store.GetFlag(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Resource: "flag", Key: key}
	}
	return flag, err
}

// On subscribes handler to events of kind and returns a function that
// removes the subscription.
//
// Example:
//
//	unsubscribe := client.On(flagbase.EventFullFetch, func(ev flagbase.Event) {
//	    log.Printf("%d flags cached", len(ev.Context))
//	})
func (c *Client) On(kind EventKind, handler EventHandler) func() {
	return c.bus.On(kind, handler)
}

// Status returns the poller's recent health.
func (c *Client) Status() Status {
	return c.poller.Status()
}

// Stats returns flag store metrics.
func (c *Client) Stats() StorageMetrics {
	return c.store.Metrics()
}

// HTTPMiddleware attaches one consistent flag snapshot to every request.
// Read it with SnapshotFromContext.
func (c *Client) HTTPMiddleware(next http.Handler) http.Handler {
	return server.NewMiddleware(c, c.log).Handler(next)
}

// SnapshotFromContext returns the snapshot attached by HTTPMiddleware.
func SnapshotFromContext(ctx context.Context) (Snapshot, bool) {
	return server.SnapshotFromContext(ctx)
}
