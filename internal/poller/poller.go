// Package poller keeps a flag store in sync with the flag-delivery service by
// issuing conditional GETs on a fixed interval.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/flagbase/flagbase-go/internal/config"
	"github.com/flagbase/flagbase-go/internal/domain"
	"github.com/flagbase/flagbase-go/internal/events"
	"github.com/flagbase/flagbase-go/internal/filter"
	"github.com/flagbase/flagbase-go/internal/logger"
	"github.com/flagbase/flagbase-go/internal/telemetry"
	"github.com/flagbase/flagbase-go/internal/transport"
)

const (
	// MinPollInterval is the floor applied to any configured interval.
	MinPollInterval = 3000 * time.Millisecond

	// InitialETag is sent on the first request of every run. The service
	// never issues it as a validator, so the first fetch is unconditional.
	InitialETag = "initial"

	MessageFullFetch   = "Retrieved full flagset from service."
	MessageCachedFetch = "Retrieved cached flagset from service."
)

// EffectiveInterval clamps a configured interval in milliseconds to
// MinPollInterval.
func EffectiveInterval(intervalMs int) time.Duration {
	return clamp(intervalMs, MinPollInterval)
}

func clamp(intervalMs int, floor time.Duration) time.Duration {
	d := time.Duration(intervalMs) * time.Millisecond
	if d < floor {
		return floor
	}
	return d
}

// Fetcher issues one conditional GET.
type Fetcher interface {
	Fetch(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// Store is the part of the flag store the poller writes to.
type Store interface {
	AddFlag(ctx context.Context, flag domain.RawFlag) error
	GetFlags(ctx context.Context) (domain.Snapshot, error)
}

// Poller runs at most one background worker at a time. The zero value is not
// usable; construct with New.
type Poller struct {
	config  config.Provider
	store   Store
	sink    events.Sink
	fetcher Fetcher

	log         *logger.Logger
	telemetry   telemetry.Provider
	filter      *filter.Filter
	faultEvents bool
	floor       time.Duration

	// mu serializes Start, Stop and Restart. parent, cancel and done belong
	// to the current run.
	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}

	statusMu sync.RWMutex
	status   Status
}

// New constructs a stopped Poller.
func New(cfg config.Provider, store Store, sink events.Sink, fetcher Fetcher, opts ...Option) *Poller {
	p := &Poller{
		config:    cfg,
		store:     store,
		sink:      sink,
		fetcher:   fetcher,
		log:       logger.NewNop(),
		telemetry: telemetry.NewNoOp(),
		floor:     MinPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.Component("poller")
	return p
}

// Start launches the worker and returns immediately. It is a no-op while a
// worker is alive. Cancelling ctx ends the worker like Stop does, without
// waiting for it.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.aliveLocked() {
		return
	}
	if p.cancel != nil {
		// The previous run ended with its parent context.
		p.cancel()
	}
	p.startLocked(ctx)
}

func (p *Poller) startLocked(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.parent = ctx
	p.cancel = cancel
	p.done = done

	p.setRunning(true)
	go p.run(runCtx, done)
}

// Stop signals the worker and blocks until it has exited. An in-flight
// request is cancelled. Stop on a stopped Poller returns immediately.
//
// Event handlers run on the worker, so they must not call Stop or Restart
// synchronously: both join the worker and would deadlock.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done == nil {
		return
	}

	p.stopLocked()
}

func (p *Poller) stopLocked() {
	p.cancel()
	<-p.done

	p.cancel = nil
	p.done = nil
}

// Restart replaces a live worker with a fresh one, so the next request is
// unconditional and the configuration is read again. It returns false
// when no worker was alive. Like Stop, it must not be called from an
// event handler.
func (p *Poller) Restart() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.aliveLocked() {
		return false
	}
	parent := p.parent
	p.stopLocked()
	p.startLocked(parent)
	return true
}

// Running reports whether a worker is alive.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aliveLocked()
}

func (p *Poller) aliveLocked() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer p.setRunning(false)

	// Configuration is read once per run.
	url := p.config.PollingServiceURL()
	key := p.config.ServerKey()
	interval := clamp(p.config.PollingIntervalMs(), p.floor)
	p.setInterval(interval)

	p.log.Info("poller started",
		logger.String(logger.FieldURL, url),
		logger.Duration(logger.FieldInterval, interval),
	)
	defer p.log.Info("poller stopped")

	etag := InitialETag
	for {
		if ctx.Err() != nil {
			return
		}

		started := time.Now()
		res := p.pollOnce(ctx, transport.Request{URL: url, ServerKey: key, ETag: etag})
		if res.Outcome == OutcomeFault && ctx.Err() != nil {
			// Cancelled mid-cycle by Stop.
			return
		}
		etag = res.ETag
		p.record(ctx, res, started)

		if !wait(ctx, interval) {
			return
		}
	}
}

// wait blocks for d or until ctx is done. It reports whether the full
// interval elapsed.
func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
