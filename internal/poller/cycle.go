package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/flagbase/flagbase-go/internal/domain"
	"github.com/flagbase/flagbase-go/internal/events"
	"github.com/flagbase/flagbase-go/internal/logger"
	"github.com/flagbase/flagbase-go/internal/telemetry"
	"github.com/flagbase/flagbase-go/internal/transport"
)

// Outcome classifies one poll cycle.
type Outcome string

const (
	OutcomeFull   Outcome = "full"
	OutcomeCached Outcome = "cached"
	OutcomeFault  Outcome = "fault"
)

// Result is what one cycle produced. ETag is the validator to send next.
type Result struct {
	Outcome   Outcome
	ETag      string
	FlagCount int
	Err       *domain.TransientError
}

// pollOnce runs a single fetch-and-merge cycle. The returned ETag differs
// from req.ETag only when the cycle ended with a FullFetch event.
func (p *Poller) pollOnce(ctx context.Context, req transport.Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("recovered panic in poll cycle", logger.String("stack", string(debug.Stack())))
			res = fault(req.ETag, domain.NewTransientError(domain.FaultPanic, fmt.Errorf("panic: %v", r)))
		}
	}()

	resp, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return fault(req.ETag, domain.AsTransient(err, domain.FaultNetwork))
	}

	if resp.NotModified() {
		p.sink.Emit(ctx, events.New(events.NetworkFetchCached, MessageCachedFetch, nil))
		return Result{Outcome: OutcomeCached, ETag: req.ETag}
	}

	for _, flag := range resp.Flags {
		if !p.accept(flag) {
			continue
		}
		if err := p.store.AddFlag(ctx, flag); err != nil {
			return fault(req.ETag, domain.NewTransientError(domain.FaultStore, err))
		}
	}

	snapshot, err := p.store.GetFlags(ctx)
	if err != nil {
		return fault(req.ETag, domain.NewTransientError(domain.FaultStore, err))
	}

	p.sink.Emit(ctx, events.New(events.NetworkFetchFull, MessageFullFetch, snapshot))
	return Result{Outcome: OutcomeFull, ETag: resp.ETag, FlagCount: len(snapshot)}
}

func fault(etag string, err *domain.TransientError) Result {
	return Result{Outcome: OutcomeFault, ETag: etag, Err: err}
}

// accept applies the cache filter. A filter that errors on a flag excludes it.
func (p *Poller) accept(flag domain.RawFlag) bool {
	ok, err := p.filter.Match(flag)
	if err != nil {
		key, _ := flag.Key()
		p.log.WithError(err).Warn("cache filter failed, skipping flag", logger.String("flag", key))
		return false
	}
	return ok
}

func (p *Poller) record(ctx context.Context, res Result, started time.Time) {
	elapsed := time.Since(started)

	switch res.Outcome {
	case OutcomeFull:
		p.log.Info("retrieved full flagset",
			logger.Int(logger.FieldFlagCount, res.FlagCount),
			logger.String(logger.FieldETag, res.ETag),
		)
		p.recordSuccess(started, res.Outcome)
		p.telemetry.RecordPoll(ctx, telemetry.OutcomeFull, elapsed, res.FlagCount)

	case OutcomeCached:
		p.log.Debug("flagset unchanged", logger.String(logger.FieldETag, res.ETag))
		p.recordSuccess(started, res.Outcome)
		p.telemetry.RecordPoll(ctx, telemetry.OutcomeCached, elapsed, 0)

	case OutcomeFault:
		te := res.Err
		if te == nil {
			te = domain.NewTransientError(domain.FaultNetwork, errors.New("unknown fault"))
		}
		p.log.WithError(te).Error("poll cycle failed, retrying next interval",
			logger.String(logger.FieldFaultKind, string(te.Kind)),
			logger.Int(logger.FieldStatusCode, te.StatusCode),
		)
		p.recordFailure(started, te)
		p.telemetry.RecordPoll(ctx, telemetry.OutcomeFault, elapsed, 0)
		p.telemetry.RecordFault(ctx, string(te.Kind), te.StatusCode)

		if p.faultEvents {
			p.sink.Emit(ctx, events.New(events.NetworkFetchError, te.Error(), nil))
		}
	}
}
