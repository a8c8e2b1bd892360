package poller

import (
	"github.com/flagbase/flagbase-go/internal/filter"
	"github.com/flagbase/flagbase-go/internal/logger"
	"github.com/flagbase/flagbase-go/internal/telemetry"
)

// Option configures a Poller.
type Option func(*Poller)

func WithLogger(l *logger.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.log = l
		}
	}
}

func WithTelemetry(t telemetry.Provider) Option {
	return func(p *Poller) {
		if t != nil {
			p.telemetry = t
		}
	}
}

// WithFilter skips upserting flags the filter rejects. A nil filter accepts
// everything.
func WithFilter(f *filter.Filter) Option {
	return func(p *Poller) {
		p.filter = f
	}
}

// WithFaultEvents publishes a NETWORK_FETCH_ERROR event for every transient
// fault. It is off by default.
func WithFaultEvents(enabled bool) Option {
	return func(p *Poller) {
		p.faultEvents = enabled
	}
}
