package poller

import (
	"time"

	"github.com/flagbase/flagbase-go/internal/domain"
)

// Status describes the recent health of the worker.
type Status struct {
	Running             bool          `json:"running"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastError           string        `json:"last_error,omitempty"`
	LastAttempt         time.Time     `json:"last_attempt"`
	LastSuccess         time.Time     `json:"last_success"`
	LastOutcome         Outcome       `json:"last_outcome,omitempty"`
	EffectiveInterval   time.Duration `json:"effective_interval"`
}

// IsReady reports whether the last run reached the service and is not
// failing repeatedly.
func (s Status) IsReady() bool {
	if s.LastSuccess.IsZero() {
		return false
	}
	return s.ConsecutiveFailures < 3
}

// Status returns a copy of the worker's recent health.
func (p *Poller) Status() Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}

func (p *Poller) setRunning(running bool) {
	p.statusMu.Lock()
	p.status.Running = running
	p.statusMu.Unlock()

	p.telemetry.RecordWorkerState(running)
}

func (p *Poller) setInterval(d time.Duration) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.EffectiveInterval = d
}

func (p *Poller) recordSuccess(at time.Time, outcome Outcome) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.ConsecutiveFailures = 0
	p.status.LastError = ""
	p.status.LastAttempt = at
	p.status.LastSuccess = at
	p.status.LastOutcome = outcome
}

func (p *Poller) recordFailure(at time.Time, err *domain.TransientError) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.ConsecutiveFailures++
	p.status.LastError = err.Error()
	p.status.LastAttempt = at
	p.status.LastOutcome = OutcomeFault
}
