package flagbase

import (
	"github.com/flagbase/flagbase-go/internal/domain"
	"github.com/flagbase/flagbase-go/internal/events"
	"github.com/flagbase/flagbase-go/internal/poller"
	"github.com/flagbase/flagbase-go/internal/storage"
)

// Flag is one flag's attribute bundle as delivered by the service.
type Flag = domain.RawFlag

// Snapshot is a point-in-time copy of every cached flag, keyed by flag key.
type Snapshot = domain.Snapshot

// Event is published on every poll cycle outcome.
type Event = events.Event

// EventKind identifies an Event.
type EventKind = events.Kind

// Event kinds.
const (
	EventFullFetch   = events.NetworkFetchFull
	EventCachedFetch = events.NetworkFetchCached
	EventFetchError  = events.NetworkFetchError
)

// EventHandler reacts to one event. Handlers run on the polling goroutine
// and must not block for long. Calling Stop, Close or Refresh from a
// handler deadlocks; start a goroutine instead.
type EventHandler = events.Handler

// Status describes the recent health of the background poller.
type Status = poller.Status

// StorageMetrics reports flag store activity.
type StorageMetrics = storage.Metrics
