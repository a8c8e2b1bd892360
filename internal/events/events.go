// Package events carries fetch outcomes from the poller to whoever listens.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flagbase/flagbase-go/internal/domain"
)

// Kind identifies an event type.
type Kind string

const (
	// NetworkFetchFull is published after a 200 response has been merged.
	NetworkFetchFull Kind = "NETWORK_FETCH_FULL"
	// NetworkFetchCached is published after a 304 response.
	NetworkFetchCached Kind = "NETWORK_FETCH_CACHED"
	// NetworkFetchError is published for a transient fault when enabled.
	NetworkFetchError Kind = "NETWORK_FETCH_ERROR"
)

// Event is one published notification. Context is only set for
// NetworkFetchFull and is the store snapshot taken after the merge.
type Event struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Message   string          `json:"message"`
	Context   domain.Snapshot `json:"context,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// New stamps an event with an ID and the current time.
func New(kind Kind, message string, snapshot domain.Snapshot) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		Context:   snapshot,
		Timestamp: time.Now().UTC(),
	}
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// Handler reacts to one event.
type Handler func(ev Event)

// Bus is an in-process Sink dispatching to subscribed handlers synchronously,
// in subscription order.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Kind]map[int]Handler
	order    map[Kind][]int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Kind]map[int]Handler),
		order:    make(map[Kind][]int),
	}
}

// On subscribes h to kind and returns a function removing the subscription.
func (b *Bus) On(kind Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[int]Handler)
	}
	b.handlers[kind][id] = h
	b.order[kind] = append(b.order[kind], id)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(kind, id) })
	}
}

func (b *Bus) remove(kind Kind, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers[kind], id)
	ids := b.order[kind]
	for i, v := range ids {
		if v == id {
			b.order[kind] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

// Emit implements Sink.
func (b *Bus) Emit(_ context.Context, ev Event) {
	b.mu.RLock()
	ids := b.order[ev.Kind]
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, b.handlers[ev.Kind][id])
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
}

// Fanout emits every event to each sink in order.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, ev Event) {
	for _, s := range f {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}
