package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagbase/flagbase-go/internal/domain"
)

func TestNew_StampsEvent(t *testing.T) {
	ev := New(NetworkFetchCached, "cached", nil)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, NetworkFetchCached, ev.Kind)
	assert.Equal(t, "cached", ev.Message)
	assert.Nil(t, ev.Context)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestBus_DispatchesByKind(t *testing.T) {
	bus := NewBus()
	var full, cached []Event

	bus.On(NetworkFetchFull, func(ev Event) { full = append(full, ev) })
	bus.On(NetworkFetchCached, func(ev Event) { cached = append(cached, ev) })

	snap := domain.Snapshot{"a": {"key": "a"}}
	bus.Emit(context.Background(), New(NetworkFetchFull, "full", snap))
	bus.Emit(context.Background(), New(NetworkFetchCached, "cached", nil))
	bus.Emit(context.Background(), New(NetworkFetchCached, "cached", nil))

	assert.Len(t, full, 1)
	assert.Equal(t, snap, full[0].Context)
	assert.Len(t, cached, 2)
}

func TestBus_PreservesSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var order []int

	for i := 0; i < 3; i++ {
		i := i
		bus.On(NetworkFetchFull, func(Event) { order = append(order, i) })
	}

	bus.Emit(context.Background(), New(NetworkFetchFull, "", nil))
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0

	unsubscribe := bus.On(NetworkFetchFull, func(Event) { calls++ })
	bus.Emit(context.Background(), New(NetworkFetchFull, "", nil))

	unsubscribe()
	unsubscribe()
	bus.Emit(context.Background(), New(NetworkFetchFull, "", nil))

	assert.Equal(t, 1, calls)
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	count := 0
	bus.On(NetworkFetchCached, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(context.Background(), New(NetworkFetchCached, "", nil))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
}

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Emit(_ context.Context, ev Event) {
	r.events = append(r.events, ev)
}

func TestFanout(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	f := Fanout{a, nil, b}

	f.Emit(context.Background(), New(NetworkFetchError, "fault", nil))

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}
