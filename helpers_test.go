package flagbase

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockFlagService is a mock flag-delivery service honouring ETag
// revalidation.
type MockFlagService struct {
	*httptest.Server

	mu       sync.RWMutex
	etag     string
	flags    []Flag
	status   int
	requests []http.Header
}

// NewMockFlagService creates a mock service with an empty flagset.
func NewMockFlagService(t *testing.T) *MockFlagService {
	t.Helper()
	mock := &MockFlagService{etag: "v0"}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))
	t.Cleanup(mock.Close)
	return mock
}

func (m *MockFlagService) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, r.Header.Clone())
	status, etag := m.status, m.etag
	flags := make([]Flag, len(m.flags))
	copy(flags, m.flags)
	m.mu.Unlock()

	if status != 0 {
		http.Error(w, "unavailable", status)
		return
	}
	if r.Header.Get("ETag") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	type item struct {
		Attributes Flag `json:"attributes"`
	}
	body := struct {
		Data []item `json:"data"`
	}{Data: make([]item, 0, len(flags))}
	for _, f := range flags {
		body.Data = append(body.Data, item{Attributes: f})
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Etag", etag)
	_ = json.NewEncoder(w).Encode(body)
}

// SetFlags publishes a new flagset under etag.
func (m *MockFlagService) SetFlags(etag string, flags ...Flag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etag = etag
	m.flags = flags
}

// FailWith makes every request answer with status. Zero restores service.
func (m *MockFlagService) FailWith(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Requests returns the headers of every request received so far.
func (m *MockFlagService) Requests() []http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]http.Header, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockFlagService) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// newTestClient builds a client against svc with quiet logging.
func newTestClient(t *testing.T, svc *MockFlagService, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithPollingServiceURL(svc.URL),
		WithServerKey("sdk-test-key"),
		WithRequestTimeout(2 * time.Second),
		WithLogger(zap.NewNop()),
	}
	client, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// waitForEvent subscribes before Start and returns a channel of events.
func waitForEvent(client *Client, kind EventKind) <-chan Event {
	ch := make(chan Event, 16)
	client.On(kind, func(ev Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	return ch
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}
