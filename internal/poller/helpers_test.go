package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flagbase/flagbase-go/internal/config"
	"github.com/flagbase/flagbase-go/internal/domain"
	"github.com/flagbase/flagbase-go/internal/events"
	"github.com/flagbase/flagbase-go/internal/logger"
	"github.com/flagbase/flagbase-go/internal/storage"
	"github.com/flagbase/flagbase-go/internal/transport"
)

const testInterval = 10 * time.Millisecond

// withIntervalFloor lowers the interval floor so loop tests run fast.
func withIntervalFloor(d time.Duration) Option {
	return func(p *Poller) {
		p.floor = d
	}
}

func testConfig(url string) config.Config {
	return config.Config{
		ServiceURL: url,
		IntervalMs: int(testInterval / time.Millisecond),
		SDKKey:     "sdk-test-key",
	}
}

func newStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store, err := storage.NewMemoryStore(storage.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newObservedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.FromZap(zap.New(core)), logs
}

// recorder is an events.Sink that keeps everything it receives.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) ofKind(kind events.Kind) []events.Event {
	var out []events.Event
	for _, ev := range r.all() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// fakeFetcher answers from respond and remembers every request.
type fakeFetcher struct {
	mu       sync.Mutex
	requests []transport.Request
	respond  func(n int, req transport.Request) (*transport.Response, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, req transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(n, req)
}

func (f *fakeFetcher) etags() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.ETag
	}
	return out
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func full(etag string, flags ...domain.RawFlag) *transport.Response {
	return &transport.Response{StatusCode: http.StatusOK, ETag: etag, Flags: flags}
}

func notModified() *transport.Response {
	return &transport.Response{StatusCode: http.StatusNotModified}
}

// failingStore rejects every write.
type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) AddFlag(context.Context, domain.RawFlag) error {
	return errors.New("disk full")
}

// reply is one scripted answer of the fake flag-delivery service.
type reply struct {
	status int
	etag   string
	body   string
}

// service is an httptest flag-delivery service replaying a script. The last
// reply repeats once the script runs out.
type service struct {
	*httptest.Server

	mu      sync.Mutex
	script  []reply
	etags   []string
	sdkKeys []string
}

func newService(t *testing.T, script ...reply) *service {
	t.Helper()
	s := &service{script: script}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *service) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.etags)
	s.etags = append(s.etags, r.Header.Get(transport.HeaderETag))
	s.sdkKeys = append(s.sdkKeys, r.Header.Get(transport.HeaderSDKKey))
	rep := s.script[len(s.script)-1]
	if n < len(s.script) {
		rep = s.script[n]
	}
	s.mu.Unlock()

	if rep.etag != "" {
		w.Header().Set("Etag", rep.etag)
	}
	w.WriteHeader(rep.status)
	_, _ = w.Write([]byte(rep.body))
}

func (s *service) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.etags))
	copy(out, s.etags)
	return out
}

func (s *service) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sdkKeys))
	copy(out, s.sdkKeys)
	return out
}

func httpFetcher() *transport.HTTPClient {
	return transport.NewHTTPClient(transport.Config{Timeout: 5 * time.Second})
}
