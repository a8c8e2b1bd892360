package config

import "sync"

// Static is a Provider whose values can be replaced at runtime. A running
// poller keeps the values it read when its worker started.
type Static struct {
	mu       sync.RWMutex
	url      string
	interval int
	key      string
}

// NewStatic creates a provider seeded from p.
func NewStatic(p Provider) *Static {
	return &Static{
		url:      p.PollingServiceURL(),
		interval: p.PollingIntervalMs(),
		key:      p.ServerKey(),
	}
}

func (s *Static) PollingServiceURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

func (s *Static) PollingIntervalMs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

func (s *Static) ServerKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// Update replaces all three values at once.
func (s *Static) Update(url string, intervalMs int, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	s.interval = intervalMs
	s.key = key
}
