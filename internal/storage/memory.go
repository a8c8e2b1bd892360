package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto"

	"github.com/flagbase/flagbase-go/internal/domain"
)

// MemoryStore keeps flags in a Ristretto cache. Ristretto cannot enumerate its
// keys, so the store tracks them in an index guarded by mu; holding mu for
// writing across Set+Wait makes every write visible before the next read.
type MemoryStore struct {
	cache *ristretto.Cache
	mu    sync.RWMutex
	index map[string]struct{}

	added    uint64
	updated  uint64
	rejected uint64
}

// NewMemoryStore creates a new memory store
func NewMemoryStore(cfg Config) (*MemoryStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	return &MemoryStore{
		cache: cache,
		index: make(map[string]struct{}),
	}, nil
}

// AddFlag implements Store.
func (m *MemoryStore) AddFlag(ctx context.Context, flag domain.RawFlag) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	key, err := flag.Key()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	accepted := m.cache.Set(key, flag.Clone(), 1)
	m.cache.Wait()
	if accepted {
		_, accepted = m.cache.Get(key)
	}
	if !accepted {
		m.rejected++
		return fmt.Errorf("cache rejected flag %s", key)
	}

	if _, exists := m.index[key]; exists {
		m.updated++
	} else {
		m.index[key] = struct{}{}
		m.added++
	}

	return nil
}

// GetFlags implements Store.
func (m *MemoryStore) GetFlags(ctx context.Context) (domain.Snapshot, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(domain.Snapshot, len(m.index))
	for key := range m.index {
		if flag, ok := m.lookup(key); ok {
			snapshot[key] = flag.Clone()
		}
	}
	return snapshot, nil
}

// GetFlag implements Store.
func (m *MemoryStore) GetFlag(ctx context.Context, key string) (domain.RawFlag, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, ok := m.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}
	return flag.Clone(), nil
}

func (m *MemoryStore) lookup(key string) (domain.RawFlag, bool) {
	value, found := m.cache.Get(key)
	if !found {
		return nil, false
	}
	flag, ok := value.(domain.RawFlag)
	return flag, ok
}

// Clear implements Store.
func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Clear()
	m.index = make(map[string]struct{})
	return nil
}

// Metrics implements Store.
func (m *MemoryStore) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Metrics{
		KeysAdded:    m.added,
		KeysUpdated:  m.updated,
		SetsRejected: m.rejected,
		HitRatio:     m.cache.Metrics.Ratio(),
		Size:         int64(len(m.index)),
	}
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.cache.Close()
	return nil
}
