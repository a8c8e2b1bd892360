// Package storage holds the flag cache the poller populates.
package storage

import (
	"context"
	"errors"

	"github.com/flagbase/flagbase-go/internal/domain"
)

var ErrNotFound = errors.New("flag not found")

// Store is a concurrent-safe key-value cache of raw flags.
type Store interface {
	// AddFlag upserts flag under its embedded key. Attributes replace the
	// previous record wholesale.
	AddFlag(ctx context.Context, flag domain.RawFlag) error

	// GetFlags returns a snapshot of every cached flag, consistent at call time.
	GetFlags(ctx context.Context) (domain.Snapshot, error)

	// GetFlag returns one flag or ErrNotFound.
	GetFlag(ctx context.Context, key string) (domain.RawFlag, error)

	// Clear removes all flags
	Clear(ctx context.Context) error

	// Metrics returns storage metrics
	Metrics() Metrics

	// Close closes the storage
	Close() error
}

// Metrics represents storage metrics
type Metrics struct {
	KeysAdded    uint64  `json:"keys_added"`
	KeysUpdated  uint64  `json:"keys_updated"`
	SetsRejected uint64  `json:"sets_rejected"`
	HitRatio     float64 `json:"hit_ratio"`
	Size         int64   `json:"size"`
}

// Config holds memory store configuration
type Config struct {
	MaxCost     int64 // Maximum number of flags
	NumCounters int64 // Number of counters for admission policy
	BufferItems int64 // Number of keys per buffer
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		MaxCost:     1 << 20,
		NumCounters: 1e7,
		BufferItems: 64,
	}
}

// Load upserts every flag of a snapshot into s.
func Load(ctx context.Context, s Store, snapshot domain.Snapshot) error {
	for _, key := range snapshot.Keys() {
		if err := s.AddFlag(ctx, snapshot[key]); err != nil {
			return err
		}
	}
	return nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
