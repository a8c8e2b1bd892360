package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagbase/flagbase-go/internal/domain"
)

func newTestConfig() Config {
	return Config{
		MaxCost:     10_000,
		NumCounters: 100_000,
		BufferItems: 64,
	}
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		s, err := NewMemoryStore(newTestConfig())
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLStore(filepath.Join(t.TempDir(), "flags.db"))
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
}

func TestStore_AddAndGet(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.AddFlag(ctx, domain.RawFlag{"key": "a", "value": 1.0}))

		flag, err := s.GetFlag(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "a", flag["key"])
		assert.Equal(t, 1.0, flag["value"])
	})
}

func TestStore_GetMissing(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		_, err := s.GetFlag(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_UpsertReplacesWholesale(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.AddFlag(ctx, domain.RawFlag{"key": "a", "value": 1.0, "variation": "on"}))
		require.NoError(t, s.AddFlag(ctx, domain.RawFlag{"key": "a", "value": 2.0}))

		flag, err := s.GetFlag(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 2.0, flag["value"])
		_, stale := flag["variation"]
		assert.False(t, stale, "attributes must not be merged field by field")

		m := s.Metrics()
		assert.Equal(t, uint64(1), m.KeysAdded)
		assert.Equal(t, uint64(1), m.KeysUpdated)
		assert.Equal(t, int64(1), m.Size)
	})
}

func TestStore_RejectsFlagWithoutKey(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		err := s.AddFlag(context.Background(), domain.RawFlag{"value": 1.0})
		require.Error(t, err)
		assert.True(t, domain.IsValidationError(err))
	})
}

func TestStore_GetFlagsSnapshot(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, s.AddFlag(ctx, domain.RawFlag{"key": k}))
		}

		snap, err := s.GetFlags(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, snap.Keys())
	})
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.AddFlag(ctx, domain.RawFlag{"key": "a", "value": 1.0}))

		snap, err := s.GetFlags(ctx)
		require.NoError(t, err)
		snap["a"]["value"] = 99.0

		flag, err := s.GetFlag(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1.0, flag["value"])
	})
}

func TestStore_Clear(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.AddFlag(ctx, domain.RawFlag{"key": "a"}))
		require.NoError(t, s.AddFlag(ctx, domain.RawFlag{"key": "b"}))

		require.NoError(t, s.Clear(ctx))

		snap, err := s.GetFlags(ctx)
		require.NoError(t, err)
		assert.Empty(t, snap)
	})
}

func TestLoad(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		snap := domain.Snapshot{
			"a": {"key": "a", "value": 1.0},
			"b": {"key": "b", "value": 2.0},
		}

		require.NoError(t, Load(ctx, s, snap))

		got, err := s.GetFlags(ctx)
		require.NoError(t, err)
		assert.Equal(t, snap, got)
	})
}

func TestMemoryStore_ContextCancellation(t *testing.T) {
	s, err := NewMemoryStore(newTestConfig())
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, context.Canceled, s.AddFlag(ctx, domain.RawFlag{"key": "a"}))
	_, err = s.GetFlags(ctx)
	assert.Equal(t, context.Canceled, err)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s, err := NewMemoryStore(newTestConfig())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		key := string(rune('a' + i))
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AddFlag(ctx, domain.RawFlag{"key": key}))
		}()
		go func() {
			defer wg.Done()
			_, err := s.GetFlags(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := s.GetFlags(ctx)
	require.NoError(t, err)
	assert.Len(t, snap, 20)
}

func TestSQLStore_InMemory(t *testing.T) {
	s, err := NewSQLStore("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.AddFlag(ctx, domain.RawFlag{"key": "a", "tags": []interface{}{"x", "y"}}))

	flag, err := s.GetFlag(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"x", "y"}, flag["tags"])
}

func TestSQLStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.db")
	ctx := context.Background()

	s, err := NewSQLStore(path)
	require.NoError(t, err)
	require.NoError(t, s.AddFlag(ctx, domain.RawFlag{"key": "persisted"}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.GetFlag(ctx, "persisted")
	assert.NoError(t, err)
}
