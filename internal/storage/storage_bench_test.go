package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/flagbase/flagbase-go/internal/domain"
)

func benchStores(b *testing.B, fn func(b *testing.B, s Store)) {
	b.Run("memory", func(b *testing.B) {
		s, err := NewMemoryStore(DefaultConfig())
		if err != nil {
			b.Fatal(err)
		}
		defer s.Close()
		fn(b, s)
	})

	b.Run("sqlite", func(b *testing.B) {
		s, err := NewSQLStore(filepath.Join(b.TempDir(), "flags.db"))
		if err != nil {
			b.Fatal(err)
		}
		defer s.Close()
		fn(b, s)
	})
}

func BenchmarkStore_AddFlag(b *testing.B) {
	benchStores(b, func(b *testing.B, s Store) {
		ctx := context.Background()
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			flag := domain.RawFlag{"key": fmt.Sprintf("flag-%d", i%500), "value": i}
			if err := s.AddFlag(ctx, flag); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkStore_GetFlags(b *testing.B) {
	benchStores(b, func(b *testing.B, s Store) {
		ctx := context.Background()
		for i := 0; i < 200; i++ {
			if err := s.AddFlag(ctx, domain.RawFlag{"key": fmt.Sprintf("flag-%d", i)}); err != nil {
				b.Fatal(err)
			}
		}

		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := s.GetFlags(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkMemoryStore_ConcurrentGetFlag(b *testing.B) {
	s, err := NewMemoryStore(DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.AddFlag(ctx, domain.RawFlag{"key": "hot"}); err != nil {
		b.Fatal(err)
	}

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = s.GetFlag(ctx, "hot")
		}
	})
}
