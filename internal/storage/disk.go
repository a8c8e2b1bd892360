package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/flagbase/flagbase-go/internal/domain"
)

const snapshotFile = "snapshot.json"

// DiskSnapshot persists whole flag snapshots as JSON so a restarted client
// can serve the last known flags before its first successful fetch.
type DiskSnapshot struct {
	dir string
	mu  sync.RWMutex
}

func NewDiskSnapshot(dir string) (*DiskSnapshot, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	return &DiskSnapshot{dir: dir}, nil
}

func (d *DiskSnapshot) path() string {
	return filepath.Join(d.dir, snapshotFile)
}

// Save writes snapshot atomically via a temp file and rename.
func (d *DiskSnapshot) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, snapshotFile+".*")
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), d.path()); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

// Load reads the last saved snapshot. A missing file yields ErrNotFound.
func (d *DiskSnapshot) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	data, err := os.ReadFile(d.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return snapshot, nil
}
