package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/flagbase/flagbase-go/internal/domain"
)

// flagRecord is the table row for one raw flag.
type flagRecord struct {
	Key        string `gorm:"primaryKey"`
	Attributes string `gorm:"type:text;not null"`
	UpdatedAt  time.Time
}

func (flagRecord) TableName() string { return "flags" }

// SQLStore keeps flags in a SQLite database so several processes on one host
// can share a cache that survives restarts.
type SQLStore struct {
	db *gorm.DB

	added   atomic.Uint64
	updated atomic.Uint64
}

// NewSQLStore opens (or creates) the database at path. An empty path opens
// an in-memory database.
func NewSQLStore(path string) (*SQLStore, error) {
	inMemory := path == ""
	if inMemory {
		path = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each pooled connection to :memory: would see its own empty database.
	if inMemory {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&flagRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// AddFlag implements Store.
func (s *SQLStore) AddFlag(ctx context.Context, flag domain.RawFlag) error {
	key, err := flag.Key()
	if err != nil {
		return err
	}

	attrs, err := json.Marshal(flag)
	if err != nil {
		return fmt.Errorf("failed to encode flag %s: %w", key, err)
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&flagRecord{}).Where("key = ?", key).Count(&existing).Error; err != nil {
		return fmt.Errorf("failed to look up flag %s: %w", key, err)
	}

	rec := flagRecord{Key: key, Attributes: string(attrs), UpdatedAt: time.Now().UTC()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"attributes", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to upsert flag %s: %w", key, err)
	}

	if existing > 0 {
		s.updated.Add(1)
	} else {
		s.added.Add(1)
	}
	return nil
}

// GetFlags implements Store.
func (s *SQLStore) GetFlags(ctx context.Context) (domain.Snapshot, error) {
	var records []flagRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}

	snapshot := make(domain.Snapshot, len(records))
	for _, rec := range records {
		flag, err := decodeRecord(rec)
		if err != nil {
			return nil, err
		}
		snapshot[rec.Key] = flag
	}
	return snapshot, nil
}

// GetFlag implements Store.
func (s *SQLStore) GetFlag(ctx context.Context, key string) (domain.RawFlag, error) {
	var rec flagRecord
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get flag %s: %w", key, err)
	}
	return decodeRecord(rec)
}

// Clear implements Store.
func (s *SQLStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&flagRecord{}).Error
}

// Metrics implements Store.
func (s *SQLStore) Metrics() Metrics {
	var size int64
	s.db.Model(&flagRecord{}).Count(&size)

	return Metrics{
		KeysAdded:   s.added.Load(),
		KeysUpdated: s.updated.Load(),
		Size:        size,
	}
}

// Close implements Store.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decodeRecord(rec flagRecord) (domain.RawFlag, error) {
	var flag domain.RawFlag
	if err := json.Unmarshal([]byte(rec.Attributes), &flag); err != nil {
		return nil, fmt.Errorf("failed to decode flag %s: %w", rec.Key, err)
	}
	return flag, nil
}
