package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/crewdesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists entries in the kv_entries table.
type GormStore struct {
	db            *gorm.DB
	maxValueBytes int
}

// GormStoreOpts holds parameters for creating a GormStore.
type GormStoreOpts struct {
	DB            *gorm.DB
	MaxValueBytes int // 0 = unbounded
}

// NewGormStore creates a GormStore.
func NewGormStore(opts GormStoreOpts) (*GormStore, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("kv: gorm store: db is required")
	}
	return &GormStore{db: opts.DB, maxValueBytes: opts.MaxValueBytes}, nil
}

// Get returns the value for key or ErrNotFound.
func (s *GormStore) Get(ctx context.Context, key string) (string, error) {
	var entry models.KVEntry
	err := s.db.WithContext(ctx).Where("`key` = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv: get %s: %w", key, err)
	}
	return entry.Value, nil
}

// Set upserts value under key.
func (s *GormStore) Set(ctx context.Context, key, value string) error {
	if s.maxValueBytes > 0 && len(value) > s.maxValueBytes {
		return fmt.Errorf("kv: set %s (%d bytes > %d): %w", key, len(value), s.maxValueBytes, ErrQuotaExceeded)
	}
	entry := models.KVEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry)
	if result.Error != nil {
		return fmt.Errorf("kv: set %s: %w", key, result.Error)
	}
	return nil
}

// Remove deletes key.
func (s *GormStore) Remove(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("`key` = ?", key).Delete(&models.KVEntry{}).Error; err != nil {
		return fmt.Errorf("kv: remove %s: %w", key, err)
	}
	return nil
}
