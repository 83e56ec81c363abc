package db

import (
	"fmt"

	"github.com/zulandar/crewdesk/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model crewdesk persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.KVEntry{},
		&models.AgentMessage{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// OpenAndMigrate opens the configured database and migrates it in one step.
func OpenAndMigrate(open func() (*gorm.DB, error)) (*gorm.DB, error) {
	gdb, err := open()
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}
