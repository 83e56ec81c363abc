package models

import "time"

// KVEntry backs the generic key-value persistence port.
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:longtext"`
	UpdatedAt time.Time
}
