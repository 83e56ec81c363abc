package models

import "time"

// AgentMessage is one inter-agent message delivered during a collaboration.
// ToAgent is empty for broadcasts.
type AgentMessage struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	MessageID       string    `gorm:"size:96;not null;uniqueIndex"`
	CollaborationID string    `gorm:"size:64;not null;index"`
	SessionID       string    `gorm:"size:64;index"`
	FromAgent       string    `gorm:"size:64;not null"`
	ToAgent         string    `gorm:"size:64"`
	Body            string    `gorm:"type:text"`
	Type            string    `gorm:"size:16;default:coordination"`
	Priority        string    `gorm:"size:8;default:normal"`
	ScheduledAt     time.Time `gorm:"index"`
	CreatedAt       time.Time
}
