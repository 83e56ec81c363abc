// Package messaging records the inter-agent messages exchanged during a
// collaboration so they can be listed per collaboration afterwards.
package messaging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/crewdesk/internal/models"
	"gorm.io/gorm"
)

// SendOpts holds optional parameters for sending a message.
type SendOpts struct {
	MessageID   string
	SessionID   string
	Type        string    // "coordination" (default), "question", "update", "suggestion", "completion"
	Priority    string    // "normal" (default), "low", "high"
	ScheduledAt time.Time // delivery slot; defaults to now
}

// Send records a message from one agent within a collaboration. An empty
// to means a broadcast.
func Send(db *gorm.DB, collaborationID, from, to, body string, opts SendOpts) (*models.AgentMessage, error) {
	if collaborationID == "" {
		return nil, fmt.Errorf("messaging: collaborationID is required")
	}
	if from == "" {
		return nil, fmt.Errorf("messaging: from is required")
	}

	msgType := opts.Type
	if msgType == "" {
		msgType = "coordination"
	}
	priority := opts.Priority
	if priority == "" {
		priority = "normal"
	}
	now := time.Now()
	scheduled := opts.ScheduledAt
	if scheduled.IsZero() {
		scheduled = now
	}
	msgID := opts.MessageID
	if msgID == "" {
		msgID = collaborationID + "-" + uuid.NewString()
	}

	msg := models.AgentMessage{
		MessageID:       msgID,
		CollaborationID: collaborationID,
		SessionID:       opts.SessionID,
		FromAgent:       from,
		ToAgent:         to,
		Body:            body,
		Type:            msgType,
		Priority:        priority,
		ScheduledAt:     scheduled,
		CreatedAt:       now,
	}

	if err := db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("messaging: send: %w", err)
	}
	return &msg, nil
}

// Thread returns a collaboration's messages in delivery order.
func Thread(db *gorm.DB, collaborationID string) ([]models.AgentMessage, error) {
	if collaborationID == "" {
		return nil, fmt.Errorf("messaging: collaborationID is required")
	}

	var msgs []models.AgentMessage
	if err := db.Where("collaboration_id = ?", collaborationID).
		Order("scheduled_at ASC, id ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("messaging: thread %s: %w", collaborationID, err)
	}
	return msgs, nil
}

// Collaborations lists the distinct collaboration ids recorded for a session,
// oldest first.
func Collaborations(db *gorm.DB, sessionID string) ([]string, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("messaging: sessionID is required")
	}

	var ids []string
	if err := db.Model(&models.AgentMessage{}).
		Where("session_id = ?", sessionID).
		Group("collaboration_id").
		Order("MIN(id) ASC").
		Pluck("collaboration_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("messaging: collaborations %s: %w", sessionID, err)
	}
	return ids, nil
}

// Purge deletes every message recorded for a session.
func Purge(db *gorm.DB, sessionID string) (int64, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("messaging: sessionID is required")
	}
	result := db.Where("session_id = ?", sessionID).Delete(&models.AgentMessage{})
	if result.Error != nil {
		return 0, fmt.Errorf("messaging: purge %s: %w", sessionID, result.Error)
	}
	return result.RowsAffected, nil
}
