package chat

import "time"

// Session is a named, ordered conversation.
type Session struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	IsActive     bool      `json:"isActive"`
	CurrentAgent string    `json:"currentAgent,omitempty"`
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	c := s
	c.Messages = CloneMessages(s.Messages)
	return c
}

// MessageCount counts messages excluding typing indicators.
func (s Session) MessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Kind != KindTyping {
			n++
		}
	}
	return n
}

// FindMessage returns the index of the message with id, or -1.
func (s Session) FindMessage(id string) int {
	for i, m := range s.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}
