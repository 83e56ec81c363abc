// Package chat holds the conversation data model shared by every crewdesk
// component: the tagged-variant Message and the Session that orders them.
package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind tags a Message variant.
type Kind string

const (
	KindUser                Kind = "user"
	KindBot                 Kind = "bot"
	KindBotComplex          Kind = "bot-complex"
	KindTyping              Kind = "typing"
	KindHandoff             Kind = "handoff"
	KindCollaboration       Kind = "collaboration"
	KindCollaborationUpdate Kind = "collaboration-update"
	KindCrewUpdate          Kind = "crew_update"
	KindWarning             Kind = "warning"
	KindTroubleshooting     Kind = "troubleshooting"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindBot, KindBotComplex, KindTyping, KindHandoff, KindCollaboration,
		KindCollaborationUpdate, KindCrewUpdate, KindWarning, KindTroubleshooting:
		return true
	}
	return false
}

// Conversational reports whether the kind carries dialogue a backend should see.
func (k Kind) Conversational() bool {
	return k == KindUser || k == KindBot || k == KindBotComplex
}

// Message is one entry in a session's chat log. Exactly one of the payload
// pointers is set for the kinds that carry one.
type Message struct {
	ID              string             `json:"id"`
	Kind            Kind               `json:"type"`
	Text            string             `json:"text"`
	SubText         string             `json:"subText,omitempty"`
	IsSuccess       bool               `json:"isSuccess,omitempty"`
	Details         []string           `json:"details,omitempty"`
	Timestamp       time.Time          `json:"timestamp"`
	AgentName       string             `json:"agentName,omitempty"`
	Handoff         *HandoffData       `json:"handoffData,omitempty"`
	Collaboration   *CollaborationData `json:"collaborationData,omitempty"`
	CrewUpdate      *CrewUpdateData    `json:"crewUpdateData,omitempty"`
	Troubleshooting []string           `json:"troubleshooting,omitempty"`
	Raw             json.RawMessage    `json:"raw,omitempty"`
}

// HandoffData records a transfer between agents. It is never mutated.
type HandoffData struct {
	FromAgent string `json:"fromAgent"`
	ToAgent   string `json:"toAgent"`
	Reason    string `json:"reason"`
	Note      string `json:"note,omitempty"`
}

// CollaborationStatus is the lifecycle of a collaboration instance.
type CollaborationStatus string

const (
	CollaborationStarting   CollaborationStatus = "starting"
	CollaborationInProgress CollaborationStatus = "in-progress"
	CollaborationCompleted  CollaborationStatus = "completed"
)

// Rank orders statuses so callers can check monotonic progress.
func (s CollaborationStatus) Rank() int {
	switch s {
	case CollaborationStarting:
		return 0
	case CollaborationInProgress:
		return 1
	case CollaborationCompleted:
		return 2
	}
	return -1
}

// CollaborationData links a message to a running collaboration.
type CollaborationData struct {
	ID       string              `json:"id"`
	Agents   []string            `json:"agents"`
	Task     string              `json:"task"`
	Status   CollaborationStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// CrewUpdateData is the accumulated state of one streaming orchestration.
type CrewUpdateData struct {
	AgentRole       string `json:"agentRole,omitempty"`
	TaskDescription string `json:"taskDescription,omitempty"`
	OutputSummary   string `json:"outputSummary,omitempty"`
	FullOutput      string `json:"fullOutput,omitempty"`
	IsCollapsed     bool   `json:"isCollapsed"`
}

// NewID returns a fresh message or session identifier.
func NewID() string {
	return uuid.NewString()
}

// NewMessage builds a message of the given kind stamped at now.
func NewMessage(kind Kind, text string, now time.Time) Message {
	return Message{ID: NewID(), Kind: kind, Text: text, Timestamp: now}
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	c := m
	c.Details = cloneStrings(m.Details)
	c.Troubleshooting = cloneStrings(m.Troubleshooting)
	if m.Raw != nil {
		c.Raw = append(json.RawMessage(nil), m.Raw...)
	}
	if m.Handoff != nil {
		h := *m.Handoff
		c.Handoff = &h
	}
	if m.Collaboration != nil {
		cd := *m.Collaboration
		cd.Agents = cloneStrings(m.Collaboration.Agents)
		c.Collaboration = &cd
	}
	if m.CrewUpdate != nil {
		cu := *m.CrewUpdate
		c.CrewUpdate = &cu
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// CloneMessages deep-copies a message list.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// WithoutTyping returns msgs minus ephemeral typing indicators.
func WithoutTyping(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind != KindTyping {
			out = append(out, m)
		}
	}
	return out
}

// LastN keeps only the most recent n messages.
func LastN(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// Greeting is the standard first message of every new session.
func Greeting(now time.Time) Message {
	return Message{
		ID:        NewID(),
		Kind:      KindBot,
		Text:      "Hello! I'm your Enhanced Super Agent. How can I assist you today?",
		SubText:   "System initialized with safety protocols active",
		Timestamp: now,
	}
}
