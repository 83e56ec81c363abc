// Package detect classifies a user message as needing a specialist handoff,
// a multi-agent collaboration, or neither, using ordered keyword tables.
package detect

import "strings"

// Complexity grades a collaboration task.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// CollaborationTask is an immutable multi-agent task template.
type CollaborationTask struct {
	ID             string     `json:"id"`
	Description    string     `json:"description"`
	RequiredAgents []string   `json:"requiredAgents"`
	EstimatedTime  string     `json:"estimatedTime"`
	Complexity     Complexity `json:"complexity"`
}

// HandoffReason explains why a specialist should take over.
type HandoffReason struct {
	Reason          string   `json:"reason"`
	Description     string   `json:"description"`
	SuggestedAgents []string `json:"suggestedAgents"`
}

// CollaborationPattern maps keywords to a task.
type CollaborationPattern struct {
	Keywords []string
	Task     CollaborationTask
}

// HandoffPattern maps keywords to a handoff reason.
type HandoffPattern struct {
	Keywords []string
	Reason   HandoffReason
}

// Result holds at most one of Collaboration or Handoff.
type Result struct {
	Collaboration *CollaborationTask `json:"collaboration,omitempty"`
	Handoff       *HandoffReason     `json:"handoff,omitempty"`
}

// None reports whether nothing was detected.
func (r Result) None() bool {
	return r.Collaboration == nil && r.Handoff == nil
}

// Detector evaluates its tables in order. The zero value detects nothing;
// use Default for the built-in tables.
type Detector struct {
	Collaborations []CollaborationPattern
	Handoffs       []HandoffPattern
}

// Default returns a Detector over the built-in tables.
func Default() *Detector {
	return &Detector{Collaborations: collaborationPatterns, Handoffs: handoffPatterns}
}

// Detect classifies message. Collaboration patterns take precedence and
// short-circuit handoff detection. A handoff pattern is skipped when
// currentAgent is already one of its suggested agents.
func (d *Detector) Detect(message, currentAgent string) Result {
	lower := strings.ToLower(strings.TrimSpace(message))
	if lower == "" {
		return Result{}
	}
	if task, ok := d.DetectCollaboration(lower); ok {
		return Result{Collaboration: &task}
	}
	if reason, ok := d.DetectHandoff(lower, currentAgent); ok {
		return Result{Handoff: &reason}
	}
	return Result{}
}

// DetectCollaboration returns the first task whose keywords occur in message.
func (d *Detector) DetectCollaboration(message string) (CollaborationTask, bool) {
	lower := strings.ToLower(message)
	for _, p := range d.Collaborations {
		if containsAny(lower, p.Keywords) {
			return p.Task, true
		}
	}
	return CollaborationTask{}, false
}

// DetectHandoff returns the first handoff reason whose keywords occur in
// message and whose suggested agents exclude currentAgent.
func (d *Detector) DetectHandoff(message, currentAgent string) (HandoffReason, bool) {
	lower := strings.ToLower(message)
	for _, p := range d.Handoffs {
		if !containsAny(lower, p.Keywords) {
			continue
		}
		if currentAgent != "" && contains(p.Reason.SuggestedAgents, currentAgent) {
			continue
		}
		return p.Reason, true
	}
	return HandoffReason{}, false
}

// Task looks up a built-in collaboration task by id.
func Task(id string) (CollaborationTask, bool) {
	for _, p := range collaborationPatterns {
		if p.Task.ID == id {
			return p.Task, true
		}
	}
	return CollaborationTask{}, false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
