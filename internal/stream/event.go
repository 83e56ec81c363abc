package stream

import (
	"encoding/json"
	"fmt"
)

// EventType is the closed set of orchestrator events.
type EventType string

const (
	EventStatusUpdate EventType = "status_update"
	EventTaskUpdate   EventType = "task_update"
	EventFinalResult  EventType = "final_result"
	EventError        EventType = "error"
	EventStreamEnd    EventType = "stream_end"
	EventUnknown      EventType = "unknown"
	EventMalformed    EventType = "malformed"
)

// TaskUpdate is the payload of a task_update event.
type TaskUpdate struct {
	AgentRole       string `json:"agent_role"`
	TaskDescription string `json:"task_description"`
	OutputSummary   string `json:"output_summary"`
	FullOutput      string `json:"full_output"`
}

// FinalResult is the payload of a final_result event.
type FinalResult struct {
	Result     string
	AgentsUsed []string
}

// Event is one decoded record. Only the fields for Type are set.
type Event struct {
	Type    EventType
	RawType string // as sent, for unknown events
	Message string // status_update, error, stream_end
	Task    TaskUpdate
	Result  FinalResult
	Err     error // malformed
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventError || e.Type == EventStreamEnd
}

// envelope is used for initial type dispatch.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type messageData struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type finalData struct {
	Result      json.RawMessage `json:"result"`
	CrewDetails struct {
		AgentsUsed []string `json:"agents_used"`
	} `json:"crew_details"`
}

// ParseEvent decodes a record payload. It never fails: invalid JSON yields
// an EventMalformed and unrecognized types an EventUnknown.
func ParseEvent(payload []byte) Event {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{Type: EventMalformed, Err: fmt.Errorf("stream: decode event: %w", err)}
	}

	data := env.Data
	if len(data) == 0 || string(data) == "null" {
		data = []byte("{}")
	}

	switch EventType(env.Type) {
	case EventStatusUpdate, EventError, EventStreamEnd:
		var d messageData
		if err := json.Unmarshal(data, &d); err != nil {
			return malformed(env.Type, err)
		}
		msg := d.Message
		if msg == "" {
			msg = d.Error
		}
		return Event{Type: EventType(env.Type), RawType: env.Type, Message: msg}
	case EventTaskUpdate:
		var d TaskUpdate
		if err := json.Unmarshal(data, &d); err != nil {
			return malformed(env.Type, err)
		}
		return Event{Type: EventTaskUpdate, RawType: env.Type, Task: d}
	case EventFinalResult:
		var d finalData
		if err := json.Unmarshal(data, &d); err != nil {
			return malformed(env.Type, err)
		}
		return Event{Type: EventFinalResult, RawType: env.Type, Result: FinalResult{
			Result:     stringOrJSON(d.Result),
			AgentsUsed: d.CrewDetails.AgentsUsed,
		}}
	}
	return Event{Type: EventUnknown, RawType: env.Type}
}

func malformed(typ string, err error) Event {
	return Event{Type: EventMalformed, RawType: typ, Err: fmt.Errorf("stream: decode %s data: %w", typ, err)}
}

// stringOrJSON renders a result that may be a string or any JSON value.
func stringOrJSON(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
