package stream

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/crewdesk/internal/chat"
)

// Live message texts.
const (
	OrchestratorRole   = "Crew Orchestrator"
	InitialText        = "Initializing crew orchestration..."
	ParseErrorMarker   = "[Stream Parse Error]"
	DefaultEndSubText  = "Crew orchestration complete"
	EmptyEndText       = "The crew finished without producing any output."
	blockSeparator     = "\n\n"
	finalResultHeading = "Final Result:"
)

// Fold accumulates events into one live crew_update message. Each status
// line is prepended ahead of everything accumulated so far, so the text
// reads newest status first, then the task and result blocks in arrival
// order. Nothing folded is ever dropped.
type Fold struct {
	msg      chat.Message
	statuses []string // newest first
	blocks   []string
	failed   string
}

// NewFold starts a live message stamped at now.
func NewFold(now time.Time) *Fold {
	msg := chat.NewMessage(chat.KindCrewUpdate, InitialText, now)
	msg.AgentName = OrchestratorRole
	msg.CrewUpdate = &chat.CrewUpdateData{IsCollapsed: true}
	return &Fold{msg: msg}
}

// Message returns a copy of the live message.
func (f *Fold) Message() chat.Message {
	return f.msg.Clone()
}

// ID is the live message id, the target of every fold.
func (f *Fold) ID() string {
	return f.msg.ID
}

// Apply folds ev into the live message and reports whether the stream ends.
func (f *Fold) Apply(ev Event) (done bool) {
	crew := f.msg.CrewUpdate
	switch ev.Type {
	case EventStatusUpdate:
		f.statuses = append([]string{ev.Message}, f.statuses...)
		crew.AgentRole = OrchestratorRole
	case EventTaskUpdate:
		f.msg.CrewUpdate = &chat.CrewUpdateData{
			AgentRole:       ev.Task.AgentRole,
			TaskDescription: ev.Task.TaskDescription,
			OutputSummary:   ev.Task.OutputSummary,
			FullOutput:      ev.Task.FullOutput,
			IsCollapsed:     crew.IsCollapsed,
		}
		f.blocks = append(f.blocks, taskBlock(ev.Task))
	case EventFinalResult:
		block := finalResultHeading + "\n" + ev.Result.Result
		if len(ev.Result.AgentsUsed) > 0 {
			block += "\n\nAgents used: " + strings.Join(ev.Result.AgentsUsed, ", ")
		}
		f.blocks = append(f.blocks, block)
		crew.OutputSummary = ev.Result.Result
		crew.AgentRole = OrchestratorRole
	case EventError:
		msg := ev.Message
		if msg == "" {
			msg = "unknown error"
		}
		f.blocks = append(f.blocks, "Error: "+msg)
		f.failed = msg
		done = true
	case EventStreamEnd:
		f.msg.SubText = ev.Message
		if f.msg.SubText == "" {
			f.msg.SubText = DefaultEndSubText
		}
		if len(f.statuses) == 0 && len(f.blocks) == 0 {
			f.msg.Text = EmptyEndText
			return true
		}
		done = true
	case EventMalformed:
		f.blocks = append(f.blocks, ParseErrorMarker)
	default:
		return false
	}
	f.render()
	return done
}

// Failed returns the message of the error event that ended the stream, or
// "" if none did.
func (f *Fold) Failed() string {
	return f.failed
}

// Fail replaces the text with a transport failure notice.
func (f *Fold) Fail(notice string) {
	f.msg.Text = notice
}

// Collapse sets whether the full output is folded away.
func (f *Fold) Collapse(collapsed bool) {
	f.msg.CrewUpdate.IsCollapsed = collapsed
}

func (f *Fold) render() {
	parts := make([]string, 0, len(f.statuses)+len(f.blocks))
	parts = append(parts, f.statuses...)
	parts = append(parts, f.blocks...)
	if len(parts) == 0 {
		return
	}
	f.msg.Text = strings.Join(parts, blockSeparator)
}

func taskBlock(t TaskUpdate) string {
	role := t.AgentRole
	if role == "" {
		role = "Agent"
	}
	block := fmt.Sprintf("%s completed task: %s", role, t.TaskDescription)
	if t.OutputSummary != "" {
		block += "\n" + t.OutputSummary
	}
	return block
}
