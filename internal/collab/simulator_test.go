package collab

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/crewdesk/internal/chat"
	"github.com/zulandar/crewdesk/internal/detect"
)

var start = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

type recordSink struct {
	mu        sync.Mutex
	posts     []chat.Message
	delivered []InterAgentMessage
	order     []string
	postErr   error
}

func (r *recordSink) Post(_ context.Context, msg chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.postErr != nil {
		return r.postErr
	}
	r.posts = append(r.posts, msg)
	r.order = append(r.order, "post:"+string(msg.Kind))
	return nil
}

func (r *recordSink) Deliver(_ context.Context, msg InterAgentMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, msg)
	r.order = append(r.order, "deliver:"+msg.ID)
	return nil
}

// fakeClock advances virtual time on each sleep.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return ctx.Err()
}

func newTestSimulator() (*Simulator, *fakeClock) {
	clock := &fakeClock{now: start}
	return NewSimulator(SimulatorOpts{Sleep: clock.Sleep, Now: func() time.Time { return start }}), clock
}

func testCollaboration(taskID string) Collaboration {
	task, _ := detect.Task(taskID)
	return Collaboration{ID: "collab-1", Task: task, Agents: task.RequiredAgents}
}

func TestSteps(t *testing.T) {
	tests := []struct {
		agents []string
		want   int
	}{
		{nil, 0},
		{[]string{"a"}, 1},
		{[]string{"a", "b"}, 2},
		{[]string{"a", "b", "c"}, 3},
		{[]string{"a", "b", "c", "d"}, 3},
	}
	for _, tt := range tests {
		steps := Steps(tt.agents)
		if len(steps) != tt.want {
			t.Errorf("Steps(%v) = %d steps, want %d", tt.agents, len(steps), tt.want)
		}
		for i, s := range steps {
			if s.Agent != tt.agents[i] {
				t.Errorf("step %d agent = %q, want %q", i, s.Agent, tt.agents[i])
			}
		}
	}
}

func TestConversation_Template(t *testing.T) {
	msgs := Conversation("business-strategy", nil, "c1", start)
	if len(msgs) != 9 {
		t.Fatalf("messages = %d, want 9", len(msgs))
	}
	for i, m := range msgs {
		if want := start.Add(time.Duration(i) * 2 * time.Second); !m.Timestamp.Equal(want) {
			t.Errorf("msg %d timestamp = %v, want %v", i, m.Timestamp, want)
		}
	}
	if msgs[0].ID != "c1-msg-0" || msgs[8].ID != "c1-msg-8" {
		t.Errorf("ids = %q..%q", msgs[0].ID, msgs[8].ID)
	}
	if msgs[1].ToAgent != "Research Agent" || msgs[0].ToAgent != "" {
		t.Errorf("ToAgent = %q / %q", msgs[0].ToAgent, msgs[1].ToAgent)
	}
	if len(Conversation("marketing-campaign", nil, "c", start)) != 8 {
		t.Error("marketing-campaign should have 8 messages")
	}
	if len(Conversation("product-development", nil, "c", start)) != 11 {
		t.Error("product-development should have 11 messages")
	}
}

func TestConversation_GenericFallback(t *testing.T) {
	msgs := Conversation("event-planning", []string{"Planner Agent", "Unknown Bot"}, "c2", start)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Message != "Planner Agent ready for collaboration. I'll handle multi-destination travel itineraries." {
		t.Errorf("msg 0 = %q", msgs[0].Message)
	}
	if msgs[1].Message != "Unknown Bot ready for collaboration." {
		t.Errorf("msg 1 = %q", msgs[1].Message)
	}
	if msgs[1].Type != TypeCoordination || msgs[1].Priority != PriorityNormal {
		t.Errorf("msg 1 = %+v", msgs[1])
	}
}

func TestRun_NoAgents(t *testing.T) {
	sim, _ := newTestSimulator()
	err := sim.Run(context.Background(), &recordSink{}, Collaboration{ID: "x"})
	if !errors.Is(err, ErrNoAgents) {
		t.Errorf("err = %v, want ErrNoAgents", err)
	}
}

func TestRun_ComprehensiveAnalysis(t *testing.T) {
	sim, clock := newTestSimulator()
	sink := &recordSink{}
	c := testCollaboration("comprehensive-analysis")

	if err := sim.Run(context.Background(), sink, c); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var updates []chat.Message
	var completed int
	for _, m := range sink.posts {
		switch m.Kind {
		case chat.KindCollaborationUpdate:
			updates = append(updates, m)
		case chat.KindCollaboration:
			if m.Collaboration.Status == chat.CollaborationCompleted {
				completed++
				if m.Collaboration.Progress != 100 || !m.IsSuccess || len(m.Details) != 4 {
					t.Errorf("completion = %+v", m)
				}
			}
		}
	}
	if completed != 1 {
		t.Errorf("completed messages = %d, want 1", completed)
	}
	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}
	for i, agent := range []string{"Research Agent", "Data Analysis"} {
		if updates[i].AgentName != agent || !strings.HasPrefix(updates[i].Text, "["+agent+"]") {
			t.Errorf("update %d = %q by %q", i, updates[i].Text, updates[i].AgentName)
		}
	}
	if updates[0].Collaboration.Progress != 50 || updates[1].Collaboration.Progress != 100 {
		t.Errorf("progress = %d, %d", updates[0].Collaboration.Progress, updates[1].Collaboration.Progress)
	}

	// generic conversation: two agents at 0s and 2s; steps at 1s and 3s; completion at 6s.
	var total time.Duration
	for _, d := range clock.sleeps {
		total += d
	}
	if total != 6*time.Second {
		t.Errorf("total scheduled time = %v, want 6s", total)
	}
	if !updates[1].Timestamp.Equal(start.Add(3 * time.Second)) {
		t.Errorf("step 2 timestamp = %v", updates[1].Timestamp)
	}
}

func TestRun_ProgressMonotonic(t *testing.T) {
	for _, taskID := range []string{"business-strategy", "product-development", "marketing-campaign"} {
		t.Run(taskID, func(t *testing.T) {
			sim, _ := newTestSimulator()
			sink := &recordSink{}
			if err := sim.Run(context.Background(), sink, testCollaboration(taskID)); err != nil {
				t.Fatalf("Run: %v", err)
			}
			last, lastRank := -1, -1
			for _, m := range sink.posts {
				cd := m.Collaboration
				if cd == nil || cd.ID != "collab-1" {
					continue
				}
				if cd.Progress < last || cd.Status.Rank() < lastRank {
					t.Errorf("regressed to %s/%d after %d", cd.Status, cd.Progress, last)
				}
				last, lastRank = cd.Progress, cd.Status.Rank()
			}
			if last != 100 {
				t.Errorf("final progress = %d, want 100", last)
			}
			if len(sink.delivered) != len(Conversation(taskID, nil, "", start)) {
				t.Errorf("delivered = %d", len(sink.delivered))
			}
		})
	}
}

func TestRun_DeliveryOrderPreserved(t *testing.T) {
	sim, _ := newTestSimulator()
	sink := &recordSink{}
	if err := sim.Run(context.Background(), sink, testCollaboration("product-development")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := 1; i < len(sink.delivered); i++ {
		if sink.delivered[i].Timestamp.Before(sink.delivered[i-1].Timestamp) {
			t.Errorf("delivery %d out of order", i)
		}
	}
	if sink.order[0] != "post:collaboration" {
		t.Errorf("first write = %q, want start message", sink.order[0])
	}
}

func TestRun_CancelSuppressesWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordSink{}
	calls := 0
	sim := NewSimulator(SimulatorOpts{
		Now: func() time.Time { return start },
		Sleep: func(ctx context.Context, d time.Duration) error {
			calls++
			if calls == 3 {
				cancel()
			}
			return ctx.Err()
		},
	})

	err := sim.Run(ctx, sink, testCollaboration("business-strategy"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	writes := len(sink.order)
	// start message plus the two actions released before the third sleep.
	if writes != 3 {
		t.Errorf("writes = %d, want 3: %v", writes, sink.order)
	}
	for _, m := range sink.posts {
		if m.Collaboration != nil && m.Collaboration.Status == chat.CollaborationCompleted {
			t.Error("completion posted after cancel")
		}
	}
}

func TestRun_SinkClosedStops(t *testing.T) {
	sim, _ := newTestSimulator()
	sink := &recordSink{postErr: ErrSinkClosed}
	err := sim.Run(context.Background(), sink, testCollaboration("marketing-campaign"))
	if !errors.Is(err, ErrSinkClosed) {
		t.Errorf("err = %v, want ErrSinkClosed", err)
	}
	if len(sink.delivered) != 0 {
		t.Errorf("delivered %d messages after sink closed", len(sink.delivered))
	}
}

func TestStartMessage(t *testing.T) {
	c := testCollaboration("business-strategy")
	msg := StartMessage(c, start)
	if msg.Kind != chat.KindCollaboration || msg.Collaboration.Status != chat.CollaborationStarting {
		t.Errorf("start = %+v", msg)
	}
	if msg.SubText != "3 agents working together: Research Agent, Data Analysis, Content Synthesis" {
		t.Errorf("SubText = %q", msg.SubText)
	}
	if msg.Collaboration.Progress != 0 {
		t.Errorf("Progress = %d", msg.Collaboration.Progress)
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b || !strings.HasPrefix(a, "collab-") {
		t.Errorf("NewID = %q, %q", a, b)
	}
}
