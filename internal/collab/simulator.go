package collab

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/crewdesk/internal/chat"
	"github.com/zulandar/crewdesk/internal/detect"
	"github.com/zulandar/crewdesk/internal/logging"
)

var (
	// ErrNoAgents is returned when a collaboration has no participants.
	ErrNoAgents = errors.New("collab: at least one agent is required")
	// ErrSinkClosed is returned by a Sink whose target no longer exists.
	ErrSinkClosed = errors.New("collab: sink closed")
)

// FirstStepDelay is the pause between the start message and the first step.
const FirstStepDelay = time.Second

// Step is one phase of the progress sequence.
type Step struct {
	Agent       string
	Description string
	Duration    time.Duration
}

var stepTemplates = []Step{
	{Description: "Initial analysis and planning", Duration: 2000 * time.Millisecond},
	{Description: "Detailed research and data gathering", Duration: 3000 * time.Millisecond},
	{Description: "Synthesis and final recommendations", Duration: 2500 * time.Millisecond},
}

// Steps assigns the step templates to agents in order; at most three steps
// run, and fewer when fewer agents participate.
func Steps(agents []string) []Step {
	n := min(len(agents), len(stepTemplates))
	steps := make([]Step, n)
	for i := 0; i < n; i++ {
		steps[i] = stepTemplates[i]
		steps[i].Agent = agents[i]
	}
	return steps
}

var completionDetails = []string{
	"Research phase completed with comprehensive data",
	"Analysis performed with statistical insights",
	"Recommendations synthesized from all perspectives",
	"Final deliverables ready for review",
}

// Collaboration binds a task to the participating agents.
type Collaboration struct {
	ID     string
	Task   detect.CollaborationTask
	Agents []string
}

// NewID returns a fresh collaboration id.
func NewID() string {
	return "collab-" + chat.NewID()
}

// Sink receives simulator output. Post returning ErrSinkClosed stops the run.
type Sink interface {
	Post(ctx context.Context, msg chat.Message) error
	Deliver(ctx context.Context, msg InterAgentMessage) error
}

// Simulator drives collaborations against a Sink.
type Simulator struct {
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	log   zerolog.Logger
}

// SimulatorOpts holds optional hooks for creating a Simulator.
type SimulatorOpts struct {
	Sleep func(ctx context.Context, d time.Duration) error // defaults to a context-aware timer
	Now   func() time.Time
}

// NewSimulator creates a Simulator.
func NewSimulator(opts SimulatorOpts) *Simulator {
	s := &Simulator{sleep: opts.Sleep, now: opts.Now, log: logging.For("collab")}
	if s.sleep == nil {
		s.sleep = sleepCtx
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// action is one scheduled write, at an offset from the collaboration start.
type action struct {
	at  time.Duration
	run func(ctx context.Context) error
}

// Run posts the start message and then plays the inter-agent conversation
// and the progress sequence on their own schedules, both measured from the
// start. It returns ctx.Err() if cancelled; nothing is written after
// cancellation is observed.
func (s *Simulator) Run(ctx context.Context, sink Sink, c Collaboration) error {
	if len(c.Agents) == 0 {
		return ErrNoAgents
	}
	start := s.now()
	log := s.log.With().Str("collaboration_id", c.ID).Str("task", c.Task.ID).Logger()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sink.Post(ctx, StartMessage(c, start)); err != nil {
		return fmt.Errorf("collab: post start: %w", err)
	}

	plan := s.plan(sink, c, start, log)
	var elapsed time.Duration
	for _, a := range plan {
		if err := s.sleep(ctx, a.at-elapsed); err != nil {
			return err
		}
		elapsed = a.at
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.run(ctx); err != nil {
			return err
		}
	}
	log.Info().Msg("collaboration completed")
	return nil
}

func (s *Simulator) plan(sink Sink, c Collaboration, start time.Time, log zerolog.Logger) []action {
	var plan []action

	for _, msg := range Conversation(c.Task.ID, c.Agents, c.ID, start) {
		plan = append(plan, action{
			at: msg.Timestamp.Sub(start),
			run: func(ctx context.Context) error {
				if err := sink.Deliver(ctx, msg); err != nil {
					log.Warn().Err(err).Str("message_id", msg.ID).Msg("deliver inter-agent message")
				}
				return nil
			},
		})
	}

	steps := Steps(c.Agents)
	at := FirstStepDelay
	for i, step := range steps {
		msg := StepMessage(c, step, i, len(steps), start.Add(at))
		plan = append(plan, action{at: at, run: postAction(sink, msg)})
		at += step.Duration
	}
	plan = append(plan, action{at: at, run: postAction(sink, CompletionMessage(c, start.Add(at)))})

	sort.SliceStable(plan, func(i, j int) bool { return plan[i].at < plan[j].at })
	return plan
}

func postAction(sink Sink, msg chat.Message) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := sink.Post(ctx, msg); err != nil {
			return fmt.Errorf("collab: post %s: %w", msg.Kind, err)
		}
		return nil
	}
}

func collaborationData(c Collaboration, status chat.CollaborationStatus, progress int) *chat.CollaborationData {
	return &chat.CollaborationData{
		ID:       c.ID,
		Agents:   append([]string(nil), c.Agents...),
		Task:     c.Task.Description,
		Status:   status,
		Progress: progress,
	}
}

// StartMessage announces the collaboration.
func StartMessage(c Collaboration, at time.Time) chat.Message {
	msg := chat.NewMessage(chat.KindCollaboration, "Multi-agent collaboration started: "+c.Task.Description, at)
	msg.SubText = fmt.Sprintf("%d agents working together: %s", len(c.Agents), strings.Join(c.Agents, ", "))
	msg.Collaboration = collaborationData(c, chat.CollaborationStarting, 0)
	return msg
}

// StepMessage reports step i of n as done.
func StepMessage(c Collaboration, step Step, i, n int, at time.Time) chat.Message {
	msg := chat.NewMessage(chat.KindCollaborationUpdate, fmt.Sprintf("[%s] %s...", step.Agent, step.Description), at)
	msg.AgentName = step.Agent
	msg.Collaboration = collaborationData(c, chat.CollaborationInProgress, (i+1)*100/n)
	return msg
}

// CompletionMessage is the terminal collaboration message.
func CompletionMessage(c Collaboration, at time.Time) chat.Message {
	msg := chat.NewMessage(chat.KindCollaboration, "Collaboration completed successfully!", at)
	msg.SubText = "All agents have contributed their expertise to provide comprehensive results."
	msg.IsSuccess = true
	msg.Details = append([]string(nil), completionDetails...)
	msg.Collaboration = collaborationData(c, chat.CollaborationCompleted, 100)
	return msg
}
