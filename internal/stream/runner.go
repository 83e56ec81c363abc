package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/crewdesk/internal/chat"
	"github.com/zulandar/crewdesk/internal/logging"
	"github.com/zulandar/crewdesk/internal/notify"
)

// State is the lifecycle of one orchestration request.
type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateErrored   State = "errored"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateErrored
}

// ErrCrewFailed wraps the message of an error event sent by the orchestrator.
var ErrCrewFailed = errors.New("stream: crew reported an error")

// ErrSessionGone is returned when the target session vanished before the
// live message could be appended.
var ErrSessionGone = errors.New("stream: session not found")

// Store is the session store surface the runner writes through.
type Store interface {
	AppendMessages(ctx context.Context, id string, msgs ...chat.Message) bool
	UpdateMessage(ctx context.Context, id, msgID string, fn func(*chat.Message)) bool
}

// Streamer opens orchestrator streams; *Client implements it.
type Streamer interface {
	NewRequest(prompt string, agents []string, taskDescription string) Request
	Stream(ctx context.Context, req Request, handle func(Event) bool) error
}

// Runner drives one request per call through
// idle → sending → streaming → completed | errored.
type Runner struct {
	client   Streamer
	store    Store
	notifier notify.Notifier
	now      func() time.Time
	log      zerolog.Logger
}

// RunnerOpts holds parameters for creating a Runner.
type RunnerOpts struct {
	Client   Streamer
	Store    Store
	Notifier notify.Notifier // defaults to notify.Nop
	Now      func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOpts) (*Runner, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("stream: client is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("stream: store is required")
	}
	r := &Runner{
		client:   opts.Client,
		store:    opts.Store,
		notifier: opts.Notifier,
		now:      opts.Now,
		log:      logging.For("stream"),
	}
	if r.notifier == nil {
		r.notifier = notify.Nop{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Input is one user turn sent to the orchestrator.
type Input struct {
	SessionID       string
	Prompt          string
	Agents          []string
	TaskDescription string
	// OnState, if set, observes every transition.
	OnState func(State)
}

// Result summarizes a finished request.
type Result struct {
	State     State
	MessageID string
	Events    int
	Discarded bool // the live message disappeared and later folds were dropped
	Err       error
}

// Run appends the user message and a live crew_update placeholder, then
// folds every event into the placeholder. Folds that find the session or
// message gone are discarded silently.
func (r *Runner) Run(ctx context.Context, in Input) Result {
	var mu sync.Mutex
	res := Result{State: StateIdle}
	transition := func(s State) {
		if res.State == s {
			return
		}
		res.State = s
		if in.OnState != nil {
			in.OnState(s)
		}
	}

	transition(StateSending)
	now := r.now()
	fold := NewFold(now)
	res.MessageID = fold.ID()
	user := chat.NewMessage(chat.KindUser, in.Prompt, now)
	if !r.store.AppendMessages(ctx, in.SessionID, user, fold.Message()) {
		res.Err = ErrSessionGone
		transition(StateErrored)
		return res
	}

	log := r.log.With().Str("session_id", in.SessionID).Str("message_id", fold.ID()).Logger()
	req := r.client.NewRequest(in.Prompt, in.Agents, in.TaskDescription)

	err := r.client.Stream(ctx, req, func(ev Event) bool {
		mu.Lock()
		defer mu.Unlock()
		transition(StateStreaming)
		res.Events++
		done := fold.Apply(ev)
		if !r.publish(ctx, in.SessionID, fold) {
			log.Debug().Str("event", string(ev.Type)).Msg("live message gone, discarding fold")
			res.Discarded = true
			return false
		}
		return !done
	})

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		res.Err = err
		notice := connectionNotice(err)
		fold.Fail(notice)
		if !r.publish(context.WithoutCancel(ctx), in.SessionID, fold) {
			res.Discarded = true
		}
		log.Error().Err(err).Msg("orchestration stream failed")
		notify.Best(context.WithoutCancel(ctx), r.notifier, notify.Notice{
			Title:     "Crew orchestration failed",
			Body:      notice,
			Severity:  notify.SeverityError,
			SessionID: in.SessionID,
		})
		transition(StateErrored)
		return res
	}
	if msg := fold.Failed(); msg != "" {
		res.Err = fmt.Errorf("%w: %s", ErrCrewFailed, msg)
		log.Warn().Str("error", msg).Int("events", res.Events).Msg("orchestration stream ended with an error event")
		transition(StateErrored)
		return res
	}
	log.Info().Int("events", res.Events).Msg("orchestration stream finished")
	transition(StateCompleted)
	return res
}

func (r *Runner) publish(ctx context.Context, sessionID string, fold *Fold) bool {
	live := fold.Message()
	return r.store.UpdateMessage(ctx, sessionID, live.ID, func(m *chat.Message) {
		m.Text = live.Text
		m.SubText = live.SubText
		m.AgentName = live.AgentName
		collapsed := live.CrewUpdate.IsCollapsed
		if m.CrewUpdate != nil {
			collapsed = m.CrewUpdate.IsCollapsed
		}
		m.CrewUpdate = live.CrewUpdate
		m.CrewUpdate.IsCollapsed = collapsed
	})
}

func connectionNotice(err error) string {
	if errors.Is(err, ErrStalled) {
		return "Connection error: the crew orchestrator stopped sending updates. " +
			"It may still be working; check the orchestrator logs and try again."
	}
	return fmt.Sprintf("Connection error: could not reach the crew orchestrator (%v). "+
		"Please check that the orchestrator is running and try again.", err)
}
