// Package conductor answers user messages. It runs handoff and
// collaboration detection first, then hands the turn to the configured
// backend: local simulation, the workflow webhook or the streaming crew
// orchestrator. Collaborations and handoffs are started from here too.
package conductor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/crewdesk/internal/chat"
	"github.com/zulandar/crewdesk/internal/collab"
	"github.com/zulandar/crewdesk/internal/config"
	"github.com/zulandar/crewdesk/internal/detect"
	"github.com/zulandar/crewdesk/internal/logging"
	"github.com/zulandar/crewdesk/internal/notify"
	"github.com/zulandar/crewdesk/internal/session"
	"github.com/zulandar/crewdesk/internal/stream"
	"github.com/zulandar/crewdesk/internal/webhook"
	"gorm.io/gorm"
)

var (
	// ErrBusy is returned while the session already has a turn in flight.
	ErrBusy = errors.New("conductor: session is busy")
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("conductor: session not found")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("conductor: message is empty")
	// ErrUnknownTask is returned when a collaboration task id is not known.
	ErrUnknownTask = errors.New("conductor: unknown collaboration task")
)

// Timing of the local simulation.
const (
	ReplyDelay    = 1500 * time.Millisecond
	FollowUpDelay = 2 * time.Second
)

// DefaultAgent answers when a session has no current agent.
const DefaultAgent = "Super Agent"

// Conductor routes user turns for every session.
type Conductor struct {
	sessions  *session.Manager
	mode      string
	detector  *detect.Detector
	simulator *collab.Simulator
	runner    *stream.Runner
	webhook   *webhook.Client
	db        *gorm.DB
	notifier  notify.Notifier
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	log       zerolog.Logger

	life   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	active map[string]struct{}
}

// Opts holds parameters for creating a Conductor.
type Opts struct {
	Sessions  *session.Manager
	Mode      string           // config.ModeSimulate (default), ModeWebhook or ModeStream
	Detector  *detect.Detector // nil disables detection
	Simulator *collab.Simulator
	Runner    *stream.Runner  // required in stream mode
	Webhook   *webhook.Client // required in webhook mode
	DB        *gorm.DB        // optional inter-agent message log
	Notifier  notify.Notifier
	Now       func() time.Time
	Sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a Conductor.
func New(opts Opts) (*Conductor, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("conductor: sessions is required")
	}
	mode := opts.Mode
	if mode == "" {
		mode = config.ModeSimulate
	}
	switch mode {
	case config.ModeSimulate:
	case config.ModeWebhook:
		if opts.Webhook == nil {
			return nil, fmt.Errorf("conductor: webhook client is required in webhook mode")
		}
	case config.ModeStream:
		if opts.Runner == nil {
			return nil, fmt.Errorf("conductor: stream runner is required in stream mode")
		}
	default:
		return nil, fmt.Errorf("conductor: unknown mode %q", mode)
	}

	c := &Conductor{
		sessions:  opts.Sessions,
		mode:      mode,
		detector:  opts.Detector,
		simulator: opts.Simulator,
		runner:    opts.Runner,
		webhook:   opts.Webhook,
		db:        opts.DB,
		notifier:  opts.Notifier,
		now:       opts.Now,
		sleep:     opts.Sleep,
		log:       logging.For("conductor"),
		active:    make(map[string]struct{}),
	}
	if c.notifier == nil {
		c.notifier = notify.Nop{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = sleepCtx
	}
	if c.simulator == nil {
		c.simulator = collab.NewSimulator(collab.SimulatorOpts{Sleep: c.sleep, Now: c.now})
	}
	c.life, c.stop = context.WithCancel(context.Background())
	if c.db != nil {
		c.sessions.OnReset(c.purgeMessageLog)
	}
	return c, nil
}

// Mode returns the configured backend mode.
func (c *Conductor) Mode() string { return c.mode }

// Busy reports whether sessionID has a turn in flight.
func (c *Conductor) Busy(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[sessionID]
	return ok
}

// Wait blocks until background follow-ups and collaborations finish.
func (c *Conductor) Wait() {
	c.wg.Wait()
}

// Close cancels background work and waits for it to stop.
func (c *Conductor) Close() {
	c.stop()
	c.wg.Wait()
}

// Reply reports what a Send did.
type Reply struct {
	Detection detect.Result   `json:"detection"`
	Messages  []chat.Message  `json:"messages,omitempty"`
	Stream    *stream.Result  `json:"-"`
	Outcome   webhook.Outcome `json:"outcome,omitempty"`
	State     stream.State    `json:"state,omitempty"`
}

// Send appends the user's text to sessionID and answers it. A detected
// collaboration or handoff is answered with a suggestion only; the caller
// confirms it with StartCollaboration or ConfirmHandoff.
func (c *Conductor) Send(ctx context.Context, sessionID, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	sess, ok := c.sessions.Session(sessionID)
	if !ok {
		return Reply{}, ErrSessionNotFound
	}
	if !c.acquire(sessionID) {
		return Reply{}, ErrBusy
	}
	defer c.release(sessionID)

	log := c.log.With().Str("session_id", sessionID).Str("mode", c.mode).Logger()
	agent := currentAgent(sess)

	if c.detector != nil {
		det := c.detector.Detect(text, sess.CurrentAgent)
		if msg, ok := detect.Suggestion(det, agent, c.now()); ok {
			user := chat.NewMessage(chat.KindUser, text, c.now())
			if !c.sessions.AppendMessages(ctx, sessionID, user, msg) {
				return Reply{}, ErrSessionNotFound
			}
			log.Info().Bool("collaboration", det.Collaboration != nil).Bool("handoff", det.Handoff != nil).Msg("suggestion offered")
			return Reply{Detection: det, Messages: []chat.Message{msg}}, nil
		}
	}

	switch c.mode {
	case config.ModeStream:
		var agents []string
		if sess.CurrentAgent != "" {
			agents = []string{sess.CurrentAgent}
		}
		res := c.runner.Run(ctx, stream.Input{
			SessionID:       sessionID,
			Prompt:          text,
			Agents:          agents,
			TaskDescription: text,
		})
		if errors.Is(res.Err, stream.ErrSessionGone) {
			return Reply{}, ErrSessionNotFound
		}
		return Reply{Stream: &res, State: res.State}, nil
	case config.ModeWebhook:
		return c.sendWebhook(ctx, sessionID, text, log)
	default:
		return c.sendLocal(ctx, sessionID, text, agent, log)
	}
}

func (c *Conductor) sendWebhook(ctx context.Context, sessionID, text string, log zerolog.Logger) (Reply, error) {
	user := chat.NewMessage(chat.KindUser, text, c.now())
	if !c.sessions.AppendMessages(ctx, sessionID, user) {
		return Reply{}, ErrSessionNotFound
	}
	typingID := c.startTyping(ctx, sessionID)
	sess, _ := c.sessions.Session(sessionID)
	reply := c.webhook.Send(ctx, sessionID, sess.Messages)
	c.sessions.RemoveMessage(ctx, sessionID, typingID)

	if !c.sessions.AppendMessages(ctx, sessionID, reply.Messages...) {
		log.Debug().Msg("session removed before webhook reply")
		return Reply{}, ErrSessionNotFound
	}
	if reply.Outcome.Failed() {
		notify.Best(context.WithoutCancel(ctx), c.notifier, notify.Notice{
			Title:     "Workflow webhook failed",
			Body:      reply.Messages[0].Text,
			Severity:  notify.SeverityError,
			SessionID: sessionID,
		})
	}
	return Reply{Messages: reply.Messages, Outcome: reply.Outcome}, nil
}

func (c *Conductor) sendLocal(ctx context.Context, sessionID, text, agent string, log zerolog.Logger) (Reply, error) {
	user := chat.NewMessage(chat.KindUser, text, c.now())
	if !c.sessions.AppendMessages(ctx, sessionID, user) {
		return Reply{}, ErrSessionNotFound
	}
	typingID := c.startTyping(ctx, sessionID)
	if err := c.sleep(ctx, ReplyDelay); err != nil {
		c.sessions.RemoveMessage(context.WithoutCancel(ctx), sessionID, typingID)
		return Reply{}, err
	}
	c.sessions.RemoveMessage(ctx, sessionID, typingID)

	reply := LocalReply(text, agent, c.now())
	if !c.sessions.AppendMessages(ctx, sessionID, reply) {
		return Reply{}, ErrSessionNotFound
	}
	if reply.Kind == chat.KindBotComplex {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.sleep(c.life, FollowUpDelay); err != nil {
				return
			}
			if !c.sessions.AppendMessages(c.life, sessionID, FollowUp(text, agent, c.now())) {
				log.Debug().Msg("session removed before follow-up")
			}
		}()
	}
	return Reply{Messages: []chat.Message{reply}}, nil
}

func (c *Conductor) startTyping(ctx context.Context, sessionID string) string {
	typing := chat.NewMessage(chat.KindTyping, "", c.now())
	c.sessions.AppendMessages(ctx, sessionID, typing)
	return typing.ID
}

func (c *Conductor) acquire(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[sessionID]; ok {
		return false
	}
	c.active[sessionID] = struct{}{}
	return true
}

func (c *Conductor) release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, sessionID)
}

func currentAgent(s chat.Session) string {
	if s.CurrentAgent == "" {
		return DefaultAgent
	}
	return s.CurrentAgent
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
