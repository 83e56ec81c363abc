package conductor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zulandar/crewdesk/internal/chat"
	"github.com/zulandar/crewdesk/internal/collab"
	"github.com/zulandar/crewdesk/internal/detect"
	"github.com/zulandar/crewdesk/internal/messaging"
	"gorm.io/gorm"
)

// StartCollaboration runs the built-in task taskID in the background for
// sessionID and returns the collaboration id. With no agents the task's
// required agents participate. The run is owned by the session store, so
// deleting or clearing the session stops it.
func (c *Conductor) StartCollaboration(ctx context.Context, sessionID, taskID string, agents []string) (string, error) {
	task, ok := detect.Task(taskID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	if len(agents) == 0 {
		agents = task.RequiredAgents
	}
	if _, ok := c.sessions.Session(sessionID); !ok {
		return "", ErrSessionNotFound
	}

	co := collab.Collaboration{ID: collab.NewID(), Task: task, Agents: append([]string(nil), agents...)}
	runCtx, cancel := context.WithCancel(c.life)
	if !c.sessions.TrackCollaboration(sessionID, co.ID, cancel) {
		cancel()
		return "", ErrSessionNotFound
	}

	log := c.log.With().Str("session_id", sessionID).Str("collaboration_id", co.ID).Logger()
	sink := &sessionSink{conductor: c, sessionID: sessionID, collabID: co.ID, log: log}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.sessions.ReleaseCollaboration(sessionID, co.ID)
		defer cancel()
		err := c.simulator.Run(runCtx, sink, co)
		switch {
		case err == nil:
			log.Info().Str("task", task.ID).Msg("collaboration completed")
		case errors.Is(err, context.Canceled), errors.Is(err, collab.ErrSinkClosed):
			log.Info().Err(err).Msg("collaboration stopped")
		default:
			log.Error().Err(err).Msg("collaboration failed")
		}
	}()
	log.Info().Str("task", task.ID).Strs("agents", co.Agents).Msg("collaboration started")
	return co.ID, nil
}

// sessionSink posts collaboration messages into one session and records
// inter-agent messages in the message log.
type sessionSink struct {
	conductor *Conductor
	sessionID string
	collabID  string
	log       zerolog.Logger
}

// Post appends msg unless the collaboration was cancelled. The check runs
// under the store lock, the same lock a delete or clear cancels under, so no
// message lands in a session after it was reset.
func (s *sessionSink) Post(ctx context.Context, msg chat.Message) error {
	var cancelled error
	ok := s.conductor.sessions.Mutate(ctx, s.sessionID, func(sess *chat.Session) bool {
		if cancelled = ctx.Err(); cancelled != nil {
			return false
		}
		sess.Messages = append(sess.Messages, msg.Clone())
		return true
	})
	if cancelled != nil {
		return cancelled
	}
	if !ok {
		return collab.ErrSinkClosed
	}
	return nil
}

// Deliver records m in the message log, guarded like Post so a purge on
// reset is never followed by a stale row.
func (s *sessionSink) Deliver(ctx context.Context, m collab.InterAgentMessage) error {
	if s.conductor.db == nil {
		s.log.Debug().Str("from", m.FromAgent).Msg(m.Message)
		return nil
	}
	var err error
	ok := s.conductor.sessions.Guard(s.sessionID, func() {
		if err = ctx.Err(); err != nil {
			return
		}
		_, err = messaging.Send(s.conductor.db, s.collabID, m.FromAgent, m.ToAgent, m.Message, messaging.SendOpts{
			MessageID:   m.ID,
			SessionID:   s.sessionID,
			Type:        string(m.Type),
			Priority:    string(m.Priority),
			ScheduledAt: m.Timestamp,
		})
	})
	if !ok {
		return collab.ErrSinkClosed
	}
	return err
}

// purgeMessageLog drops the inter-agent log of a deleted or cleared session.
func (c *Conductor) purgeMessageLog(_ context.Context, sessionID string) {
	n, err := messaging.Purge(c.db, sessionID)
	if err != nil {
		c.log.Warn().Err(err).Str("session_id", sessionID).Msg("purge inter-agent messages")
		return
	}
	if n > 0 {
		c.log.Debug().Str("session_id", sessionID).Int64("rows", n).Msg("inter-agent messages purged")
	}
}

// ConfirmHandoff transfers sessionID to toAgent: it appends the transfer
// record and the new agent's welcome and makes toAgent current.
func (c *Conductor) ConfirmHandoff(ctx context.Context, sessionID, toAgent, reason, note string) error {
	toAgent = strings.TrimSpace(toAgent)
	if toAgent == "" {
		return fmt.Errorf("conductor: target agent is required")
	}
	var from string
	ok := c.sessions.Mutate(ctx, sessionID, func(s *chat.Session) bool {
		from = currentAgent(*s)
		s.Messages = append(s.Messages, detect.HandoffMessages(from, toAgent, reason, note, c.now())...)
		s.CurrentAgent = toAgent
		return true
	})
	if !ok {
		return ErrSessionNotFound
	}
	c.log.Info().Str("session_id", sessionID).Str("from", from).Str("to", toAgent).Msg("conversation handed off")
	return nil
}

// InterAgentMessages returns the recorded thread of a collaboration.
func InterAgentMessages(db *gorm.DB, collabID string) ([]collab.InterAgentMessage, error) {
	rows, err := messaging.Thread(db, collabID)
	if err != nil {
		return nil, err
	}
	out := make([]collab.InterAgentMessage, len(rows))
	for i, r := range rows {
		out[i] = collab.InterAgentMessage{
			ID:        r.MessageID,
			FromAgent: r.FromAgent,
			ToAgent:   r.ToAgent,
			Message:   r.Body,
			Timestamp: r.ScheduledAt,
			Type:      collab.MessageType(r.Type),
			Priority:  collab.Priority(r.Priority),
		}
	}
	return out, nil
}

// DB returns the inter-agent message log, or nil.
func (c *Conductor) DB() *gorm.DB { return c.db }
