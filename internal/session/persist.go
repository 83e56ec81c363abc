package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zulandar/crewdesk/internal/chat"
	"github.com/zulandar/crewdesk/internal/kv"
)

// ExportVersion is stamped into every export envelope.
const ExportVersion = "1.0"

// persistedSession probes the shape of a stored entry before decoding it.
type persistedSession struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Messages json.RawMessage `json:"messages"`
}

// load reads persisted state. Missing or unparseable state yields the single
// default session; entries lacking an id, a name or a messages array are
// dropped individually.
func (m *Manager) load(ctx context.Context) ([]chat.Session, string) {
	raw, err := m.store.Get(ctx, SessionsKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			m.log.Warn().Err(err).Msg("read persisted sessions")
		}
		return m.fresh()
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		m.log.Warn().Err(err).Msg("persisted sessions corrupt, resetting")
		m.discardPersisted(ctx)
		return m.fresh()
	}

	seen := make(map[string]bool, len(entries))
	sessions := make([]chat.Session, 0, len(entries))
	for i, entry := range entries {
		s, ok := decodeSession(entry)
		if !ok || seen[s.ID] {
			m.log.Warn().Int("index", i).Msg("dropping invalid persisted session")
			continue
		}
		seen[s.ID] = true
		sessions = append(sessions, s)
	}
	if len(sessions) == 0 {
		return m.fresh()
	}
	if len(sessions) > m.maxSessions {
		sessions = sessions[len(sessions)-m.maxSessions:]
	}

	active := sessions[0].ID
	if id, err := m.store.Get(ctx, ActiveSessionKey); err == nil {
		for _, s := range sessions {
			if s.ID == id {
				active = id
				break
			}
		}
	}
	m.log.Debug().Int("sessions", len(sessions)).Str("active", active).Msg("sessions loaded")
	return sessions, active
}

func decodeSession(entry json.RawMessage) (chat.Session, bool) {
	var probe persistedSession
	if err := json.Unmarshal(entry, &probe); err != nil {
		return chat.Session{}, false
	}
	if probe.ID == "" || probe.Name == "" || len(probe.Messages) == 0 || probe.Messages[0] != '[' {
		return chat.Session{}, false
	}
	var s chat.Session
	if err := json.Unmarshal(entry, &s); err != nil {
		return chat.Session{}, false
	}
	if s.Messages == nil {
		s.Messages = []chat.Message{}
	}
	s.Messages = chat.WithoutTyping(s.Messages)
	return s, true
}

func (m *Manager) fresh() ([]chat.Session, string) {
	def := m.defaultSession()
	return []chat.Session{def}, def.ID
}

func (m *Manager) discardPersisted(ctx context.Context) {
	for _, key := range []string{SessionsKey, ActiveSessionKey} {
		if err := m.store.Remove(ctx, key); err != nil {
			m.log.Warn().Err(err).Str("key", key).Msg("remove corrupt state")
		}
	}
}

// Export is the envelope written by ExportAllSessions.
type Export struct {
	Sessions   []chat.Session `json:"sessions"`
	ExportedAt time.Time      `json:"exportedAt"`
	Version    string         `json:"version"`
}

// SessionExport is the envelope written by ExportSession.
type SessionExport struct {
	Session    chat.Session `json:"session"`
	ExportedAt time.Time    `json:"exportedAt"`
	Version    string       `json:"version"`
}

// ExportAllSessions writes every session, minus typing indicators, as an
// indented JSON document.
func (m *Manager) ExportAllSessions(w io.Writer) error {
	m.mu.Lock()
	env := Export{ExportedAt: m.now(), Version: ExportVersion}
	env.Sessions = make([]chat.Session, len(m.sessions))
	for i, s := range m.sessions {
		c := s.Clone()
		c.Messages = chat.WithoutTyping(c.Messages)
		env.Sessions[i] = c
	}
	m.mu.Unlock()
	return writeJSON(w, env)
}

// ExportSession writes a single session.
func (m *Manager) ExportSession(id string, w io.Writer) error {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("session: export: session %q not found", id)
	}
	c := m.sessions[i].Clone()
	c.Messages = chat.WithoutTyping(c.Messages)
	env := SessionExport{Session: c, ExportedAt: m.now(), Version: ExportVersion}
	m.mu.Unlock()
	return writeJSON(w, env)
}

// ExportFileName is the conventional file name for an export taken at t.
func ExportFileName(t time.Time) string {
	return "chat-sessions-" + t.Format("2006-01-02") + ".json"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("session: export: %w", err)
	}
	return nil
}
