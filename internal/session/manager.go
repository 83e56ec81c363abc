// Package session owns the set of chat sessions, the active-session pointer
// and their persistence through a key-value store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/crewdesk/internal/chat"
	"github.com/zulandar/crewdesk/internal/kv"
	"github.com/zulandar/crewdesk/internal/logging"
)

// Persistence keys and defaults.
const (
	SessionsKey      = "crewdesk-chat-sessions"
	ActiveSessionKey = "crewdesk-active-session"

	DefaultSessionID   = "default"
	DefaultSessionName = "Main Session"

	DefaultMaxSessions     = 20
	DefaultMaxMessages     = 500
	DefaultReducedSessions = 5
	DefaultReducedMessages = 50
)

var baseNames = []string{
	"Planning Session",
	"Research Chat",
	"General Discussion",
	"Task Management",
	"Creative Session",
	"Problem Solving",
	"Quick Chat",
	"Work Session",
}

// Manager is the session store. All methods are safe for concurrent use;
// every mutation is a read-modify-write of the whole list under one lock,
// followed by a write-through to the key-value store.
type Manager struct {
	store           kv.Store
	maxSessions     int
	maxMessages     int
	reducedSessions int
	reducedMessages int
	quota           int
	now             func() time.Time
	pick            func(n int) int
	log             zerolog.Logger

	mu         sync.Mutex
	sessions   []chat.Session
	activeID   string
	revision   uint64
	savedBytes int
	saveErr    error
	collabs    map[string]map[string]context.CancelFunc // session id -> collaboration id -> cancel
	resetHooks []ResetHook
}

// ResetHook runs, under the store lock, when a session's history is thrown
// away by a delete or a clear.
type ResetHook func(ctx context.Context, sessionID string)

// ManagerOpts holds parameters for creating a Manager.
type ManagerOpts struct {
	Store           kv.Store
	MaxSessions     int // defaults to DefaultMaxSessions
	MaxMessages     int // defaults to DefaultMaxMessages
	ReducedSessions int // sessions kept on a quota retry; defaults to DefaultReducedSessions
	ReducedMessages int // messages per session kept on a quota retry; defaults to DefaultReducedMessages
	Quota           int // informational, reported by StorageInfo
	Now             func() time.Time
	Pick            func(n int) int // chooses a generated-name base; defaults to math/rand
}

// NewManager creates a Manager and loads any persisted sessions.
func NewManager(ctx context.Context, opts ManagerOpts) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	m := &Manager{
		store:           opts.Store,
		maxSessions:     orDefault(opts.MaxSessions, DefaultMaxSessions),
		maxMessages:     orDefault(opts.MaxMessages, DefaultMaxMessages),
		reducedSessions: orDefault(opts.ReducedSessions, DefaultReducedSessions),
		reducedMessages: orDefault(opts.ReducedMessages, DefaultReducedMessages),
		quota:           opts.Quota,
		now:             opts.Now,
		pick:            opts.Pick,
		log:             logging.For("session"),
		collabs:         make(map[string]map[string]context.CancelFunc),
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.pick == nil {
		m.pick = rand.Intn
	}
	m.sessions, m.activeID = m.load(ctx)
	m.markActive()
	return m, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// --- queries ---

// Sessions returns a deep copy of all sessions in store order.
func (m *Manager) Sessions() []chat.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chat.Session, len(m.sessions))
	for i, s := range m.sessions {
		out[i] = s.Clone()
	}
	return out
}

// Session returns a copy of the session with id.
func (m *Manager) Session(id string) (chat.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return chat.Session{}, false
	}
	return m.sessions[i].Clone(), true
}

// ActiveID returns the active session id. It always names a stored session.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// ActiveSession returns a copy of the active session.
func (m *Manager) ActiveSession() chat.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[m.indexOf(m.activeID)].Clone()
}

// Revision increases on every mutation; pollers compare it to detect change.
func (m *Manager) Revision() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revision
}

// PersistError returns the error from the most recent failed save, if the
// degraded retry failed as well.
func (m *Manager) PersistError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveErr
}

// StorageInfo describes how much of the store the sessions occupy.
type StorageInfo struct {
	Used         int `json:"used"`
	Total        int `json:"total"`
	Percentage   int `json:"percentage"`
	MessageCount int `json:"messageCount"`
}

// StorageInfo reports the size of the last persisted payload and the
// number of non-typing messages across sessions.
func (m *Manager) StorageInfo() StorageInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := StorageInfo{Used: m.savedBytes, Total: m.quota}
	if m.quota > 0 {
		info.Percentage = m.savedBytes * 100 / m.quota
	}
	for _, s := range m.sessions {
		info.MessageCount += s.MessageCount()
	}
	return info
}

// --- mutations ---

// CreateSession appends a new session seeded with the greeting and makes it
// active. An empty name is replaced by a generated one that is distinct from
// every existing name. The oldest session is evicted when the cap is exceeded.
func (m *Manager) CreateSession(ctx context.Context, name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = m.generateName(now)
	}
	s := chat.Session{
		ID:           chat.NewID(),
		Name:         name,
		Messages:     []chat.Message{chat.Greeting(now)},
		CreatedAt:    now,
		LastActivity: now,
	}
	m.appendCapped(s)
	m.activeID = s.ID
	m.commit(ctx)
	m.log.Info().Str("session_id", s.ID).Str("name", s.Name).Msg("session created")
	return s.ID
}

// SwitchToSession activates id and bumps its last activity. Unknown ids are
// a no-op returning false.
func (m *Manager) SwitchToSession(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return false
	}
	m.activeID = id
	m.sessions[i].LastActivity = m.now()
	m.commit(ctx)
	return true
}

// UpdateSessionMessages replaces a session's message list wholesale.
func (m *Manager) UpdateSessionMessages(ctx context.Context, id string, msgs []chat.Message) bool {
	return m.Mutate(ctx, id, func(s *chat.Session) bool {
		s.Messages = chat.CloneMessages(msgs)
		return true
	})
}

// AppendMessages appends msgs to the session in order.
func (m *Manager) AppendMessages(ctx context.Context, id string, msgs ...chat.Message) bool {
	return m.Mutate(ctx, id, func(s *chat.Session) bool {
		for _, msg := range msgs {
			s.Messages = append(s.Messages, msg.Clone())
		}
		return true
	})
}

// UpdateMessage applies fn to the message msgID in session id. It returns
// false when either no longer exists, so late async folds are dropped.
func (m *Manager) UpdateMessage(ctx context.Context, id, msgID string, fn func(*chat.Message)) bool {
	return m.Mutate(ctx, id, func(s *chat.Session) bool {
		i := s.FindMessage(msgID)
		if i < 0 {
			return false
		}
		fn(&s.Messages[i])
		return true
	})
}

// RemoveMessage deletes msgID from session id.
func (m *Manager) RemoveMessage(ctx context.Context, id, msgID string) bool {
	return m.Mutate(ctx, id, func(s *chat.Session) bool {
		i := s.FindMessage(msgID)
		if i < 0 {
			return false
		}
		s.Messages = append(s.Messages[:i], s.Messages[i+1:]...)
		return true
	})
}

// SetCurrentAgent records which agent the session is talking to.
func (m *Manager) SetCurrentAgent(ctx context.Context, id, agent string) bool {
	return m.Mutate(ctx, id, func(s *chat.Session) bool {
		s.CurrentAgent = agent
		return true
	})
}

// Mutate runs fn against session id under the store lock. If fn returns
// true the session's last activity is bumped and the list is persisted.
func (m *Manager) Mutate(ctx context.Context, id string, fn func(*chat.Session) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return false
	}
	if !fn(&m.sessions[i]) {
		return false
	}
	m.sessions[i].LastActivity = m.now()
	m.commit(ctx)
	return true
}

// RenameSession trims and applies newName. Blank names and unknown ids fail.
func (m *Manager) RenameSession(ctx context.Context, id, newName string) bool {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return false
	}
	m.sessions[i].Name = newName
	m.commit(ctx)
	return true
}

// DeleteSession removes id unless it is the last session. Deleting the active
// session activates the first remaining one. Pending collaborations bound to
// the session are cancelled.
func (m *Manager) DeleteSession(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) <= 1 {
		return false
	}
	i := m.indexOf(id)
	if i < 0 {
		return false
	}
	m.reset(ctx, id)
	m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
	if m.activeID == id {
		m.activeID = m.sessions[0].ID
	}
	m.commit(ctx)
	m.log.Info().Str("session_id", id).Msg("session deleted")
	return true
}

// DuplicateSession copies id into a new active session named "<name> (Copy)".
func (m *Manager) DuplicateSession(ctx context.Context, id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return "", false
	}
	now := m.now()
	src := m.sessions[i]
	dup := chat.Session{
		ID:           chat.NewID(),
		Name:         src.Name + " (Copy)",
		Messages:     chat.CloneMessages(chat.WithoutTyping(src.Messages)),
		CreatedAt:    now,
		LastActivity: now,
		CurrentAgent: src.CurrentAgent,
	}
	m.appendCapped(dup)
	m.activeID = dup.ID
	m.commit(ctx)
	return dup.ID, true
}

// ClearSessionMessages resets one session to the greeting and cancels its
// collaborations.
func (m *Manager) ClearSessionMessages(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return false
	}
	m.reset(ctx, id)
	now := m.now()
	m.sessions[i].Messages = []chat.Message{chat.Greeting(now)}
	m.sessions[i].LastActivity = now
	m.commit(ctx)
	return true
}

// ClearAllSessions resets the store to exactly one fresh default session.
func (m *Manager) ClearAllSessions(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.collabs {
		m.cancelCollaborations(id)
	}
	for _, s := range m.sessions {
		m.runResetHooks(ctx, s.ID)
	}
	if err := m.store.Remove(ctx, SessionsKey); err != nil {
		m.log.Warn().Err(err).Msg("remove persisted sessions")
	}
	if err := m.store.Remove(ctx, ActiveSessionKey); err != nil {
		m.log.Warn().Err(err).Msg("remove persisted active session")
	}
	def := m.defaultSession()
	m.sessions = []chat.Session{def}
	m.activeID = def.ID
	m.commit(ctx)
	m.log.Info().Msg("all sessions cleared")
}

// --- collaboration ownership ---

// TrackCollaboration binds a collaboration's cancel func to session id. It
// returns false (and the caller should cancel) when the session is gone.
func (m *Manager) TrackCollaboration(sessionID, collabID string, cancel context.CancelFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(sessionID) < 0 {
		return false
	}
	if m.collabs[sessionID] == nil {
		m.collabs[sessionID] = make(map[string]context.CancelFunc)
	}
	m.collabs[sessionID][collabID] = cancel
	return true
}

// ReleaseCollaboration forgets a finished collaboration.
func (m *Manager) ReleaseCollaboration(sessionID, collabID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collabs[sessionID], collabID)
	if len(m.collabs[sessionID]) == 0 {
		delete(m.collabs, sessionID)
	}
}

// ActiveCollaborations lists collaboration ids still running in sessionID.
func (m *Manager) ActiveCollaborations(sessionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.collabs[sessionID] {
		ids = append(ids, id)
	}
	return ids
}

// OnReset registers fn to run whenever a session is deleted or cleared.
func (m *Manager) OnReset(fn ResetHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetHooks = append(m.resetHooks, fn)
}

// Guard runs fn under the store lock while session id exists, without
// touching the session. Work that must not outlive a delete or clear
// checks its cancellation inside fn. It returns false when id is unknown.
func (m *Manager) Guard(id string, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(id) < 0 {
		return false
	}
	fn()
	return true
}

// reset cancels the session's collaborations and runs the reset hooks.
// mu must be held.
func (m *Manager) reset(ctx context.Context, sessionID string) {
	m.cancelCollaborations(sessionID)
	m.runResetHooks(ctx, sessionID)
}

func (m *Manager) runResetHooks(ctx context.Context, sessionID string) {
	for _, fn := range m.resetHooks {
		fn(ctx, sessionID)
	}
}

// cancelCollaborations must be called with mu held.
func (m *Manager) cancelCollaborations(sessionID string) {
	for id, cancel := range m.collabs[sessionID] {
		cancel()
		m.log.Debug().Str("session_id", sessionID).Str("collaboration_id", id).Msg("collaboration cancelled")
	}
	delete(m.collabs, sessionID)
}

// --- internals (mu held) ---

func (m *Manager) indexOf(id string) int {
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// appendCapped adds s and evicts the oldest sessions beyond the cap.
func (m *Manager) appendCapped(s chat.Session) {
	m.sessions = append(m.sessions, s)
	for len(m.sessions) > m.maxSessions {
		evicted := m.sessions[0]
		m.cancelCollaborations(evicted.ID)
		m.sessions = m.sessions[1:]
		m.log.Info().Str("session_id", evicted.ID).Msg("oldest session evicted")
	}
}

func (m *Manager) generateName(now time.Time) string {
	base := baseNames[m.pick(len(baseNames))]
	name := fmt.Sprintf("%s - %s", base, now.Format("03:04 PM"))
	candidate := name
	for n := 1; m.nameTaken(candidate); n++ {
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
	return candidate
}

func (m *Manager) nameTaken(name string) bool {
	for _, s := range m.sessions {
		if s.Name == name {
			return true
		}
	}
	return false
}

func (m *Manager) defaultSession() chat.Session {
	now := m.now()
	return chat.Session{
		ID:           DefaultSessionID,
		Name:         DefaultSessionName,
		Messages:     []chat.Message{chat.Greeting(now)},
		CreatedAt:    now,
		LastActivity: now,
	}
}

func (m *Manager) markActive() {
	for i := range m.sessions {
		m.sessions[i].IsActive = m.sessions[i].ID == m.activeID
	}
}

// commit records a mutation and writes the whole list through.
func (m *Manager) commit(ctx context.Context) {
	m.markActive()
	m.revision++
	if err := m.save(ctx); err != nil {
		m.saveErr = err
		m.log.Error().Err(err).Msg("persist sessions")
		return
	}
	m.saveErr = nil
}

// save writes the sessions and the active id. On a quota failure it retries
// once with the most recent reducedSessions sessions, each trimmed to
// reducedMessages messages.
func (m *Manager) save(ctx context.Context) error {
	payload, err := m.encode(m.sessions, m.maxMessages)
	if err != nil {
		return err
	}
	err = m.write(ctx, payload)
	if !errors.Is(err, kv.ErrQuotaExceeded) {
		return err
	}

	m.log.Warn().Int("bytes", len(payload)).Msg("storage quota exceeded, saving reduced sessions")
	reduced := m.sessions
	if len(reduced) > m.reducedSessions {
		reduced = reduced[len(reduced)-m.reducedSessions:]
	}
	payload, err = m.encode(reduced, m.reducedMessages)
	if err != nil {
		return err
	}
	if err := m.write(ctx, payload); err != nil {
		return fmt.Errorf("session: save reduced: %w", err)
	}
	return nil
}

func (m *Manager) encode(sessions []chat.Session, maxMessages int) (string, error) {
	cleaned := make([]chat.Session, len(sessions))
	for i, s := range sessions {
		c := s
		c.Messages = chat.LastN(chat.WithoutTyping(s.Messages), maxMessages)
		cleaned[i] = c
	}
	data, err := json.Marshal(cleaned)
	if err != nil {
		return "", fmt.Errorf("session: encode: %w", err)
	}
	return string(data), nil
}

func (m *Manager) write(ctx context.Context, payload string) error {
	if err := m.store.Set(ctx, SessionsKey, payload); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	if err := m.store.Set(ctx, ActiveSessionKey, m.activeID); err != nil {
		return fmt.Errorf("session: save active: %w", err)
	}
	m.savedBytes = len(payload)
	return nil
}
