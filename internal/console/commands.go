package console

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zulandar/crewdesk/internal/chat"
	"github.com/zulandar/crewdesk/internal/conductor"
	"github.com/zulandar/crewdesk/internal/detect"
)

var helpLines = []string{
	"Commands (esc closes this panel):",
	"  /new [name]        start a session",
	"  /sessions          list sessions",
	"  /switch <n|name>   activate a session by list number or name",
	"  /rename <name>     rename the active session",
	"  /dup               duplicate the active session",
	"  /delete            delete the active session",
	"  /clear             reset the active session to the greeting",
	"  /collab [task]     start the suggested (or named) collaboration",
	"  /handoff [agent]   transfer to the suggested (or named) agent",
	"  /thread [id]       show the inter-agent thread of a collaboration",
	"  /expand            toggle the latest crew output",
	"  /agents            list known agents",
	"  /quit",
	"pgup/pgdown scroll the chat, shift+up/down scroll crew output",
}

// command runs a slash command typed into the input.
func (m model) command(line string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	ctx := m.ctx
	active := m.sessions.ActiveID()

	switch strings.ToLower(name) {
	case "help", "?":
		m.notice = helpLines
	case "quit", "exit", "q":
		return m, tea.Quit
	case "new":
		id := m.sessions.CreateSession(ctx, arg)
		s, _ := m.sessions.Session(id)
		m.pending = detect.Result{}
		m.setStatus("created " + s.Name)
	case "sessions", "ls":
		m.notice = m.sessionList()
	case "switch", "s":
		id, ok := m.resolveSession(arg)
		if !ok || !m.sessions.SwitchToSession(ctx, id) {
			m.setError(fmt.Errorf("no session %q", arg))
			break
		}
		m.pending = detect.Result{}
		s, _ := m.sessions.Session(id)
		m.setStatus("switched to " + s.Name)
	case "rename":
		if !m.sessions.RenameSession(ctx, active, arg) {
			m.setError(fmt.Errorf("cannot rename to %q", arg))
			break
		}
		m.setStatus("renamed to " + arg)
	case "dup", "duplicate":
		id, ok := m.sessions.DuplicateSession(ctx, active)
		if !ok {
			m.setError(fmt.Errorf("duplicate failed"))
			break
		}
		s, _ := m.sessions.Session(id)
		m.setStatus("created " + s.Name)
	case "delete":
		if !m.sessions.DeleteSession(ctx, active) {
			m.setError(fmt.Errorf("cannot delete the last session"))
			break
		}
		m.pending = detect.Result{}
		m.setStatus("session deleted")
	case "clear":
		m.sessions.ClearSessionMessages(ctx, active)
		m.pending = detect.Result{}
		m.setStatus("session cleared")
	case "collab":
		taskID := arg
		if taskID == "" && m.pending.Collaboration != nil {
			taskID = m.pending.Collaboration.ID
		}
		if taskID == "" {
			m.setError(fmt.Errorf("no collaboration suggested; give a task id"))
			break
		}
		c := m.conductor
		return m, func() tea.Msg {
			id, err := c.StartCollaboration(ctx, active, taskID, nil)
			return collabStartedMsg{id: id, err: err}
		}
	case "handoff":
		agent, reason := arg, ""
		if h := m.pending.Handoff; h != nil {
			reason = h.Reason
			if agent == "" && len(h.SuggestedAgents) > 0 {
				agent = h.SuggestedAgents[0]
			}
		}
		if agent == "" {
			m.setError(fmt.Errorf("no handoff suggested; give an agent name"))
			break
		}
		if reason == "" {
			reason = "User request"
		}
		if err := m.conductor.ConfirmHandoff(ctx, active, agent, reason, ""); err != nil {
			m.setError(err)
			break
		}
		m.pending = detect.Result{}
		m.setStatus("transferred to " + agent)
	case "thread":
		collabID := arg
		if collabID == "" {
			collabID = lastCollaborationID(m.sessions.ActiveSession())
		}
		if collabID == "" {
			m.setError(fmt.Errorf("no collaboration in this session"))
			break
		}
		db := m.conductor.DB()
		if db == nil {
			m.setError(fmt.Errorf("inter-agent log is not enabled"))
			break
		}
		return m, func() tea.Msg {
			thread, err := conductor.InterAgentMessages(db, collabID)
			return threadMsg{collabID: collabID, thread: thread, err: err}
		}
	case "expand":
		if !m.toggleLatestOutput() {
			m.setError(fmt.Errorf("no crew output to expand"))
		}
	case "agents":
		lines := []string{"Agents:"}
		for _, a := range detect.Agents() {
			lines = append(lines, fmt.Sprintf("  %-18s %s", a.Name, a.Description))
		}
		m.notice = lines
	default:
		m.setError(fmt.Errorf("unknown command /%s", name))
	}
	m.renderTimeline()
	return m, nil
}

func (m model) sessionList() []string {
	active := m.sessions.ActiveID()
	lines := []string{"Sessions:"}
	for i, s := range m.sessions.Sessions() {
		mark := " "
		if s.ID == active {
			mark = "*"
		}
		lines = append(lines, fmt.Sprintf("%s %2d. %s (%d messages)", mark, i+1, s.Name, s.MessageCount()))
	}
	return lines
}

// resolveSession accepts a 1-based list position, a session id or a name.
func (m model) resolveSession(arg string) (string, bool) {
	if arg == "" {
		return "", false
	}
	all := m.sessions.Sessions()
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(all) {
		return all[n-1].ID, true
	}
	for _, s := range all {
		if s.ID == arg || strings.EqualFold(s.Name, arg) {
			return s.ID, true
		}
	}
	return "", false
}

func (m *model) toggleLatestOutput() bool {
	s := m.sessions.ActiveSession()
	for i := len(s.Messages) - 1; i >= 0; i-- {
		msg := s.Messages[i]
		if msg.Kind != chat.KindCrewUpdate || msg.CrewUpdate == nil {
			continue
		}
		return m.sessions.UpdateMessage(m.ctx, s.ID, msg.ID, func(cm *chat.Message) {
			if cm.CrewUpdate != nil {
				cm.CrewUpdate.IsCollapsed = !cm.CrewUpdate.IsCollapsed
			}
		})
	}
	return false
}

func lastCollaborationID(s chat.Session) string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if c := s.Messages[i].Collaboration; c != nil && c.ID != "" {
			return c.ID
		}
	}
	return ""
}
