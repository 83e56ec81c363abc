package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/zulandar/crewdesk/internal/chat"
	"github.com/zulandar/crewdesk/internal/conductor"
)

type uiTheme struct {
	header        lipgloss.Style
	user          lipgloss.Style
	agent         lipgloss.Style
	body          lipgloss.Style
	sub           lipgloss.Style
	handoff       lipgloss.Style
	collaboration lipgloss.Style
	crew          lipgloss.Style
	warning       lipgloss.Style
	trouble       lipgloss.Style
	output        lipgloss.Style
	notice        lipgloss.Style
	status        lipgloss.Style
	errorStatus   lipgloss.Style
	inputPanel    lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	amber := lipgloss.Color("#ffb86c")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	return uiTheme{
		header:        lipgloss.NewStyle().Foreground(blue).Bold(true),
		user:          lipgloss.NewStyle().Foreground(pink).Bold(true),
		agent:         lipgloss.NewStyle().Foreground(mint).Bold(true),
		body:          lipgloss.NewStyle().Foreground(text),
		sub:           lipgloss.NewStyle().Foreground(muted).Italic(true),
		handoff:       lipgloss.NewStyle().Foreground(blue),
		collaboration: lipgloss.NewStyle().Foreground(mint),
		crew:          lipgloss.NewStyle().Foreground(blue).Bold(true),
		warning:       lipgloss.NewStyle().Foreground(amber),
		trouble:       lipgloss.NewStyle().Foreground(pink),
		output: lipgloss.NewStyle().
			Foreground(text).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(muted).
			PaddingLeft(1),
		notice: lipgloss.NewStyle().
			Foreground(muted).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(blue),
		status:      lipgloss.NewStyle().Foreground(blue),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		inputPanel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
	}
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}
	s := m.sessions.ActiveSession()
	agent := s.CurrentAgent
	if agent == "" {
		agent = conductor.DefaultAgent
	}
	header := m.theme.header.Render(fmt.Sprintf("crewdesk · %s · %s · %s", s.Name, agent, m.conductor.Mode()))

	parts := []string{header, m.timeline.View()}
	if len(m.notice) > 0 {
		lines := m.notice
		if limit := max(m.height/3, 1); len(lines) > limit {
			lines = lines[len(lines)-limit:]
		}
		parts = append(parts, m.theme.notice.Width(max(m.width, 1)).Render(strings.Join(lines, "\n")))
	}
	parts = append(parts, m.statusLine(), m.theme.inputPanel.Width(max(m.width-2, 1)).Render(m.input.View()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m model) statusLine() string {
	prefix := ""
	if m.sending || len(m.sessions.ActiveCollaborations(m.sessions.ActiveID())) > 0 {
		prefix = m.spinner.View() + " "
	}
	if m.statusErr {
		return prefix + m.theme.errorStatus.Render(m.status)
	}
	return prefix + m.theme.status.Render(m.status)
}

func (m *model) renderSession(s chat.Session) string {
	blocks := make([]string, 0, len(s.Messages))
	for _, msg := range s.Messages {
		blocks = append(blocks, m.renderMessage(msg))
	}
	return strings.Join(blocks, "\n\n")
}

// renderMessage draws one message by kind.
func (m *model) renderMessage(msg chat.Message) string {
	t := m.theme
	ts := msg.Timestamp.Format("15:04")
	var b strings.Builder

	switch msg.Kind {
	case chat.KindUser:
		b.WriteString(t.user.Render("You") + " " + t.sub.Render(ts) + "\n")
		b.WriteString(t.body.Render(msg.Text))
	case chat.KindTyping:
		b.WriteString(t.sub.Render(m.spinner.View() + " agent is typing"))
	case chat.KindHandoff:
		b.WriteString(t.handoff.Render("⇄ " + msg.Text))
		if h := msg.Handoff; h != nil {
			b.WriteString("\n" + t.sub.Render(fmt.Sprintf("%s → %s: %s", h.FromAgent, h.ToAgent, h.Reason)))
		}
	case chat.KindCollaboration, chat.KindCollaborationUpdate:
		b.WriteString(t.collaboration.Render("◆ " + msg.Text))
		if c := msg.Collaboration; c != nil {
			b.WriteString("\n" + t.sub.Render(fmt.Sprintf("%s · %s · %d%% · %s",
				c.Task, c.Status, c.Progress, strings.Join(c.Agents, ", "))))
		}
	case chat.KindCrewUpdate:
		m.renderCrewUpdate(&b, msg)
	case chat.KindWarning:
		b.WriteString(t.warning.Render("! " + msg.Text))
	case chat.KindTroubleshooting:
		b.WriteString(t.trouble.Render("✖ " + msg.Text))
		for _, step := range msg.Troubleshooting {
			b.WriteString("\n" + t.sub.Render("  • "+step))
		}
	default:
		name := msg.AgentName
		if name == "" {
			name = conductor.DefaultAgent
		}
		b.WriteString(t.agent.Render(name) + " " + t.sub.Render(ts) + "\n")
		b.WriteString(t.body.Render(msg.Text))
	}

	if msg.SubText != "" && msg.Kind != chat.KindCrewUpdate && msg.Kind != chat.KindHandoff {
		b.WriteString("\n" + t.sub.Render(msg.SubText))
	}
	for _, d := range msg.Details {
		b.WriteString("\n" + t.sub.Render("  • "+d))
	}
	return b.String()
}

func (m *model) renderCrewUpdate(b *strings.Builder, msg chat.Message) {
	t := m.theme
	role := msg.AgentName
	crew := msg.CrewUpdate
	if crew != nil && crew.AgentRole != "" {
		role = crew.AgentRole
	}
	b.WriteString(t.crew.Render("["+role+"]") + " " + t.body.Render(msg.Text))
	if msg.SubText != "" {
		b.WriteString("\n" + t.sub.Render(msg.SubText))
	}
	if crew == nil || crew.FullOutput == "" {
		return
	}
	if crew.IsCollapsed {
		if crew.OutputSummary != "" {
			b.WriteString("\n" + t.sub.Render(crew.OutputSummary))
		}
		b.WriteString("\n" + t.sub.Render("(/expand to show full output)"))
		return
	}
	v := m.outputFor(msg.ID)
	total := v.Total(crew.FullOutput)
	page := v.Render(crew.FullOutput)
	b.WriteString("\n" + t.output.Render(page))
	b.WriteString("\n" + t.sub.Render(fmt.Sprintf("lines %d-%d of %d",
		v.Window.Offset()+1, min(v.Window.Offset()+outputRows, total), total)))
}
