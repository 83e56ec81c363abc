// Package console is the terminal chat client. It drives the same session
// store and conductor as the HTTP API and redraws whenever the store's
// revision moves, so background collaborations and streamed crew updates
// show up without a keypress.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zulandar/crewdesk/internal/chat"
	"github.com/zulandar/crewdesk/internal/collab"
	"github.com/zulandar/crewdesk/internal/conductor"
	"github.com/zulandar/crewdesk/internal/detect"
	"github.com/zulandar/crewdesk/internal/outputview"
	"github.com/zulandar/crewdesk/internal/session"
)

// DefaultPollInterval is how often the console checks for session changes.
const DefaultPollInterval = 250 * time.Millisecond

// outputRows is the height of the expanded crew output window.
const outputRows = 12

// Opts configures the console.
type Opts struct {
	Sessions  *session.Manager
	Conductor *conductor.Conductor
	Poll      time.Duration
	AltScreen bool
}

// Run starts the console and blocks until the user quits or ctx is done.
func Run(ctx context.Context, opts Opts) error {
	m, err := newModel(ctx, opts)
	if err != nil {
		return err
	}
	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(m, progOpts...).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

type (
	tickMsg time.Time

	sentMsg struct {
		sessionID string
		reply     conductor.Reply
		err       error
	}

	collabStartedMsg struct {
		id  string
		err error
	}

	threadMsg struct {
		collabID string
		thread   []collab.InterAgentMessage
		err      error
	}
)

type model struct {
	ctx       context.Context
	sessions  *session.Manager
	conductor *conductor.Conductor
	poll      time.Duration

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	theme    uiTheme

	width, height int
	ready         bool
	lastRev       uint64
	sending       bool
	status        string
	statusErr     bool
	notice        []string

	// pending is the last detection the user has not acted on yet.
	pending detect.Result
	outputs map[string]*outputview.View
}

func newModel(ctx context.Context, opts Opts) (model, error) {
	if opts.Sessions == nil {
		return model{}, fmt.Errorf("console: sessions is required")
	}
	if opts.Conductor == nil {
		return model{}, fmt.Errorf("console: conductor is required")
	}
	if opts.Poll <= 0 {
		opts.Poll = DefaultPollInterval
	}

	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Message the crew, or /help for commands"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true
	timeline.MouseWheelDelta = 4

	return model{
		ctx:       ctx,
		sessions:  opts.Sessions,
		conductor: opts.Conductor,
		poll:      opts.Poll,
		input:     input,
		timeline:  timeline,
		spinner:   sp,
		theme:     newTheme(),
		status:    "ready",
		outputs:   make(map[string]*outputview.View),
	}, nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, tickEvery(m.poll))
}

func tickEvery(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resize()
		m.renderTimeline()
	case tickMsg:
		if rev := m.sessions.Revision(); rev != m.lastRev {
			m.lastRev = rev
			m.renderTimeline()
		}
		cmds = append(cmds, tickEvery(m.poll))
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case sentMsg:
		m.sending = false
		m.handleSent(msg)
		m.renderTimeline()
	case collabStartedMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.pending = detect.Result{}
			m.setStatus("collaboration " + shortID(msg.id) + " started")
		}
	case threadMsg:
		m.showThread(msg)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			text := m.input.Value()
			m.input.Reset()
			return m.submit(text)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			return m, cmd
		case "shift+up":
			m.scrollOutput(-outputRows / 2)
			return m, nil
		case "shift+down":
			m.scrollOutput(outputRows / 2)
			return m, nil
		case "esc":
			m.notice = nil
			m.renderTimeline()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// submit handles one line of input: a slash command or a chat turn.
func (m model) submit(text string) (tea.Model, tea.Cmd) {
	text = strings.TrimSpace(text)
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}
	if m.sending {
		m.setError(conductor.ErrBusy)
		return m, nil
	}
	m.sending = true
	m.notice = nil
	m.setStatus("sending...")
	return m, m.sendCmd(m.sessions.ActiveID(), text)
}

func (m model) sendCmd(sessionID, text string) tea.Cmd {
	ctx, c := m.ctx, m.conductor
	return func() tea.Msg {
		reply, err := c.Send(ctx, sessionID, text)
		return sentMsg{sessionID: sessionID, reply: reply, err: err}
	}
}

func (m *model) handleSent(msg sentMsg) {
	if msg.err != nil {
		m.setError(msg.err)
		return
	}
	r := msg.reply
	switch {
	case r.Detection.Collaboration != nil:
		m.pending = r.Detection
		m.setStatus("collaboration suggested: /collab to start it")
	case r.Detection.Handoff != nil:
		m.pending = r.Detection
		m.setStatus("handoff suggested: /handoff to transfer")
	case r.Stream != nil:
		m.setStatus("crew " + string(r.State))
		m.statusErr = r.Stream.Err != nil
	case r.Outcome != "" && r.Outcome.Failed():
		m.setStatus("workflow " + string(r.Outcome))
		m.statusErr = true
	default:
		m.setStatus("ready")
	}
}

func (m *model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *model) setError(err error) {
	m.status, m.statusErr = err.Error(), true
}

func (m *model) resize() {
	inputHeight := 3
	statusHeight := 1
	headerHeight := 1
	noticeHeight := 0
	if len(m.notice) > 0 {
		noticeHeight = min(len(m.notice), m.height/3) + 1
	}
	m.timeline.Width = max(m.width, 1)
	m.timeline.Height = max(m.height-inputHeight-statusHeight-headerHeight-noticeHeight, 1)
	m.input.Width = max(m.width-6, 10)
}

// renderTimeline redraws the active session, keeping the view pinned to the
// bottom unless the user scrolled up.
func (m *model) renderTimeline() {
	if !m.ready {
		return
	}
	m.resize()
	follow := m.timeline.AtBottom() || m.timeline.TotalLineCount() == 0
	s := m.sessions.ActiveSession()
	m.timeline.SetContent(m.renderSession(s))
	if follow {
		m.timeline.GotoBottom()
	}
}

// outputFor returns the cached full-output view of a crew update.
func (m *model) outputFor(msgID string) *outputview.View {
	v, ok := m.outputs[msgID]
	if !ok {
		v = &outputview.View{Window: outputview.Window{Rows: outputRows}}
		m.outputs[msgID] = v
	}
	return v
}

// scrollOutput moves the full-output window of the latest expanded crew
// update in the active session.
func (m *model) scrollOutput(delta int) {
	s := m.sessions.ActiveSession()
	for i := len(s.Messages) - 1; i >= 0; i-- {
		msg := s.Messages[i]
		if msg.Kind != chat.KindCrewUpdate || msg.CrewUpdate == nil || msg.CrewUpdate.IsCollapsed {
			continue
		}
		v := m.outputFor(msg.ID)
		v.Scroll(msg.CrewUpdate.FullOutput, delta)
		m.renderTimeline()
		return
	}
}

func (m *model) showThread(msg threadMsg) {
	if msg.err != nil {
		m.setError(msg.err)
		return
	}
	lines := []string{fmt.Sprintf("Inter-agent thread %s (%d messages, esc to close)", shortID(msg.collabID), len(msg.thread))}
	for _, im := range msg.thread {
		lines = append(lines, fmt.Sprintf("%s  %s → %s: %s",
			im.Timestamp.Format("15:04:05"), im.FromAgent, im.ToAgent, im.Message))
	}
	m.notice = lines
	m.setStatus("ready")
	m.renderTimeline()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
