// Package attachtui implements the attach-mode terminal UI: a scrollable
// log viewport, a one-line stats strip, and an input editor with command
// history, all driven by the bubbletea Elm architecture (spec §4.8).
//
// There is no attach-style TUI in the teacher repo to adapt line-by-line;
// this package is built directly against bubbletea/bubbles/lipgloss's
// documented Model/Update/View contract, the same libraries the rest of
// the example pack reaches for whenever a terminal session needs more
// than line-oriented output.
package attachtui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/edirooss/crescentd/internal/protocol"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	statsStyle = lipgloss.NewStyle().Faint(true)
	inputStyle = lipgloss.NewStyle().Padding(0, 1)
)

// sender writes a WriteStdin event to the supervisor. Exercised by the
// real control-socket codec and by tests with a recording fake.
type sender interface {
	WriteEvent(protocol.Event) error
}

// Model is the attach session's Elm-architecture state (spec §3,
// "client-side attach state").
type Model struct {
	appName string

	vp    viewport.Model
	input textinput.Model

	stats string

	history       []string
	historyCursor int // -1 == not currently browsing history

	running bool

	send sender

	logCh     <-chan string
	statsCh   <-chan string
	controlCh <-chan protocol.Event
}

// logLineMsg is one newly-tailed log line.
type logLineMsg string

// logClosedMsg signals the tailer channel closed (child gone, or
// tail.Watch returned).
type logClosedMsg struct{}

// statsMsg is one rendered stats-strip line.
type statsMsg string

// controlEventMsg is one asynchronously-received control reply.
type controlEventMsg protocol.Event

// controlClosedMsg signals the control connection closed — per spec
// §4.8, this is how child death is observed from the attach side.
type controlClosedMsg struct{}

// New constructs the initial model. seedLog is the initial read_last(200)
// backlog; logCh/statsCh/controlCh are closed by the caller's goroutines
// to signal termination.
func New(appName string, seedLog []string, logCh <-chan string, statsCh <-chan string, controlCh <-chan protocol.Event, send sender) Model {
	vp := viewport.New(80, 20)
	vp.SetContent(strings.Join(seedLog, "\n"))
	vp.GotoBottom()

	ti := textinput.New()
	ti.Focus()
	ti.Prompt = "> "

	return Model{
		appName:       appName,
		vp:            vp,
		input:         ti,
		historyCursor: -1,
		running:       true,
		send:          send,
		logCh:         logCh,
		statsCh:       statsCh,
		controlCh:     controlCh,
	}
}

func waitForLog(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return logClosedMsg{}
		}
		return logLineMsg(line)
	}
}

func waitForStats(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return nil
		}
		return statsMsg(line)
	}
}

func waitForControl(ch <-chan protocol.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return controlClosedMsg{}
		}
		return controlEventMsg(ev)
	}
}

// Init starts the three background listeners and the input cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForLog(m.logCh),
		waitForStats(m.statsCh),
		waitForControl(m.controlCh),
		textinput.Blink,
	)
}

// Update implements the key-bindings table and message routing from spec
// §4.8.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.vp.Width = msg.Width
		m.vp.Height = msg.Height - 3 // title + stats strip + input line
		m.input.Width = msg.Width - len(m.input.Prompt) - 2
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.vp.LineUp(3)
		case tea.MouseButtonWheelDown:
			m.vp.LineDown(3)
		}
		return m, nil

	case logLineMsg:
		if m.vp.Content() == "" {
			m.vp.SetContent(string(msg))
		} else {
			m.vp.SetContent(m.vp.Content() + "\n" + string(msg))
		}
		m.vp.GotoBottom()
		return m, waitForLog(m.logCh)

	case logClosedMsg:
		m.running = false
		return m, tea.Quit

	case statsMsg:
		m.stats = string(msg)
		return m, waitForStats(m.statsCh)

	case controlEventMsg:
		ev := protocol.Event(msg)
		if ev.Kind == protocol.KindCommandHistory {
			m.history = ev.History
			m.historyCursor = -1
		}
		return m, waitForControl(m.controlCh)

	case controlClosedMsg:
		m.running = false
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.running = false
		return m, tea.Quit

	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		if m.send != nil {
			_ = m.send.WriteEvent(protocol.WriteStdin(text))
		}
		m.history = append([]string{text}, m.history...)
		m.historyCursor = -1
		m.input.SetValue("")
		m.vp.GotoBottom()
		return m, nil

	case tea.KeyPgUp:
		m.vp.LineUp(m.vp.Height)
		return m, nil

	case tea.KeyPgDown:
		m.vp.LineDown(m.vp.Height)
		return m, nil

	case tea.KeyUp:
		if m.historyCursor+1 < len(m.history) {
			m.historyCursor++
			m.input.SetValue(m.history[m.historyCursor])
			m.input.CursorEnd()
		}
		return m, nil

	case tea.KeyDown:
		if m.historyCursor-1 >= 0 {
			m.historyCursor--
			m.input.SetValue(m.history[m.historyCursor])
			m.input.CursorEnd()
		} else {
			m.historyCursor = -1
			m.input.SetValue("")
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View composes the three stacked regions (spec §4.8, "Layout").
func (m Model) View() string {
	title := titleStyle.Render(m.appName)
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.vp.View(),
		statsStyle.Render(m.stats),
		inputStyle.Render(m.input.View()),
	)
}

// Running reports whether the session is still active, for callers that
// want to distinguish a clean Esc-exit from an abnormal return.
func (m Model) Running() bool { return m.running }
