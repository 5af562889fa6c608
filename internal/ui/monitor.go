package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/greeac/internal/climate"
	"github.com/muurk/greeac/internal/protocol"
	"github.com/muurk/greeac/internal/server"
)

// Watcher is a live connection to a bridge. *client.Stream implements it.
type Watcher interface {
	Messages() <-chan server.Message
	Control(req protocol.Request) error
	Err() error
	Close() error
}

// DialFunc opens a Watcher.
type DialFunc func(ctx context.Context) (Watcher, error)

const dialTimeout = 10 * time.Second

// Messages for async operations
type connectedMsg struct{ w Watcher }
type connectFailedMsg struct{ err error }
type bridgeMsg struct{ msg server.Message }
type disconnectedMsg struct{ err error }
type controlSentMsg struct{ err error }

// ConnState is the monitor's view of the bridge connection.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnConnected
	ConnDisconnected
)

type monitorKeyMap struct {
	Mode      key.Binding
	Fan       key.Binding
	Up        key.Binding
	Down      key.Binding
	Power     key.Binding
	Reconnect key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Mode, k.Fan, k.Up, k.Down, k.Power, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Mode, k.Fan, k.Power},
		{k.Up, k.Down},
		{k.Reconnect, k.Help, k.Quit},
	}
}

func newMonitorKeyMap() monitorKeyMap {
	return monitorKeyMap{
		Mode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mode"),
		),
		Fan: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "fan"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "+", "k"),
			key.WithHelp("↑/+", "warmer"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "-", "j"),
			key.WithHelp("↓/-", "cooler"),
		),
		Power: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "on/off"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reconnect"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// MonitorModel shows the live state of one bridge and sends control
// requests from key presses.
type MonitorModel struct {
	Addr string

	dial    DialFunc
	watcher Watcher
	Conn    ConnState
	Err     error // last connection or control error

	State    *climate.State
	Traits   climate.Traits
	lastOn   protocol.Mode // mode to restore when powering back on
	received time.Time

	Width   int
	Spinner spinner.Model
	Help    help.Model
	Keys    monitorKeyMap

	now func() time.Time
}

// NewMonitorModel creates a monitor for the bridge at addr.
func NewMonitorModel(addr string, dial DialFunc) MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return MonitorModel{
		Addr:    addr,
		dial:    dial,
		Conn:    ConnConnecting,
		Traits:  climate.DefaultTraits(),
		lastOn:  protocol.ModeAuto,
		Width:   GetTerminalWidth(),
		Spinner: s,
		Help:    help.New(),
		Keys:    newMonitorKeyMap(),
		now:     time.Now,
	}
}

// Init starts the first connection attempt.
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.connect(), m.Spinner.Tick)
}

func (m MonitorModel) connect() tea.Cmd {
	dial := m.dial
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		w, err := dial(ctx)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		return connectedMsg{w: w}
	}
}

// waitForMessage blocks on the next message from the bridge.
func waitForMessage(w Watcher) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-w.Messages()
		if !ok {
			return disconnectedMsg{err: w.Err()}
		}
		return bridgeMsg{msg: msg}
	}
}

func sendControl(w Watcher, req protocol.Request) tea.Cmd {
	return func() tea.Msg {
		return controlSentMsg{err: w.Control(req)}
	}
}

// Update handles messages and updates the model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width)
		m.Help.Width = m.Width

	case connectedMsg:
		m.watcher = msg.w
		m.Conn = ConnConnected
		m.Err = nil
		return m, waitForMessage(msg.w)

	case connectFailedMsg:
		m.Conn = ConnDisconnected
		m.Err = msg.err

	case disconnectedMsg:
		m.watcher = nil
		m.Conn = ConnDisconnected
		m.Err = msg.err

	case bridgeMsg:
		m.handleBridgeMessage(msg.msg)
		if m.watcher != nil {
			return m, waitForMessage(m.watcher)
		}

	case controlSentMsg:
		if msg.err != nil {
			m.Err = msg.err
		}

	case spinner.TickMsg:
		if m.Conn != ConnConnecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *MonitorModel) handleBridgeMessage(msg server.Message) {
	switch msg.Type {
	case server.MessageTraits:
		if msg.Traits != nil {
			m.Traits = *msg.Traits
		}
	case server.MessageState:
		if msg.State != nil {
			st := *msg.State
			m.State = &st
			m.received = m.now()
			if st.Mode != protocol.ModeOff && st.Mode != protocol.ModeUnknown {
				m.lastOn = st.Mode
			}
		}
	case server.MessageError:
		m.Err = fmt.Errorf("bridge: %s", msg.Error)
	}
}

func (m MonitorModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		if m.watcher != nil {
			_ = m.watcher.Close()
		}
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Help):
		m.Help.ShowAll = !m.Help.ShowAll
		return m, nil

	case key.Matches(msg, m.Keys.Reconnect):
		if m.Conn != ConnDisconnected {
			return m, nil
		}
		m.Conn = ConnConnecting
		m.Err = nil
		return m, tea.Batch(m.connect(), m.Spinner.Tick)
	}

	req, ok := m.requestFor(msg)
	if !ok || m.watcher == nil {
		return m, nil
	}
	m.Err = nil
	return m, sendControl(m.watcher, req)
}

// requestFor maps a key press to a control request based on the current
// state. It returns false when the key does nothing in that state.
func (m MonitorModel) requestFor(msg tea.KeyMsg) (protocol.Request, bool) {
	if m.State == nil {
		return protocol.Request{}, false
	}
	st := *m.State

	switch {
	case key.Matches(msg, m.Keys.Mode):
		next := nextMode(st.Mode, m.Traits.SupportedModes)
		return protocol.Request{Mode: &next}, next != st.Mode

	case key.Matches(msg, m.Keys.Fan):
		next := nextFanSpeed(st.FanSpeed, m.Traits.SupportedFanSpeeds)
		return protocol.Request{FanSpeed: &next}, next != st.FanSpeed

	case key.Matches(msg, m.Keys.Power):
		next := protocol.ModeOff
		if st.Mode == protocol.ModeOff {
			next = m.lastOn
		}
		return protocol.Request{Mode: &next}, true

	case key.Matches(msg, m.Keys.Up), key.Matches(msg, m.Keys.Down):
		step := m.Traits.TemperatureStep
		if step <= 0 {
			step = protocol.TemperatureStep
		}
		if key.Matches(msg, m.Keys.Down) {
			step = -step
		}
		t := st.TargetTemperature + step
		if t < m.Traits.MinTemperature || t > m.Traits.MaxTemperature {
			return protocol.Request{}, false
		}
		return protocol.Request{TargetTemperature: &t}, true
	}
	return protocol.Request{}, false
}

// nextMode cycles through the supported modes other than Off.
func nextMode(cur protocol.Mode, supported []protocol.Mode) protocol.Mode {
	var on []protocol.Mode
	for _, m := range supported {
		if m != protocol.ModeOff {
			on = append(on, m)
		}
	}
	if len(on) == 0 {
		return cur
	}
	for i, m := range on {
		if m == cur {
			return on[(i+1)%len(on)]
		}
	}
	return on[0]
}

func nextFanSpeed(cur protocol.FanSpeed, supported []protocol.FanSpeed) protocol.FanSpeed {
	if len(supported) == 0 {
		return cur
	}
	for i, f := range supported {
		if f == cur {
			return supported[(i+1)%len(supported)]
		}
	}
	return supported[0]
}

// View renders the monitor
func (m MonitorModel) View() string {
	width := clampWidth(m.Width)

	var lines []string
	lines = append(lines, m.statusLine(), "")

	if m.State == nil || !m.State.Known() {
		lines = append(lines, TroubleshootingItemStyle.Render("Waiting for the first status frame..."))
	} else {
		st := *m.State
		row := func(k, v string) string {
			return ResultKeyStyle.Render(k+":") + " " + v
		}
		lines = append(lines,
			row("Mode", ModeStyle(st.Mode).Render(st.Mode.String())),
			row("Fan", ResultValueStyle.Render(st.FanSpeed.String())),
			row("Target", ResultValueStyle.Render(fmt.Sprintf("%d°C", st.TargetTemperature))),
			row("Indoor", ResultValueStyle.Render(fmt.Sprintf("%d°C", st.CurrentTemperature))),
			row("Updated", TroubleshootingItemStyle.Render(m.age())),
		)
	}

	if m.Err != nil {
		lines = append(lines, "", ErrorMessageStyle.Width(width-8).Render(FailureMarker+" "+m.Err.Error()))
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		HeaderTitleStyle.Render("GREEAC MONITOR"),
		HeaderCommandStyle.Render(m.Addr),
		" "+RenderHorizontalDivider(width-6, "─"),
		lipgloss.NewStyle().PaddingLeft(2).Render(strings.Join(lines, "\n")),
	)

	return HeaderBorderStyle(width).Render(body) + "\n" + HelpStyle.Render(m.Help.View(m.Keys)) + "\n"
}

func (m MonitorModel) statusLine() string {
	switch m.Conn {
	case ConnConnecting:
		return m.Spinner.View() + " Connecting..."
	case ConnConnected:
		return SuccessTitleStyle.Render("● connected")
	default:
		return ErrorTitleStyle.Render(FailureMarker+" disconnected") + TroubleshootingItemStyle.Render("  (r to reconnect)")
	}
}

func (m MonitorModel) age() string {
	if m.received.IsZero() {
		return "never"
	}
	d := m.now().Sub(m.received).Truncate(time.Second)
	if d < time.Second {
		return "just now"
	}
	return d.String() + " ago"
}

// RunMonitor runs the monitor until the user quits.
func RunMonitor(addr string, dial DialFunc) error {
	p := tea.NewProgram(NewMonitorModel(addr, dial), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
