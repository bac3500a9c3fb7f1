// Package tui is the terminal dashboard behind `datacollector watch`.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/devicedata/datacollector/pkg/collector"
	"github.com/devicedata/datacollector/pkg/events"
	"github.com/devicedata/datacollector/pkg/powerinfo"
)

// pollInterval refreshes state when the event stream is unavailable.
const pollInterval = 5 * time.Second

// Daemon is the part of the daemon client the dashboard uses.
type Daemon interface {
	GetState() (*collector.State, error)
	SetMonitoring(enabled bool) (string, error)
	Collect() (string, error)
	SubscribeEvents(ctx context.Context) (<-chan events.Event, error)
}

type stateMsg collector.State
type readingMsg powerinfo.Reading
type failedMsg events.DeliveryFailedEvent
type statusMsg string
type streamMsg struct{ ch <-chan events.Event }
type streamClosedMsg struct{}
type tickMsg time.Time
type errMsg struct{ err error }
type otherEventMsg struct{}

// Model is the dashboard state.
type Model struct {
	ctx    context.Context
	daemon Daemon

	state    *collector.State
	failure  *events.DeliveryFailedEvent
	status   string
	err      error
	stream   <-chan events.Event
	quitting bool
}

// New returns a dashboard bound to d. ctx ends the event subscription.
func New(ctx context.Context, d Daemon) Model {
	return Model{ctx: ctx, daemon: d, status: "connecting..."}
}

// Run shows the dashboard until the user quits.
func Run(ctx context.Context, d Daemon) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	_, err := tea.NewProgram(New(ctx, d)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchState(), m.subscribe())
}

func (m Model) fetchState() tea.Cmd {
	return func() tea.Msg {
		st, err := m.daemon.GetState()
		if err != nil {
			return errMsg{err}
		}
		return stateMsg(*st)
	}
}

func (m Model) subscribe() tea.Cmd {
	return func() tea.Msg {
		ch, err := m.daemon.SubscribeEvents(m.ctx)
		if err != nil {
			return streamClosedMsg{}
		}
		return streamMsg{ch}
	}
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventToMsg(ev)
	}
}

func eventToMsg(ev events.Event) tea.Msg {
	switch ev.Name {
	case events.StateChanged:
		st, err := events.DecodeAs[collector.State](ev)
		if err != nil {
			return errMsg{err}
		}
		return stateMsg(st)
	case events.BatteryChanged:
		r, err := events.DecodeAs[powerinfo.Reading](ev)
		if err != nil {
			return errMsg{err}
		}
		return readingMsg(r)
	case events.DeliveryFailed:
		f, err := events.DecodeAs[events.DeliveryFailedEvent](ev)
		if err != nil {
			return errMsg{err}
		}
		return failedMsg(f)
	}
	return otherEventMsg{}
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "s":
			if m.state == nil {
				return m, nil
			}
			enable := !m.state.IsMonitoring
			return m, func() tea.Msg {
				out, err := m.daemon.SetMonitoring(enable)
				if err != nil {
					return errMsg{err}
				}
				return statusMsg(out)
			}
		case "c":
			return m, func() tea.Msg {
				out, err := m.daemon.Collect()
				if err != nil {
					return errMsg{err}
				}
				return statusMsg(out)
			}
		case "r":
			return m, m.fetchState()
		}

	case stateMsg:
		st := collector.State(msg)
		m.state = &st
		m.err = nil
		if m.status == "connecting..." {
			m.status = "connected"
		}

	case readingMsg:
		if m.state != nil {
			m.state.CurrentBatteryLevel = msg.Level
			m.state.CurrentBatteryState = msg.State
			m.state.IsLowPowerMode = msg.LowPower
		}

	case failedMsg:
		f := events.DeliveryFailedEvent(msg)
		m.failure = &f

	case statusMsg:
		m.status = string(msg)
		m.err = nil

	case streamMsg:
		m.stream = msg.ch
		return m, waitForEvent(m.stream)

	case streamClosedMsg:
		m.stream = nil
		m.status = "event stream unavailable, polling"
		return m, tick()

	case tickMsg:
		return m, tea.Batch(m.fetchState(), tick())

	case errMsg:
		m.err = msg.err
	}

	// Keep draining the stream after handling one of its events.
	switch msg.(type) {
	case stateMsg, readingMsg, failedMsg, otherEventMsg:
		if m.stream != nil {
			return m, waitForEvent(m.stream)
		}
	}
	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00AFFF")).
			Padding(1, 0)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00AFFF")).
			Padding(1, 2)

	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(1, 0)
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("DataCollector"))
	b.WriteString("\n")

	if m.state == nil {
		body := m.status
		if m.err != nil {
			body = badStyle.Render(fmt.Sprintf("Error: %v", m.err))
		}
		b.WriteString(boxStyle.Render(body))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	st := m.state
	var lines []string

	if st.IsMonitoring {
		lines = append(lines, goodStyle.Render("● monitoring"))
	} else {
		lines = append(lines, warnStyle.Render("○ stopped"))
	}
	lines = append(lines,
		"",
		fmt.Sprintf("Battery:     %s (%s)", formatLevel(st.CurrentBatteryLevel), st.CurrentBatteryState),
		fmt.Sprintf("Low power:   %t", st.IsLowPowerMode),
		fmt.Sprintf("Device:      %s %s", st.DeviceModel, st.DeviceID),
		fmt.Sprintf("Interval:    %s", st.Interval),
		"",
		fmt.Sprintf("Sent:        %d", st.SentDataCount),
		fmt.Sprintf("Failed:      %d", st.FailedCount),
		fmt.Sprintf("Last update: %s", formatLastUpdate(st.LastUpdateTime)),
	)
	if m.failure != nil {
		lines = append(lines, badStyle.Render(fmt.Sprintf("Last failure: %s", m.failure.Message)))
	}

	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")

	status := m.status
	if m.err != nil {
		status = badStyle.Render(m.err.Error())
	}
	b.WriteString(status)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s start/stop  c collect now  r refresh  q quit"))
	return b.String()
}

func formatLevel(level float64) string {
	if level < 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.0f%%", level*100)
}

func formatLastUpdate(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return fmt.Sprintf("%s (%s ago)", t.Local().Format(time.TimeOnly), time.Since(*t).Round(time.Second))
}
