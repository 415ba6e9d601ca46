package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"sigmabot/pkg/engage"
	"sigmabot/pkg/ratelimit"
)

// EventMsg carries one engager event
type EventMsg struct {
	Event engage.Event
}

// PollMsg carries the counters and quota state published after a poll
type PollMsg struct {
	Stats engage.Stats
	Quota []ratelimit.Status
}

// StoppedMsg reports that the engager has returned
type StoppedMsg struct {
	Err error
}

// TickMsg refreshes time-based fields
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case EventMsg:
		m.applyEvent(msg.Event)
		return m, nil

	case PollMsg:
		m.applyPoll(msg.Stats, msg.Quota)
		return m, nil

	case StoppedMsg:
		m.status = "stopped"
		if msg.Err != nil {
			m.addLogLine(m.now(), "ERROR", "engager stopped: "+msg.Err.Error())
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logLines = nil
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
