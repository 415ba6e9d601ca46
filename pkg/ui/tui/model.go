package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sigmabot/pkg/engage"
	errs "sigmabot/pkg/errors"
	"sigmabot/pkg/ratelimit"
)

// LogLine is one rendered entry of the activity feed
type LogLine struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the dashboard state. It is only mutated by Update.
type Model struct {
	spinner spinner.Model
	bars    map[ratelimit.Category]progress.Model

	stats    engage.Stats
	quota    []ratelimit.Status
	lastPoll time.Time
	status   string

	startTime   time.Time
	logLines    []LogLine
	maxLogLines int

	width    int
	height   int
	showHelp bool

	now func() time.Time
}

// NewModel creates an empty dashboard model
func NewModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	bars := make(map[ratelimit.Category]progress.Model, len(ratelimit.Categories()))
	for _, c := range ratelimit.Categories() {
		p := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
		p.Width = 30
		bars[c] = p
	}

	return Model{
		spinner:     s,
		bars:        bars,
		status:      "starting",
		startTime:   time.Now(),
		maxLogLines: 50,
		now:         time.Now,
	}
}

// Init starts the spinner and the refresh ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// applyEvent turns an engager event into a feed line and status
func (m *Model) applyEvent(ev engage.Event) {
	level := eventLevel(ev)
	m.addLogLine(ev.Time, level, describeEvent(ev))

	switch ev.Action {
	case engage.ActionSessionError:
		m.status = "cooling down"
	case engage.ActionLogin:
		if ev.Err == nil {
			m.status = "running"
		} else {
			m.status = "login failed"
		}
	}
}

// applyPoll stores the counters and quota view published after a poll
func (m *Model) applyPoll(stats engage.Stats, quota []ratelimit.Status) {
	m.stats = stats
	m.quota = quota
	m.lastPoll = m.now()
	m.status = "running"
}

func (m *Model) addLogLine(t time.Time, level, message string) {
	if t.IsZero() {
		t = m.now()
	}
	m.logLines = append(m.logLines, LogLine{
		Time:    t,
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})

	if len(m.logLines) > m.maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-m.maxLogLines:]
	}
}

func eventLevel(ev engage.Event) string {
	switch {
	case ev.Action == engage.ActionSessionError || ev.Action == engage.ActionAbandon:
		return "ERROR"
	case ev.Action == engage.ActionSkipMedia:
		return "WARN"
	case ev.Err != nil && errs.IsRemote(ev.Err):
		return "WARN"
	case ev.Err != nil:
		return "ERROR"
	case ev.Action == engage.ActionLogin || ev.Action == engage.ActionSearch:
		return "INFO"
	default:
		return "SUCCESS"
	}
}

func levelColor(level string) lipgloss.Color {
	switch level {
	case "ERROR":
		return errorRed
	case "WARN":
		return neonOrange
	case "SUCCESS":
		return neonGreen
	case "INFO":
		return neonCyan
	default:
		return dimWhite
	}
}

// describeEvent renders an event as a single feed message
func describeEvent(ev engage.Event) string {
	var msg string
	switch ev.Action {
	case engage.ActionLogin:
		msg = "logged in"
	case engage.ActionSearch:
		msg = "searched"
	case engage.ActionFavorite:
		msg = "favorited"
	case engage.ActionRepost:
		msg = "reposted"
	case engage.ActionUpload:
		msg = "uploaded gif"
	case engage.ActionReply:
		msg = "replied"
	case engage.ActionSkipMedia:
		msg = "skipped media"
	case engage.ActionAbandon:
		msg = "abandoned post"
	case engage.ActionSessionError:
		msg = "session failed"
	default:
		msg = ev.Action
	}

	if ev.Err != nil && ev.Action != engage.ActionSkipMedia &&
		ev.Action != engage.ActionAbandon && ev.Action != engage.ActionSessionError {
		msg = ev.Action + " failed"
	}
	if ev.Author != "" {
		msg += fmt.Sprintf(" @%s", ev.Author)
	}
	if ev.PostID != "" {
		msg += fmt.Sprintf(" (post %s)", ev.PostID)
	}
	if ev.Err != nil {
		msg += ": " + ev.Err.Error()
	}
	return msg
}

// quotaUsage returns the used fraction of a window and the time until it resets
func quotaUsage(s ratelimit.Status, now time.Time) (float64, time.Duration) {
	usage := 0.0
	if s.MaxCalls > 0 {
		usage = float64(s.Calls) / float64(s.MaxCalls)
	}
	if usage > 1 {
		usage = 1
	}

	resetIn := s.WindowStart.Add(s.Window).Sub(now)
	if resetIn < 0 {
		resetIn = 0
	}
	return usage, resetIn
}
