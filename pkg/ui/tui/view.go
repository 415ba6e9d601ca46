package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"sigmabot/pkg/ui"
)

// View renders the dashboard
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, logoStyle.Width(m.width).Render(ui.ASCIILogo))

	half := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(half),
		m.renderQuotaPanel(half),
	)
	right := m.renderLogPanel(half)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to quit"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" ENGAGEMENT ")

	lastPoll := "never"
	if !m.lastPoll.IsZero() {
		lastPoll = formatDuration(m.now().Sub(m.lastPoll)) + " ago"
	}

	row := func(label string, value interface{}) string {
		return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(fmt.Sprint(value)))
	}

	lines := []string{
		fmt.Sprintf("%s %s", m.spinner.View(), statusStyle(m.status).Render(strings.ToUpper(m.status))),
		row("Uptime:", formatDuration(m.now().Sub(m.startTime))),
		row("Last poll:", lastPoll),
		row("Polls:", m.stats.Polls),
		row("Processed:", m.stats.Processed),
		row("Favorited:", m.stats.Favorited),
		row("Reposted:", m.stats.Reposted),
		row("Replied:", m.stats.Replied),
		row("Media skipped:", m.stats.MediaSkipped),
		row("Failures:", m.stats.Failures+m.stats.Abandoned),
		row("Sessions:", fmt.Sprintf("%d (%d failed)", m.stats.Sessions, m.stats.SessionErrors)),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)),
	)
}

func (m Model) renderQuotaPanel(width int) string {
	title := titleStyle.Render(" QUOTA ")

	if len(m.quota) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Waiting for first poll...")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	now := m.now()
	var lines []string
	for _, s := range m.quota {
		usage, resetIn := quotaUsage(s, now)
		style := QuotaStyle(usage * 100)

		bar := m.bars[s.Category]
		if w := width - 12; w > 10 && w < bar.Width {
			bar.Width = w
		}

		lines = append(lines,
			fmt.Sprintf("%s %s %s",
				statsLabelStyle.Render(fmt.Sprintf("%-12s", s.Category)),
				style.Render(fmt.Sprintf("%d/%d", s.Calls, s.MaxCalls)),
				logTimestampStyle.Render("resets in "+formatDuration(resetIn)),
			),
			bar.ViewAs(usage),
		)
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m Model) renderLogPanel(width int) string {
	title := titleStyle.Render(" ACTIVITY ")

	visible := m.height - 20
	if visible < 5 {
		visible = 5
	}
	start := len(m.logLines) - visible
	if start < 0 {
		start = 0
	}

	maxMsgLen := width - 25
	var lines []string
	for _, line := range m.logLines[start:] {
		msg := line.Message
		if maxMsgLen > 3 && len(msg) > maxMsgLen {
			msg = msg[:maxMsgLen-3] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			logTimestampStyle.Render(line.Time.Format("15:04:05")),
			lipgloss.NewStyle().Foreground(line.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", line.Level)),
			logMessageStyle.Render(msg),
		))
	}

	content := strings.Join(lines, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No activity yet...")
	}

	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop the bot and quit
    ctrl+l   - Clear the activity feed
    ?        - Toggle this help

  Activity:
    ` + successStyle.Render("Green") + `    - Action completed
    ` + warningStyle.Render("Orange") + `   - Rejected by the platform or reply skipped
    ` + errorStyle.Render("Red") + `      - Post abandoned or session failed
`
	return panelStyle.Width(m.width).Render(help)
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
