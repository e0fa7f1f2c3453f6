package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"preventsleep/internal/agent"
)

var stateColors = map[agent.State]lipgloss.Color{
	agent.StateIdle:     lipgloss.Color("#808080"),
	agent.StateActive:   lipgloss.Color("#87d7af"),
	agent.StateDraining: lipgloss.Color("#ffd700"),
	agent.StateReleased: lipgloss.Color("#5fafff"),
}

// View renders the status screen
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff")).MarginBottom(1)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#87d7af"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff")).MarginTop(1)

	var b strings.Builder
	b.WriteString(titleStyle.Render("prevent-sleep"))
	b.WriteString("\n")

	if m.lastError != "" {
		b.WriteString(errorStyle.Render(m.lastError))
		b.WriteString("\n")
	} else if m.hasStatus {
		b.WriteString(labelStyle.Render("PID: "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.PID)))
		b.WriteString("  ")
		b.WriteString(labelStyle.Render("Loop: "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.Loop)))
		b.WriteString("  ")
		b.WriteString(labelStyle.Render("Updated: "))
		b.WriteString(valueStyle.Render(prettyAge(m.now().Sub(m.status.Updated)) + " ago"))
		b.WriteString("\n\n")

		for _, s := range m.status.Checkers {
			b.WriteString(m.renderChecker(s, labelStyle, valueStyle))
		}
	}

	b.WriteString(hintStyle.Render("r: refresh  q: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderChecker(s agent.Snapshot, labelStyle, valueStyle lipgloss.Style) string {
	stateStyle := lipgloss.NewStyle().Bold(true).Foreground(stateColors[s.State])

	var b strings.Builder
	b.WriteString(valueStyle.Bold(true).Width(6).Render(s.Checker))
	b.WriteString(stateStyle.Width(10).Render(string(s.State)))
	if s.Inhibited {
		b.WriteString(valueStyle.Render("inhibited"))
	} else {
		b.WriteString(valueStyle.Render("not inhibited"))
	}
	b.WriteString("\n")

	if s.Reason != "" {
		b.WriteString("  ")
		b.WriteString(labelStyle.Render("Reason: "))
		b.WriteString(valueStyle.Render(s.Reason))
		b.WriteString("\n")
	}
	if !s.LastActive.IsZero() {
		b.WriteString("  ")
		b.WriteString(labelStyle.Render("Last active: "))
		b.WriteString(valueStyle.Render(s.LastActive.Local().Format(time.DateTime)))
		b.WriteString("\n")
	}
	return b.String()
}

// prettyAge formats a duration for display
func prettyAge(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	return d.Truncate(time.Second).String()
}
