package systemd

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Render formats unit states as an aligned, colored table
func Render(states []UnitState) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#87d7af"))
	maskedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true)
	cell := lipgloss.NewStyle().PaddingRight(2)

	rows := [][]string{{"UNIT", "ACTIVE", "LOAD", "UNIT FILE"}}
	for _, s := range states {
		rows = append(rows, []string{s.Name, s.ActiveState, s.LoadState, s.UnitFileState})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, v := range row {
			if w := lipgloss.Width(v); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for i, row := range rows {
		style := okStyle
		switch {
		case i == 0:
			style = headerStyle
		case states[i-1].Masked():
			style = maskedStyle
		}

		cols := make([]string, 0, len(row))
		for j, v := range row {
			cols = append(cols, cell.Width(widths[j]+2).Render(style.Render(v)))
		}
		b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cols...), " "))
		b.WriteByte('\n')
	}
	return b.String()
}
