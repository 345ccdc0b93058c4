package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"remindat/backend"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	urgencyStyles = map[backend.Urgency]lipgloss.Style{
		backend.UrgencyNow:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		backend.UrgencyToday:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		backend.UrgencySoon:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		backend.UrgencyWhenever: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
)

func urgencyBadge(u backend.Urgency) string {
	return urgencyStyles[u].Render(fmt.Sprintf("%-8s", u))
}

func printSection(w io.Writer, title string, items []backend.Reminder, completed bool) {
	_, _ = fmt.Fprintln(w, headerStyle.Render(title))
	if len(items) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("  (empty)"))
		return
	}
	for _, r := range items {
		line := fmt.Sprintf("  %3d  %s %s", r.ID, urgencyBadge(r.Urgency), r.Message)
		if completed && r.CompletedAt != nil {
			line += mutedStyle.Render("  (" + *r.CompletedAt + ")")
		}
		_, _ = fmt.Fprintln(w, line)
	}
}

func bar(n, max, width int) string {
	if max == 0 || n == 0 {
		return ""
	}
	filled := n * width / max
	if filled == 0 {
		filled = 1
	}
	return strings.Repeat("█", filled)
}
