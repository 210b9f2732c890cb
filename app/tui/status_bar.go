package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StatusBar renders model/outputs metadata plus question count and duration.
type StatusBar struct {
	model      string
	outputs    string
	questions  int
	duration   time.Duration
	lastUpdate time.Time
}

func (s StatusBar) View(width int) string {
	left := fmt.Sprintf("🤖 %s | 📁 %s", s.model, truncate(s.outputs, 24))
	right := fmt.Sprintf("❓ %d | ⏱️  %s", s.questions, formatDuration(s.duration))
	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 0 {
		padding = 0
	}
	return statusStyle.Render(left + strings.Repeat(" ", padding) + right)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:1]
	}
	return s[:n-1] + "…"
}
