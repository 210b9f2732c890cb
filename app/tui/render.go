package tui

import (
	"fmt"
	"strings"
	"time"
)

// RenderMessage converts a Message into a styled string for the viewport.
func RenderMessage(msg Message, width int) string {
	var b strings.Builder

	b.WriteString(renderMessageHeader(msg))
	b.WriteString("\n")

	switch msg.Role {
	case RoleUser:
		b.WriteString(textStyle.Render(msg.Content.Text))
	case RoleAgent:
		b.WriteString(renderAgentMessage(msg))
	case RoleSystem:
		b.WriteString(dimStyle.Render(msg.Content.Text))
	}

	if msg.Metadata.Duration > 0 {
		b.WriteString("\n")
		b.WriteString(renderMessageFooter(msg))
	}

	boxWidth := max(0, width-4)
	return messageBoxStyle.Width(boxWidth).Render(b.String())
}

func renderMessageHeader(msg Message) string {
	timestamp := msg.Timestamp.Format("15:04:05")
	icon := "💬"
	roleText := "User"
	switch msg.Role {
	case RoleUser:
		icon = "👤"
		roleText = "You"
	case RoleAgent:
		icon = "🤖"
		roleText = "delver"
	case RoleSystem:
		icon = "⚙️"
		roleText = "System"
	}
	return headerStyle.Render(fmt.Sprintf("%s [%s] %s", icon, timestamp, roleText))
}

func renderAgentMessage(msg Message) string {
	var b strings.Builder

	if len(msg.Content.Steps) > 0 {
		b.WriteString(renderStepsSection(msg.Content.Steps, msg.Content.Expanded))
		b.WriteString("\n\n")
	}

	if msg.Content.Text != "" {
		b.WriteString(answerStyle.Render("✅ Answer"))
		b.WriteString("\n")
		b.WriteString(textStyle.Render(msg.Content.Text))
	}

	return b.String()
}

func renderStepsSection(steps []ResearchStep, expanded bool) string {
	var b strings.Builder
	toggle := "[−]"
	if !expanded {
		toggle = "[+]"
	}
	b.WriteString(sectionHeaderStyle.Render("🔬 Research " + dimStyle.Render(toggle)))
	b.WriteString("\n")
	if !expanded {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d steps", len(steps))))
		return b.String()
	}
	for i, step := range steps {
		prefix := "├─"
		if i == len(steps)-1 {
			prefix = "└─"
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n", dimStyle.Render(prefix), stepIcon(step.Kind), renderStepText(step)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func stepIcon(kind StepKind) string {
	switch kind {
	case StepThinking:
		return "💭"
	case StepSearch:
		return "🔧"
	case StepResults:
		return "📥"
	case StepNotice:
		return "⚠️"
	default:
		return "•"
	}
}

func renderStepText(step ResearchStep) string {
	switch step.Kind {
	case StepSearch:
		return textStyle.Render("Searching: " + step.Text)
	case StepResults:
		return detailStyle.Render(firstLine(step.Text))
	case StepNotice:
		return noticeStyle.Render(step.Text)
	default:
		return detailStyle.Render(step.Text)
	}
}

// firstLine keeps multi-line tool output from breaking the step tree.
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx] + "…"
	}
	return s
}

func renderMessageFooter(msg Message) string {
	parts := []string{"⏱️  " + formatDuration(msg.Metadata.Duration)}
	if msg.Metadata.Model != "" {
		parts = append(parts, "🤖 "+msg.Metadata.Model)
	}
	return dimStyle.Render(strings.Join(parts, " | "))
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
