package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	currentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// RenderMessage formats one message for the terminal. Document blocks are shown as @title.
func RenderMessage(m Message) string {
	label := userStyle.Render("you")
	if m.Sender == SenderAssistant {
		label = assistantStyle.Render("assistant")
	}

	content := FormatMessageContent(m.Content)
	switch {
	case m.Failed && content == "":
		content = errorStyle.Render("(no response)")
	case m.Failed:
		content += " " + errorStyle.Render("(incomplete)")
	case content == "" && m.Sender == SenderAssistant:
		content = dimStyle.Render("…")
	}
	return fmt.Sprintf("%s: %s", label, content)
}

// RenderTranscript formats every message, one per line
func RenderTranscript(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, RenderMessage(m))
	}
	return strings.Join(lines, "\n")
}

// RenderSessionLine formats a session directory entry, highlighting the current one
func RenderSessionLine(index int, s AgentSession, current bool) string {
	target := s.AgentID
	if target == "" && s.Model != nil {
		target = fmt.Sprintf("%s @%.1f", s.Model.ID, s.Model.TemperatureOr(DefaultTemperature))
	}

	line := fmt.Sprintf("%2d. %s", index, s.Label())
	if target != "" {
		line += " " + dimStyle.Render("["+target+"]")
	}
	if current {
		return currentStyle.Render("▶ ") + line
	}
	return "  " + line
}

// RenderTarget describes the current execution target
func RenderTarget(s ChatState) string {
	switch {
	case s.SelectedAgent != "":
		name := s.SelectedAgent
		for _, a := range s.Agents {
			if a.ID == s.SelectedAgent {
				name = a.DisplayName()
				break
			}
		}
		return "agent " + name
	case s.SelectedModel != "":
		return fmt.Sprintf("model %s (temperature %.1f)", s.SelectedModel, s.Temperature)
	default:
		return "no agent or model selected"
	}
}
