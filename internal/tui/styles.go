package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorMuted  = lipgloss.Color("#7f849c")
	colorAccent = lipgloss.Color("#89b4fa")
	colorError  = lipgloss.Color("#f38ba8")
	colorSelf   = lipgloss.Color("#a6e3a1")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(colorMuted)
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true).Foreground(colorAccent)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(colorMuted).
			PaddingRight(1)

	noticeStyle = lipgloss.NewStyle().Italic(true).Foreground(colorMuted)
	timeStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	selfStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorSelf)
	typingStyle = lipgloss.NewStyle().Italic(true).Foreground(colorMuted)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)
)

// nameStyle renders a user name in the user's primary color.
func nameStyle(color string) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	if color != "" {
		s = s.Foreground(lipgloss.Color(color))
	}
	return s
}
