package browser

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/theme"
)

var (
	headerStyle  = theme.DefaultTheme.Header
	cursorStyle  = theme.DefaultTheme.Highlight
	mutedStyle   = theme.DefaultTheme.Muted
	folderStyle  = lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Cyan)
	currentStyle = lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Green).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Red)
	dialogStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(theme.DefaultTheme.Colors.Orange).Padding(0, 1)
	previewStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(theme.DefaultTheme.Colors.Blue).PaddingLeft(1)
)
