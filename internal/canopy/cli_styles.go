package canopy

import "github.com/charmbracelet/lipgloss"

var (
	// Muted/Nord-inspired palette
	colorGreen  = lipgloss.Color("#a3be8c")
	colorCyan   = lipgloss.Color("#88c0d0")
	colorBlue   = lipgloss.Color("#81a1c1")
	colorPurple = lipgloss.Color("#b48ead")
	colorRed    = lipgloss.Color("#bf616a")
	colorGray   = lipgloss.Color("#4c566a")

	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(colorPurple).Bold(true)
	styleInfo    = lipgloss.NewStyle().Foreground(colorCyan)

	styleTableHead = lipgloss.NewStyle().Foreground(colorGreen).Bold(true).Underline(true)
	styleCurrent   = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	styleBranch    = lipgloss.NewStyle().Foreground(colorCyan)
	stylePath      = lipgloss.NewStyle().Foreground(colorBlue)
	styleDim       = lipgloss.NewStyle().Foreground(colorGray)
)

func SuccessMsg(msg string) string {
	return styleSuccess.Render("✓ ") + msg
}

func ErrorMsg(msg string) string {
	return styleError.Render("✗ ") + msg
}

func WarnMsg(msg string) string {
	return styleWarning.Render("! ") + msg
}

func InfoMsg(msg string) string {
	return styleInfo.Render("• ") + msg
}
