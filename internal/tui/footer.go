package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Footer renders the status message and keyboard hints.
type Footer struct {
	message string
	failed  bool
	width   int

	errorStyle     lipgloss.Style
	hintStyle      lipgloss.Style
	separatorStyle lipgloss.Style
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		separatorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("236")),
	}
}

// SetMessage sets the status message. failed renders it as an error.
func (f *Footer) SetMessage(message string, failed bool) {
	f.message = message
	f.failed = failed
}

// SetWidth sets the footer width.
func (f *Footer) SetWidth(width int) {
	f.width = width
}

// View renders the footer.
func (f *Footer) View() string {
	hints := f.hintStyle.Render("enter rank skills │ ↑/↓ scroll batches │ esc quit")
	if f.message == "" {
		return hints
	}
	msg := f.hintStyle.Render(f.message)
	if f.failed {
		msg = f.errorStyle.Render("✗ " + f.message)
	}
	return msg + f.separatorStyle.Render(" │ ") + hints
}
