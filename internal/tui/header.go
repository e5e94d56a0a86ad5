package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Header renders the title bar.
type Header struct {
	root  string
	width int

	titleStyle lipgloss.Style
	rootStyle  lipgloss.Style
}

// NewHeader creates a Header for the watched root.
func NewHeader(root string) *Header {
	return &Header{
		root:  root,
		width: 80,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")),

		rootStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true),
	}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// View renders the header, prefixed by the spinner frame.
func (h *Header) View(spin string) string {
	line := lipgloss.JoinHorizontal(lipgloss.Left,
		spin, " ",
		h.titleStyle.Render("skillroute watch"), "  ",
		h.rootStyle.Render(h.root),
	)
	return lipgloss.NewStyle().
		Width(h.width).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color("238")).
		Render(line)
}
