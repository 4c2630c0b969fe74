package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/snappy-loop/skynet/internal/models"
)

// Speaker returns the styled label shown before a chat message.
func Speaker(w io.Writer, role models.Role) string {
	re := lipgloss.NewRenderer(w)
	if role == models.RoleUser {
		return re.NewStyle().Bold(true).Foreground(lipgloss.Color("#9ca3af")).Render("Tú:")
	}
	return re.NewStyle().Bold(true).Foreground(lipgloss.Color("#ef4444")).Render("Skynet:")
}

// Error renders a user-facing error line.
func Error(w io.Writer, msg string) string {
	return lipgloss.NewRenderer(w).NewStyle().Foreground(lipgloss.Color("#ef4444")).Render(msg)
}

// Dim renders help or status text.
func Dim(w io.Writer, msg string) string {
	return lipgloss.NewRenderer(w).NewStyle().Foreground(lipgloss.Color("#6e7681")).Render(msg)
}

// Tint renders s in the accent colour of th.
func Tint(w io.Writer, th Theme, s string) string {
	return lipgloss.NewRenderer(w).NewStyle().Foreground(th.Accent).Render(s)
}
