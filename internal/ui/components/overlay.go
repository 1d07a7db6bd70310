package components

import (
	"strings"

	"github.com/0xataru/dfox/internal/ui/theme"
	"github.com/charmbracelet/lipgloss"
)

// ErrorOverlay is the modal box shown over a screen after a failure
type ErrorOverlay struct {
	Title   string
	Message string
	Width   int
	Theme   theme.Theme
}

// View renders the error box
func (e *ErrorOverlay) View() string {
	width := e.Width
	if width < 20 {
		width = 20
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(e.Theme.Error).Render("✗ " + e.Title)
	message := lipgloss.NewStyle().Foreground(e.Theme.Foreground).Width(width - 4).Render(e.Message)
	hint := e.Theme.Faint().Render("esc/enter to dismiss")

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(e.Theme.Error).
		Padding(1, 2).
		Width(width).
		Render(title + "\n\n" + message + "\n\n" + hint)
}

// DebugOverlay lists recent debug events, newest last
type DebugOverlay struct {
	Lines  []string
	Width  int
	Height int
	Theme  theme.Theme
}

// View renders the debug box
func (d *DebugOverlay) View() string {
	rows := d.Height - 6
	if rows < 1 {
		rows = 1
	}
	lines := d.Lines
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}

	body := strings.Join(lines, "\n")
	if len(lines) == 0 {
		body = d.Theme.Faint().Italic(true).Render("No events yet")
	}

	title := d.Theme.Title().Render("Debug log")
	hint := d.Theme.Faint().Render("esc/f12 to close")

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(d.Theme.Info).
		Padding(0, 1).
		Width(max(d.Width-4, 20)).
		Render(title + "\n\n" + body + "\n\n" + hint)
}

// Center places box in the middle of a width x height area
func Center(width, height int, box string) string {
	if width <= 0 || height <= 0 {
		return box
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
