package components

import (
	"github.com/0xataru/dfox/internal/ui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Panel is a bordered box with a title and an optional footer line
type Panel struct {
	Title   string
	Content string
	Footer  string
	Width   int
	Height  int
	Focused bool
	Theme   theme.Theme
}

// View renders the panel
func (p *Panel) View() string {
	if p.Width <= 0 || p.Height <= 0 {
		return ""
	}

	border := p.Theme.Border
	if p.Focused {
		border = p.Theme.BorderFocused
	}

	// Border takes two columns and two rows
	style := lipgloss.NewStyle().
		Width(p.Width - 2).
		Height(p.Height - 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border)

	content := p.Content
	if p.Title != "" {
		titleStyle := p.Theme.Title().Padding(0, 1)
		content = titleStyle.Render(p.Title) + "\n" + content
	}
	if p.Footer != "" {
		body := lipgloss.NewStyle().Height(p.Height - 3).Render(content)
		content = body + "\n" + p.Theme.Faint().Render(p.Footer)
	}

	return style.Render(content)
}

// InnerHeight is the number of content rows left under the title and footer
func (p *Panel) InnerHeight() int {
	h := p.Height - 2
	if p.Title != "" {
		h--
	}
	if p.Footer != "" {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}
