package help

import (
	"strings"

	"github.com/0xataru/dfox/internal/ui/theme"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// Section is a titled group of key bindings
type Section struct {
	Title    string
	Bindings []key.Binding
}

// Short renders enabled bindings as a single footer line
func Short(th theme.Theme, bindings ...key.Binding) string {
	keyStyle := lipgloss.NewStyle().Foreground(th.Warning)
	descStyle := th.Faint()

	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		parts = append(parts, keyStyle.Render(h.Key)+" "+descStyle.Render(h.Desc))
	}
	return strings.Join(parts, descStyle.Render(" · "))
}

// Render creates the full key reference
func Render(width int, th theme.Theme, sections ...Section) string {
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(th.Info)
	keyStyle := lipgloss.NewStyle().Foreground(th.Warning).Width(16)
	descStyle := lipgloss.NewStyle().Foreground(th.Foreground)

	var b strings.Builder
	b.WriteString(th.Title().Render("dfox - Keyboard Shortcuts"))
	b.WriteString("\n\n")

	for _, s := range sections {
		b.WriteString(sectionStyle.Render(s.Title))
		b.WriteString("\n")
		for _, kb := range s.Bindings {
			h := kb.Help()
			b.WriteString("  ")
			b.WriteString(keyStyle.Render(h.Key))
			b.WriteString(descStyle.Render(h.Desc))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(th.BorderFocused).
		Padding(0, 2).
		Width(max(width-4, 20)).
		Render(strings.TrimRight(b.String(), "\n"))
}
