package components

import (
	"strings"

	"github.com/0xataru/dfox/internal/ui/theme"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// FormField is one labelled input of the connection form
type FormField struct {
	Label  string
	Value  string
	Masked bool
}

// ConnectionForm renders the connection parameters form
type ConnectionForm struct {
	Title  string
	Fields []FormField
	Focus  int
	Status string
	Width  int
	Theme  theme.Theme
}

// View renders the form
func (f *ConnectionForm) View() string {
	var b strings.Builder

	b.WriteString(f.Theme.Title().Render(f.Title))
	b.WriteString("\n\n")

	labelWidth := 0
	for _, field := range f.Fields {
		labelWidth = max(labelWidth, runewidth.StringWidth(field.Label))
	}

	inputWidth := f.Width - labelWidth - 6
	if inputWidth < 10 {
		inputWidth = 10
	}

	for i, field := range f.Fields {
		focused := i == f.Focus

		value := field.Value
		if field.Masked {
			value = strings.Repeat("•", len([]rune(value)))
		}
		value = tail(value, inputWidth-1)
		if focused {
			value += "█"
		}

		label := runewidth.FillRight(field.Label+":", labelWidth+1)
		inputStyle := lipgloss.NewStyle().Foreground(f.Theme.Foreground)
		prefix := "  "
		if focused {
			prefix = "> "
			label = lipgloss.NewStyle().Bold(true).Foreground(f.Theme.BorderFocused).Render(label)
			inputStyle = inputStyle.Underline(true)
		} else {
			label = f.Theme.Faint().Render(label)
		}

		b.WriteString(prefix + label + " " + inputStyle.Render(value))
		b.WriteString("\n")
	}

	if f.Status != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(f.Theme.Info).Render(f.Status))
	}
	return b.String()
}

// tail keeps the last runes of s that fit in width cells, so the end of a
// long value stays visible while typing
func tail(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	used := 1 // ellipsis
	i := len(runes)
	for i > 0 {
		w := runewidth.RuneWidth(runes[i-1])
		if used+w > width {
			break
		}
		used += w
		i--
	}
	return "…" + string(runes[i:])
}
