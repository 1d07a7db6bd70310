package theme

import "github.com/charmbracelet/lipgloss"

// Theme defines the color scheme and styling
type Theme struct {
	Name string

	Background lipgloss.Color
	Foreground lipgloss.Color

	// UI elements
	Border        lipgloss.Color
	BorderFocused lipgloss.Color
	Selection     lipgloss.Color
	Cursor        lipgloss.Color
	Metadata      lipgloss.Color

	// Status colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	// Syntax highlighting (SQL)
	Keyword  lipgloss.Color
	String   lipgloss.Color
	Number   lipgloss.Color
	Comment  lipgloss.Color
	Operator lipgloss.Color

	// Table colors
	TableHeader      lipgloss.Color
	TableRowSelected lipgloss.Color
	Null             lipgloss.Color

	// Schema markers
	TableIcon  lipgloss.Color
	ViewIcon   lipgloss.Color
	PrimaryKey lipgloss.Color
	ForeignKey lipgloss.Color
}

// Names lists the built-in themes
func Names() []string {
	return []string{"default", "catppuccin-mocha"}
}

// GetTheme returns a theme by name, falling back to the default theme
func GetTheme(name string) Theme {
	switch name {
	case "catppuccin", "catppuccin-mocha":
		return CatppuccinMochaTheme()
	default:
		return DefaultTheme()
	}
}

// Title styles a screen heading
func (t Theme) Title() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(t.BorderFocused)
}

// Faint styles secondary text
func (t Theme) Faint() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Metadata)
}

// Selected styles the row under the cursor
func (t Theme) Selected() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(t.Foreground).Background(t.TableRowSelected)
}

// Status styles the status line for the given severity
func (t Theme) Status(isError bool) lipgloss.Style {
	if isError {
		return lipgloss.NewStyle().Foreground(t.Error)
	}
	return lipgloss.NewStyle().Foreground(t.Success)
}
