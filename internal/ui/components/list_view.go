package components

import (
	"fmt"
	"strings"

	"github.com/0xataru/dfox/internal/ui/theme"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// ListItem is one selectable row
type ListItem struct {
	Icon   string
	Label  string
	Detail string
	// IconColor overrides the icon color
	IconColor lipgloss.Color
}

// ListView renders a vertical list with a cursor, scrolled so the cursor
// stays visible
type ListView struct {
	Items  []ListItem
	Cursor int
	Width  int
	Height int
	Empty  string
	Theme  theme.Theme
}

// Window returns the [start, end) range of rows to show so that cursor is
// inside a window of height rows
func Window(cursor, height, total int) (int, int) {
	if height <= 0 || total <= 0 {
		return 0, 0
	}
	if total <= height {
		return 0, total
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start+height > total {
		start = total - height
	}
	return start, start + height
}

// View renders the list
func (lv *ListView) View() string {
	if len(lv.Items) == 0 {
		empty := lv.Empty
		if empty == "" {
			empty = "Nothing here"
		}
		return lv.Theme.Faint().Italic(true).Render(empty)
	}

	height := lv.Height - 1 // position line
	if height < 1 {
		height = 1
	}
	start, end := Window(lv.Cursor, height, len(lv.Items))

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(lv.renderItem(lv.Items[i], i == lv.Cursor))
		b.WriteString("\n")
	}
	b.WriteString(lv.Theme.Faint().Render(fmt.Sprintf(" %d/%d", lv.Cursor+1, len(lv.Items))))
	return b.String()
}

func (lv *ListView) renderItem(item ListItem, selected bool) string {
	prefix := "  "
	if selected {
		prefix = "> "
	}

	label, detail := item.Label, item.Detail
	avail := lv.Width - runewidth.StringWidth(prefix)
	if item.Icon != "" {
		avail -= runewidth.StringWidth(item.Icon) + 1
	}
	if lv.Width > 0 {
		label = runewidth.Truncate(label, avail, "…")
		rest := avail - runewidth.StringWidth(label) - 2
		if rest > 0 {
			detail = runewidth.Truncate(detail, rest, "…")
		} else {
			detail = ""
		}
	}

	icon := item.Icon
	if icon != "" {
		color := item.IconColor
		if color == "" {
			color = lv.Theme.Info
		}
		icon = lipgloss.NewStyle().Foreground(color).Render(icon) + " "
	}

	line := prefix + icon + label
	if detail != "" {
		line += "  " + lv.Theme.Faint().Render(detail)
	}
	if selected {
		return lv.Theme.Selected().Render(line)
	}
	return line
}
