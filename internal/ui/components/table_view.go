package components

import (
	"fmt"
	"strings"

	"github.com/0xataru/dfox/internal/ui/theme"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	minColumnWidth = 4
	maxColumnWidth = 40
	nullCell       = "NULL"
)

// TableView displays rows with a selected row and a horizontal window of
// VisibleColumns columns starting at ColOffset
type TableView struct {
	Columns        []string
	Rows           [][]string
	SelectedRow    int
	ColOffset      int
	VisibleColumns int
	Width          int
	Height         int
	Truncated      bool
	Theme          theme.Theme
}

// visibleRange returns the [start, end) column range on screen
func (tv *TableView) visibleRange() (int, int) {
	start := tv.ColOffset
	if start < 0 {
		start = 0
	}
	if start > len(tv.Columns) {
		start = len(tv.Columns)
	}
	end := len(tv.Columns)
	if tv.VisibleColumns > 0 && start+tv.VisibleColumns < end {
		end = start + tv.VisibleColumns
	}
	return start, end
}

// columnWidths measures header and cells of the visible columns
func (tv *TableView) columnWidths(start, end int) []int {
	widths := make([]int, end-start)
	for i := start; i < end; i++ {
		widths[i-start] = runewidth.StringWidth(tv.Columns[i])
	}
	for _, row := range tv.Rows {
		for i := start; i < end && i < len(row); i++ {
			if w := runewidth.StringWidth(row[i]); w > widths[i-start] {
				widths[i-start] = w
			}
		}
	}
	for i := range widths {
		if widths[i] > maxColumnWidth {
			widths[i] = maxColumnWidth
		}
		if widths[i] < minColumnWidth {
			widths[i] = minColumnWidth
		}
	}
	return widths
}

// View renders the table
func (tv *TableView) View() string {
	if len(tv.Columns) == 0 {
		return tv.Theme.Faint().Italic(true).Render("No data")
	}

	start, end := tv.visibleRange()
	widths := tv.columnWidths(start, end)

	var b strings.Builder
	b.WriteString(tv.renderHeader(start, end, widths))
	b.WriteString("\n")
	b.WriteString(tv.renderSeparator(widths))
	b.WriteString("\n")

	visibleRows := tv.Height - 3 // header, separator, status
	if visibleRows < 1 {
		visibleRows = 1
	}
	top, bottom := Window(tv.SelectedRow, visibleRows, len(tv.Rows))
	for i := top; i < bottom; i++ {
		b.WriteString(tv.renderRow(tv.Rows[i], start, end, widths, i == tv.SelectedRow))
		b.WriteString("\n")
	}

	b.WriteString(tv.renderStatus(start, end))
	return b.String()
}

func (tv *TableView) renderHeader(start, end int, widths []int) string {
	parts := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		parts = append(parts, pad(tv.Columns[i], widths[i-start]))
	}
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(tv.Theme.TableHeader)
	return headerStyle.Render(" " + strings.Join(parts, " │ ") + " ")
}

func (tv *TableView) renderSeparator(widths []int) string {
	parts := make([]string, 0, len(widths))
	for _, w := range widths {
		parts = append(parts, strings.Repeat("─", w))
	}
	return lipgloss.NewStyle().Foreground(tv.Theme.Border).Render("─" + strings.Join(parts, "─┼─") + "─")
}

func (tv *TableView) renderRow(row []string, start, end int, widths []int, selected bool) string {
	nullStyle := lipgloss.NewStyle().Foreground(tv.Theme.Null).Italic(true)

	parts := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		text := pad(cell, widths[i-start])
		if cell == nullCell && !selected {
			text = nullStyle.Render(text)
		}
		parts = append(parts, text)
	}

	line := " " + strings.Join(parts, " │ ") + " "
	if selected {
		return tv.Theme.Selected().Render(line)
	}
	return line
}

func (tv *TableView) renderStatus(start, end int) string {
	status := fmt.Sprintf(" row %d of %d", tv.SelectedRow+1, len(tv.Rows))
	if len(tv.Rows) == 0 {
		status = " 0 rows"
	}
	if len(tv.Columns) > end-start {
		status += fmt.Sprintf(" · columns %d-%d of %d", start+1, end, len(tv.Columns))
	}
	if tv.Truncated {
		status += " · truncated"
	}
	return tv.Theme.Faint().Italic(true).Render(status)
}

// pad fits s into width display cells
func pad(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}
