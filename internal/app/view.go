package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/0xataru/dfox/internal/debuglog"
	"github.com/0xataru/dfox/internal/models"
	"github.com/0xataru/dfox/internal/runner"
	"github.com/0xataru/dfox/internal/ui/components"
	"github.com/0xataru/dfox/internal/ui/help"
	"github.com/0xataru/dfox/internal/ui/theme"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// View renders a frame from the state. It never changes s.
func View(s State, th theme.Theme, events []debuglog.Event) string {
	if s.Quitting {
		return ""
	}

	width, height := s.Width, s.Height
	if width <= 0 || height <= 0 {
		width, height = defaultWidth, defaultHeight
	}
	bodyHeight := max(height-3, 5)

	var body string
	switch {
	case s.Debug:
		overlay := components.DebugOverlay{
			Lines:  debugLines(events),
			Width:  width,
			Height: bodyHeight,
			Theme:  th,
		}
		body = components.Center(width, bodyHeight, overlay.View())
	case s.Error != nil:
		overlay := components.ErrorOverlay{
			Title:   s.Error.Title,
			Message: s.Error.Message,
			Width:   min(width-4, 70),
			Theme:   th,
		}
		body = components.Center(width, bodyHeight, overlay.View())
	case s.Help:
		body = components.Center(width, bodyHeight, help.Render(min(width, 72), th, helpSections()...))
	default:
		body = screenPanel(s, th, width, bodyHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header(s, th, width),
		body,
		help.Short(th, shortHelp(s.Screen)...),
		statusLine(s, th, width),
	)
}

func header(s State, th theme.Theme, width int) string {
	parts := []string{th.Title().Render("dfox")}
	if s.Connected {
		target := s.Connection.Engine.String() + " " + s.Connection.Label
		if s.Database != "" {
			target += " · " + s.Database
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(th.Success).Render("● "+target))
	} else {
		parts = append(parts, th.Faint().Render("○ not connected"))
	}

	var busy []string
	for _, slot := range runner.Slots() {
		if op := s.PendingOp(slot); op != OpNone {
			busy = append(busy, op.String())
		}
	}
	if len(busy) > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(th.Warning).Render("⟳ "+strings.Join(busy, ", ")))
	}

	return lipgloss.NewStyle().MaxWidth(width).Render(strings.Join(parts, "  "))
}

func statusLine(s State, th theme.Theme, width int) string {
	if s.Status == "" {
		return ""
	}
	return th.Status(s.StatusIsError).MaxWidth(width).Render(s.Status)
}

func screenPanel(s State, th theme.Theme, width, height int) string {
	p := components.Panel{
		Title:   s.Screen.String(),
		Width:   width,
		Height:  height,
		Focused: true,
		Theme:   th,
	}
	inner := p.InnerHeight()
	innerWidth := width - 2

	switch s.Screen {
	case ScreenEngineSelect:
		p.Title = "Select a database engine"
		items := make([]components.ListItem, 0, len(models.Engines()))
		for _, e := range models.Engines() {
			detail := "local file"
			if port := e.DefaultPort(); port > 0 {
				detail = "port " + strconv.Itoa(port)
			}
			items = append(items, components.ListItem{Icon: "◆", Label: e.String(), Detail: detail, IconColor: th.Info})
		}
		lv := components.ListView{Items: items, Cursor: s.EngineCursor, Width: innerWidth, Height: inner, Theme: th}
		p.Content = lv.View()

	case ScreenConnectionInput:
		p.Title = ""
		form := components.ConnectionForm{
			Title: s.Engine.String() + " connection",
			Focus: s.Form.Focus,
			Width: innerWidth,
			Theme: th,
		}
		for _, f := range FormFields(s.Engine) {
			form.Fields = append(form.Fields, components.FormField{
				Label:  f.Label(),
				Value:  s.Form.Values[f],
				Masked: f == FieldPassword,
			})
		}
		if s.PendingOp(runner.SlotConnect) == OpConnect {
			form.Status = "Connecting..."
		}
		p.Content = form.View()

	case ScreenDatabaseSelect:
		items := make([]components.ListItem, 0, len(s.Databases))
		for _, db := range s.Databases {
			item := components.ListItem{Icon: "▪", Label: db.Name, Detail: db.Detail, IconColor: th.Info}
			if db.Name == s.Database {
				item.IconColor = th.Success
			}
			items = append(items, item)
		}
		lv := components.ListView{
			Items:  items,
			Cursor: s.DatabaseCursor,
			Width:  innerWidth,
			Height: inner,
			Empty:  emptyText(s, OpListDatabases, "Loading databases...", "No databases"),
			Theme:  th,
		}
		p.Content = lv.View()

	case ScreenTableList:
		p.Title = "Tables in " + s.Database
		items := make([]components.ListItem, 0, len(s.Tables))
		for _, t := range s.Tables {
			item := components.ListItem{Icon: "▦", Label: t.QualifiedName(), Detail: t.Kind, IconColor: th.TableIcon}
			if t.Kind == "view" {
				item.Icon, item.IconColor = "◫", th.ViewIcon
			}
			items = append(items, item)
		}
		lv := components.ListView{
			Items:  items,
			Cursor: s.TableCursor,
			Width:  innerWidth,
			Height: inner,
			Empty:  emptyText(s, OpUseDatabase, "Loading tables...", "No tables"),
			Theme:  th,
		}
		p.Content = lv.View()

	case ScreenTableDescribe:
		if s.Schema != nil {
			p.Title = "Structure of " + s.Schema.Table
		}
		sv := components.StructureView{Schema: s.Schema, Cursor: s.SchemaCursor, Width: innerWidth, Height: inner, Theme: th}
		p.Content = sv.View()

	case ScreenQueryEditor:
		p.Title = "Query"
		if s.RecallIndex >= 0 {
			p.Footer = fmt.Sprintf("history %d/%d", s.RecallIndex+1, len(s.Recall))
			inner = p.InnerHeight()
		}
		editor := components.SQLEditor{Buffer: s.Editor, Width: innerWidth, Height: inner, Focused: true, Theme: th}
		p.Content = editor.View()

	case ScreenQueryResult:
		p.Title = "Result"
		p.Content = resultContent(s, th, innerWidth, inner)
	}

	return p.View()
}

func resultContent(s State, th theme.Theme, width, height int) string {
	r := s.Result
	if r == nil {
		return th.Faint().Italic(true).Render("No result")
	}
	if !r.HasRows() {
		msg := r.Message
		if msg == "" {
			msg = fmt.Sprintf("%d rows affected", r.RowsAffected)
		}
		return lipgloss.NewStyle().Foreground(th.Success).Render(msg)
	}
	tv := components.TableView{
		Columns:        r.Columns,
		Rows:           r.Rows,
		SelectedRow:    s.ResultCursor,
		ColOffset:      s.ColOffset,
		VisibleColumns: s.Settings.VisibleColumns,
		Width:          width,
		Height:         height,
		Truncated:      r.Truncated,
		Theme:          th,
	}
	return tv.View()
}

// emptyText picks the placeholder of an empty list
func emptyText(s State, loading Op, busy, idle string) string {
	if s.PendingOp(loading.Slot()) != OpNone {
		return busy
	}
	return idle
}

func debugLines(events []debuglog.Event) []string {
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		line := fmt.Sprintf("%s %-7s", ev.Time.Format("15:04:05"), ev.Kind)
		if ev.Target != "" {
			line += " [" + ev.Target + "]"
		}
		line += " " + strings.ReplaceAll(ev.Message, "\n", " ")
		if ev.Duration > 0 {
			line += fmt.Sprintf(" (%s)", ev.Duration.Round(time.Millisecond))
		}
		lines = append(lines, line)
	}
	return lines
}
