package app

import (
	"github.com/0xataru/dfox/internal/ui/help"
	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Quit      key.Binding
	Databases key.Binding
	Debug     key.Binding
	Help      key.Binding

	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding
	Left     key.Binding
	Right    key.Binding

	Select     key.Binding
	Back       key.Binding
	Refresh    key.Binding
	QuitScreen key.Binding

	NextField key.Binding
	PrevField key.Binding
	ClearLine key.Binding

	Describe   key.Binding
	Editor     key.Binding
	DescBack   key.Binding
	Execute    key.Binding
	RecallPrev key.Binding
	RecallNext key.Binding
	Clear      key.Binding
	Switch     key.Binding

	CopyRow    key.Binding
	CopyAll    key.Binding
	ExportFile key.Binding
	ResultBack key.Binding

	Dismiss key.Binding
	Close   key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("ctrl+q"), key.WithHelp("ctrl+q", "quit")),
	Databases: key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "databases")),
	Debug:     key.NewBinding(key.WithKeys("f12"), key.WithHelp("f12", "debug log")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),

	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdown", "page down")),
	Home:     key.NewBinding(key.WithKeys("home"), key.WithHelp("home", "first")),
	End:      key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "last")),
	Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "scroll left")),
	Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "scroll right")),

	Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	QuitScreen: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

	NextField: key.NewBinding(key.WithKeys("down", "tab"), key.WithHelp("↓/tab", "next field")),
	PrevField: key.NewBinding(key.WithKeys("up", "shift+tab"), key.WithHelp("↑/shift+tab", "previous field")),
	ClearLine: key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("ctrl+u", "clear field")),

	Describe: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "describe")),
	Editor:   key.NewBinding(key.WithKeys("tab", "e"), key.WithHelp("tab/e", "query editor")),
	DescBack: key.NewBinding(key.WithKeys("esc", "enter", "backspace"), key.WithHelp("esc", "tables")),

	Execute:    key.NewBinding(key.WithKeys("f5", "ctrl+e"), key.WithHelp("f5/ctrl+e", "execute")),
	RecallPrev: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "older query")),
	RecallNext: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "newer query")),
	Clear:      key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear")),
	Switch:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch")),

	CopyRow:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "copy row")),
	CopyAll:    key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "copy all")),
	ExportFile: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "export file")),
	ResultBack: key.NewBinding(key.WithKeys("esc", "e"), key.WithHelp("esc/e", "editor")),

	Dismiss: key.NewBinding(key.WithKeys("esc", "enter"), key.WithHelp("esc/enter", "dismiss")),
	Close:   key.NewBinding(key.WithKeys("esc", "f12"), key.WithHelp("esc/f12", "close")),
}

// shortHelp lists the footer bindings of a screen
func shortHelp(s Screen) []key.Binding {
	switch s {
	case ScreenEngineSelect:
		return []key.Binding{keys.Up, keys.Down, keys.Select, keys.QuitScreen}
	case ScreenConnectionInput:
		return []key.Binding{keys.NextField, withHelp(keys.Select, "enter", "next/connect"), keys.Back}
	case ScreenDatabaseSelect:
		return []key.Binding{withHelp(keys.Select, "enter", "open"), keys.Refresh, withHelp(keys.Back, "esc", "disconnect")}
	case ScreenTableList:
		return []key.Binding{keys.Describe, keys.Editor, keys.Refresh, withHelp(keys.Back, "esc", "databases")}
	case ScreenTableDescribe:
		return []key.Binding{keys.DescBack, withHelp(keys.Switch, "tab", "editor")}
	case ScreenQueryEditor:
		return []key.Binding{keys.Execute, keys.RecallPrev, keys.Clear, withHelp(keys.Back, "esc", "tables")}
	case ScreenQueryResult:
		return []key.Binding{keys.Left, keys.Right, keys.CopyRow, keys.CopyAll, keys.ExportFile, keys.ResultBack}
	default:
		return nil
	}
}

func withHelp(b key.Binding, k, desc string) key.Binding {
	b.SetHelp(k, desc)
	return b
}

// helpSections is the full key reference
func helpSections() []help.Section {
	return []help.Section{
		{Title: "Global", Bindings: []key.Binding{keys.Quit, keys.Databases, keys.Debug, keys.Help}},
		{Title: "Lists", Bindings: []key.Binding{keys.Up, keys.Down, keys.PageUp, keys.PageDown, keys.Home, keys.End, keys.Select, keys.Refresh, keys.Back}},
		{Title: "Connection form", Bindings: []key.Binding{keys.NextField, keys.PrevField, keys.ClearLine}},
		{Title: "Tables", Bindings: []key.Binding{keys.Describe, keys.Editor, keys.DescBack}},
		{Title: "Query editor", Bindings: []key.Binding{keys.Execute, keys.RecallPrev, keys.RecallNext, keys.Clear, keys.Switch}},
		{Title: "Results", Bindings: []key.Binding{keys.Left, keys.Right, keys.CopyRow, keys.CopyAll, keys.ExportFile, keys.ResultBack}},
	}
}
