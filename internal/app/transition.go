package app

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/0xataru/dfox/internal/db/dberr"
	"github.com/0xataru/dfox/internal/export"
	"github.com/0xataru/dfox/internal/models"
	"github.com/0xataru/dfox/internal/runner"
	"github.com/0xataru/dfox/internal/ui/components"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Transition applies ev to s and returns the next state together with the
// effects to run. It never blocks and never touches the database.
func Transition(s State, ev Event) (State, []Command) {
	switch ev := ev.(type) {
	case ResizeEvent:
		s.Width, s.Height = ev.Width, ev.Height
		return s, nil
	case KeyEvent:
		return handleKey(s, ev.Key)
	case OutcomeEvent:
		return handleOutcome(s, ev)
	case EffectEvent:
		if ev.Err != nil {
			s.Error = &ErrorInfo{Title: dberr.Title(ev.Err), Message: ev.Err.Error()}
			return s, nil
		}
		s.Status, s.StatusIsError = ev.Status, false
		return s, nil
	}
	return s, nil
}

// submit marks op as the pending work of its slot and returns the command
// that starts it. A previous submission on the same slot becomes stale.
func submit(s State, cmd RunCommand) (State, Command) {
	s.Seq++
	cmd.Token = runner.Token{Slot: cmd.Op.Slot(), Seq: s.Seq}
	s.Pending[cmd.Token.Slot] = Pending{Token: cmd.Token, Op: cmd.Op, Arg: cmd.Arg}
	return s, cmd
}

// cancel drops the pending work of the given slots
func cancel(s State, slots ...runner.Slot) (State, []Command) {
	var cmds []Command
	for _, slot := range slots {
		if p := s.Pending[slot]; !p.Token.IsZero() {
			cmds = append(cmds, CancelCommand{Token: p.Token})
			s.Pending[slot] = Pending{}
		}
	}
	return s, cmds
}

func quit(s State) (State, []Command) {
	s, cmds := cancel(s, runner.Slots()...)
	s.Quitting = true
	s.Connected = false
	return s, append(cmds, QuitCommand{})
}

func handleKey(s State, k tea.KeyMsg) (State, []Command) {
	if s.Quitting {
		return s, nil
	}

	switch {
	case key.Matches(k, keys.Quit):
		return quit(s)
	case key.Matches(k, keys.Debug):
		s.Debug = !s.Debug
		return s, nil
	case key.Matches(k, keys.Databases):
		if !s.Connected {
			return s, nil
		}
		return openDatabases(s)
	}

	if s.Debug {
		if key.Matches(k, keys.Close) {
			s.Debug = false
		}
		return s, nil
	}
	if s.Error != nil {
		if key.Matches(k, keys.Dismiss) {
			s.Error = nil
		}
		return s, nil
	}
	if s.Help {
		if key.Matches(k, keys.Back, keys.Help) {
			s.Help = false
		}
		return s, nil
	}

	switch s.Screen {
	case ScreenEngineSelect:
		return engineSelectKey(s, k)
	case ScreenConnectionInput:
		return connectionInputKey(s, k)
	case ScreenDatabaseSelect:
		return databaseSelectKey(s, k)
	case ScreenTableList:
		return tableListKey(s, k)
	case ScreenTableDescribe:
		return tableDescribeKey(s, k)
	case ScreenQueryEditor:
		return queryEditorKey(s, k)
	case ScreenQueryResult:
		return queryResultKey(s, k)
	}
	return s, nil
}

// openDatabases returns to the database list on the live connection
func openDatabases(s State) (State, []Command) {
	s.Error = nil
	s.Help = false
	s, cmds := cancel(s, runner.SlotList, runner.SlotQuery)
	s, cmd := submit(s, RunCommand{Op: OpListDatabases})
	s.Screen = ScreenDatabaseSelect
	return s, append(cmds, cmd)
}

// moveCursor applies a list movement key
func moveCursor(k tea.KeyMsg, cursor, total, page int) (int, bool) {
	switch {
	case key.Matches(k, keys.Up):
		cursor--
	case key.Matches(k, keys.Down):
		cursor++
	case key.Matches(k, keys.PageUp):
		cursor -= page
	case key.Matches(k, keys.PageDown):
		cursor += page
	case key.Matches(k, keys.Home):
		cursor = 0
	case key.Matches(k, keys.End):
		cursor = total - 1
	default:
		return cursor, false
	}
	return clamp(cursor, total), true
}

func clamp(cursor, total int) int {
	if cursor >= total {
		cursor = total - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}

func engineSelectKey(s State, k tea.KeyMsg) (State, []Command) {
	engines := models.Engines()
	if c, ok := moveCursor(k, s.EngineCursor, len(engines), s.Settings.PageSize); ok {
		s.EngineCursor = c
		return s, nil
	}

	switch {
	case key.Matches(k, keys.Select):
		s.Engine = engines[s.EngineCursor]
		s.Form = FormFromParams(s.Engine, s.Prefill[s.Engine])
		s.Screen = ScreenConnectionInput
		s.Status = ""
	case key.Matches(k, keys.QuitScreen):
		return quit(s)
	case key.Matches(k, keys.Help):
		s.Help = true
	}
	return s, nil
}

func connectionInputKey(s State, k tea.KeyMsg) (State, []Command) {
	fields := FormFields(s.Engine)
	focus := clamp(s.Form.Focus, len(fields))
	field := fields[focus]

	switch {
	case key.Matches(k, keys.Back):
		s, cmds := cancel(s, runner.SlotConnect)
		s.Screen = ScreenEngineSelect
		s.Status = ""
		return s, cmds
	case key.Matches(k, keys.NextField):
		s.Form.Focus = (focus + 1) % len(fields)
		return s, nil
	case key.Matches(k, keys.PrevField):
		s.Form.Focus = (focus + len(fields) - 1) % len(fields)
		return s, nil
	case key.Matches(k, keys.Select):
		if focus < len(fields)-1 {
			s.Form.Focus = focus + 1
			return s, nil
		}
		return connect(s)
	case key.Matches(k, keys.ClearLine):
		s.Form.Values[field] = ""
		return s, nil
	}

	switch k.Type {
	case tea.KeyBackspace:
		if r := []rune(s.Form.Values[field]); len(r) > 0 {
			s.Form.Values[field] = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		text := string(k.Runes)
		if field == FieldPort && strings.IndexFunc(text, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			return s, nil
		}
		s.Form.Values[field] += text
	}
	return s, nil
}

func connect(s State) (State, []Command) {
	if s.PendingOp(runner.SlotConnect) == OpConnect {
		return s, nil
	}
	params, err := s.Form.Params(s.Engine)
	if err != nil {
		s.Error = &ErrorInfo{Title: "Invalid connection parameters", Message: err.Error()}
		return s, nil
	}
	s, cmd := submit(s, RunCommand{Op: OpConnect, Engine: s.Engine, Params: params})
	s.Status, s.StatusIsError = fmt.Sprintf("Connecting to %s...", params.Label(s.Engine)), false
	return s, []Command{cmd}
}

// disconnect drops the live connection and returns to the form
func disconnect(s State) (State, []Command) {
	s, cmds := cancel(s, runner.Slots()...)
	s, cmd := submit(s, RunCommand{Op: OpDisconnect, ConnectionID: s.Connection.ID})
	s = resetConnection(s)
	s.Screen = ScreenConnectionInput
	return s, append(cmds, cmd)
}

func resetConnection(s State) State {
	s.Connected = false
	s.Connection = models.ConnectionInfo{}
	s.Databases, s.DatabaseCursor, s.Database = nil, 0, ""
	s.Tables, s.TableCursor = nil, 0
	s.Schema, s.SchemaCursor = nil, 0
	s.Result, s.ResultCursor, s.ColOffset = nil, 0, 0
	s.Status = ""
	return s
}

func databaseSelectKey(s State, k tea.KeyMsg) (State, []Command) {
	if c, ok := moveCursor(k, s.DatabaseCursor, len(s.Databases), s.Settings.PageSize); ok {
		s.DatabaseCursor = c
		return s, nil
	}

	switch {
	case key.Matches(k, keys.Select):
		if len(s.Databases) == 0 {
			return s, nil
		}
		name := s.Databases[s.DatabaseCursor].Name
		s, cmd := submit(s, RunCommand{Op: OpUseDatabase, Arg: name})
		s.Status, s.StatusIsError = fmt.Sprintf("Opening %s...", name), false
		return s, []Command{cmd}
	case key.Matches(k, keys.Refresh):
		s, cmd := submit(s, RunCommand{Op: OpListDatabases})
		return s, []Command{cmd}
	case key.Matches(k, keys.Back):
		return disconnect(s)
	case key.Matches(k, keys.Help):
		s.Help = true
	}
	return s, nil
}

func tableListKey(s State, k tea.KeyMsg) (State, []Command) {
	if c, ok := moveCursor(k, s.TableCursor, len(s.Tables), s.Settings.PageSize); ok {
		s.TableCursor = c
		return s, nil
	}

	switch {
	case key.Matches(k, keys.Describe):
		if len(s.Tables) == 0 {
			return s, nil
		}
		s, cmd := submit(s, RunCommand{Op: OpDescribeTable, Arg: s.Tables[s.TableCursor].QualifiedName()})
		return s, []Command{cmd}
	case key.Matches(k, keys.Editor):
		s, cmds := cancel(s, runner.SlotList)
		s.Screen = ScreenQueryEditor
		return s, cmds
	case key.Matches(k, keys.Refresh):
		s, cmd := submit(s, RunCommand{Op: OpListTables})
		return s, []Command{cmd}
	case key.Matches(k, keys.Back):
		s, cmds := cancel(s, runner.SlotList)
		s.Screen = ScreenDatabaseSelect
		return s, cmds
	case key.Matches(k, keys.Help):
		s.Help = true
	}
	return s, nil
}

func tableDescribeKey(s State, k tea.KeyMsg) (State, []Command) {
	total := 0
	if s.Schema != nil {
		total = len(s.Schema.Columns)
	}
	if c, ok := moveCursor(k, s.SchemaCursor, total, s.Settings.PageSize); ok {
		s.SchemaCursor = c
		return s, nil
	}

	switch {
	case key.Matches(k, keys.Switch):
		s.Screen = ScreenQueryEditor
	case key.Matches(k, keys.DescBack):
		s.Screen = ScreenTableList
	case key.Matches(k, keys.Help):
		s.Help = true
	}
	return s, nil
}

func queryEditorKey(s State, k tea.KeyMsg) (State, []Command) {
	switch {
	case key.Matches(k, keys.Execute):
		return execute(s)
	case key.Matches(k, keys.RecallPrev):
		return recall(s, 1), nil
	case key.Matches(k, keys.RecallNext):
		return recall(s, -1), nil
	case key.Matches(k, keys.Clear):
		s.Editor = components.EditorBuffer{}
		s.RecallIndex = -1
		return s, nil
	case key.Matches(k, keys.Switch):
		if s.Result != nil {
			s.Screen = ScreenQueryResult
			return s, nil
		}
		s, cmds := cancel(s, runner.SlotQuery)
		s.Screen = ScreenTableList
		return s, cmds
	case key.Matches(k, keys.Back):
		s, cmds := cancel(s, runner.SlotQuery)
		s.Screen = ScreenTableList
		return s, cmds
	}

	before := s.Editor
	switch k.Type {
	case tea.KeyUp:
		s.Editor = s.Editor.Up()
	case tea.KeyDown:
		s.Editor = s.Editor.Down()
	case tea.KeyLeft:
		s.Editor = s.Editor.Left()
	case tea.KeyRight:
		s.Editor = s.Editor.Right()
	case tea.KeyHome:
		s.Editor = s.Editor.Home()
	case tea.KeyEnd:
		s.Editor = s.Editor.End()
	case tea.KeyEnter:
		s.Editor = s.Editor.Newline()
	case tea.KeyBackspace:
		s.Editor = s.Editor.Backspace()
	case tea.KeyDelete:
		s.Editor = s.Editor.Delete()
	case tea.KeyRunes, tea.KeySpace:
		s.Editor = s.Editor.Insert(k.Runes)
	default:
		return s, nil
	}
	if s.Editor.Text() != before.Text() {
		s.RecallIndex = -1
	}
	return s, nil
}

func execute(s State) (State, []Command) {
	if s.Editor.IsBlank() {
		s.Status, s.StatusIsError = "Nothing to execute", false
		return s, nil
	}
	sql := strings.TrimSpace(s.Editor.Text())
	s, cmd := submit(s, RunCommand{Op: OpExecuteQuery, Arg: sql})
	s.Status, s.StatusIsError = "Executing...", false
	return s, []Command{cmd}
}

// recall walks the executed query list; step 1 goes back in time
func recall(s State, step int) State {
	idx := s.RecallIndex + step
	if idx >= len(s.Recall) || idx < -1 || len(s.Recall) == 0 {
		return s
	}
	if s.RecallIndex == -1 {
		s.Draft = s.Editor.Text()
	}
	s.RecallIndex = idx
	if idx == -1 {
		s.Editor = components.NewEditorBuffer(s.Draft)
	} else {
		s.Editor = components.NewEditorBuffer(s.Recall[idx])
	}
	return s
}

func queryResultKey(s State, k tea.KeyMsg) (State, []Command) {
	if s.Result == nil {
		s.Screen = ScreenQueryEditor
		return s, nil
	}
	if c, ok := moveCursor(k, s.ResultCursor, len(s.Result.Rows), s.Settings.PageSize); ok {
		s.ResultCursor = c
		return s, nil
	}

	maxOffset := max(0, len(s.Result.Columns)-s.Settings.VisibleColumns)
	switch {
	case key.Matches(k, keys.Left):
		s.ColOffset = max(0, s.ColOffset-1)
	case key.Matches(k, keys.Right):
		s.ColOffset = min(maxOffset, s.ColOffset+1)
	case key.Matches(k, keys.CopyRow):
		if len(s.Result.Rows) == 0 {
			s.Status, s.StatusIsError = "Nothing to copy", false
			return s, nil
		}
		row := s.Result.Rows[clamp(s.ResultCursor, len(s.Result.Rows))]
		return s, []Command{CopyCommand{
			Lines: export.RowLines(s.Result.Columns, row, s.Settings.CopyDelimiter),
			What:  "row",
		}}
	case key.Matches(k, keys.CopyAll):
		if !s.Result.HasRows() {
			s.Status, s.StatusIsError = "Nothing to copy", false
			return s, nil
		}
		return s, []Command{CopyCommand{
			Lines: export.ResultLines(s.Result, s.Settings.CopyDelimiter),
			What:  fmt.Sprintf("%d rows", len(s.Result.Rows)),
		}}
	case key.Matches(k, keys.ExportFile):
		if !s.Result.HasRows() {
			s.Status, s.StatusIsError = "Nothing to export", false
			return s, nil
		}
		return s, []Command{ExportCommand{Result: s.Result}}
	case key.Matches(k, keys.ResultBack):
		s.Screen = ScreenQueryEditor
	case key.Matches(k, keys.Switch):
		s.Screen = ScreenTableList
	case key.Matches(k, keys.Help):
		s.Help = true
	}
	return s, nil
}

func handleOutcome(s State, ev OutcomeEvent) (State, []Command) {
	slot := ev.Token.Slot
	if slot < 0 || slot >= runner.NumSlots || ev.Token.IsZero() || s.Pending[slot].Token != ev.Token {
		return s, nil
	}
	p := s.Pending[slot]
	s.Pending[slot] = Pending{}

	if ev.Err != nil {
		return failed(s, p, ev.Err)
	}

	switch p.Op {
	case OpConnect:
		info, _ := ev.Value.(models.ConnectionInfo)
		s.Connected = true
		s.Connection = info
		s.Database = info.Database
		s.Databases, s.DatabaseCursor = nil, 0
		s.Screen = ScreenDatabaseSelect
		s.Status, s.StatusIsError = fmt.Sprintf("Connected to %s", info.Label), false

		var cmds []Command
		if params, err := s.Form.Params(s.Engine); err == nil {
			cmds = append(cmds, RememberCommand{Engine: s.Engine, Params: params})
		}
		s, cmd := submit(s, RunCommand{Op: OpListDatabases})
		return s, append(cmds, cmd)

	case OpListDatabases:
		dbs, _ := ev.Value.([]models.DatabaseSummary)
		s.Databases = dbs
		s.DatabaseCursor = clamp(s.DatabaseCursor, len(dbs))
		for i, db := range dbs {
			if db.Name == s.Database {
				s.DatabaseCursor = i
				break
			}
		}

	case OpUseDatabase:
		tables, _ := ev.Value.([]models.TableSummary)
		s.Database = p.Arg
		s.Connection.Database = p.Arg
		s.Tables, s.TableCursor = tables, 0
		s.Schema, s.SchemaCursor = nil, 0
		s.Screen = ScreenTableList
		s.Status, s.StatusIsError = fmt.Sprintf("%d tables in %s", len(tables), p.Arg), false

	case OpListTables:
		tables, _ := ev.Value.([]models.TableSummary)
		s.Tables = tables
		s.TableCursor = clamp(s.TableCursor, len(tables))

	case OpDescribeTable:
		schema, _ := ev.Value.(*models.TableSchema)
		s.Schema, s.SchemaCursor = schema, 0
		s.Screen = ScreenTableDescribe

	case OpExecuteQuery:
		result, _ := ev.Value.(*models.QueryResult)
		s.Result = result
		s.ResultCursor, s.ColOffset = 0, 0
		s.Screen = ScreenQueryResult
		s.Recall = remember(s.Recall, p.Arg)
		s.RecallIndex = -1
		s.Status, s.StatusIsError = resultStatus(result, ev.Elapsed), false
	}
	return s, nil
}

// failed routes an error to the overlay. A lost connection sends the user
// back to the form with the params kept.
func failed(s State, p Pending, err error) (State, []Command) {
	s.Error = &ErrorInfo{Title: dberr.Title(err), Message: err.Error()}
	s.Status, s.StatusIsError = p.Op.String()+" failed", true

	if p.Op != OpConnect && p.Op != OpDisconnect && dberr.IsConnectionLost(err) {
		s, cmds := disconnect(s)
		s.Status, s.StatusIsError = "Connection lost", true
		return s, cmds
	}
	return s, nil
}

// remember puts sql first in the recall list without duplicates
func remember(recall []string, sql string) []string {
	out := make([]string, 0, len(recall)+1)
	out = append(out, sql)
	for _, q := range recall {
		if q != sql {
			out = append(out, q)
		}
	}
	return out
}

func resultStatus(r *models.QueryResult, elapsed time.Duration) string {
	if r == nil {
		return ""
	}
	took := elapsed.Round(time.Millisecond)
	if r.HasRows() {
		status := fmt.Sprintf("%d rows in %s", len(r.Rows), took)
		if r.Truncated {
			status += " (truncated)"
		}
		return status
	}
	if r.Message != "" {
		return fmt.Sprintf("%s in %s", r.Message, took)
	}
	return fmt.Sprintf("%d rows affected in %s", r.RowsAffected, took)
}
