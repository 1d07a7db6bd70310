package app

import (
	"errors"
	"testing"
	"time"

	"github.com/0xataru/dfox/internal/db/dberr"
	"github.com/0xataru/dfox/internal/models"
	"github.com/0xataru/dfox/internal/runner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var namedKeys = map[string]tea.KeyType{
	"enter":     tea.KeyEnter,
	"esc":       tea.KeyEsc,
	"tab":       tea.KeyTab,
	"shift+tab": tea.KeyShiftTab,
	"up":        tea.KeyUp,
	"down":      tea.KeyDown,
	"left":      tea.KeyLeft,
	"right":     tea.KeyRight,
	"pgdown":    tea.KeyPgDown,
	"end":       tea.KeyEnd,
	"backspace": tea.KeyBackspace,
	"f1":        tea.KeyF1,
	"f5":        tea.KeyF5,
	"f12":       tea.KeyF12,
	"ctrl+a":    tea.KeyCtrlA,
	"ctrl+c":    tea.KeyCtrlC,
	"ctrl+l":    tea.KeyCtrlL,
	"ctrl+n":    tea.KeyCtrlN,
	"ctrl+p":    tea.KeyCtrlP,
	"ctrl+q":    tea.KeyCtrlQ,
	"ctrl+s":    tea.KeyCtrlS,
	"ctrl+u":    tea.KeyCtrlU,
}

func keyMsg(k string) tea.KeyMsg {
	if t, ok := namedKeys[k]; ok {
		return tea.KeyMsg{Type: t}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(s State, k string) (State, []Command) {
	return Transition(s, KeyEvent{Key: keyMsg(k)})
}

func pressAll(s State, ks ...string) State {
	for _, k := range ks {
		s, _ = press(s, k)
	}
	return s
}

func findRun(t *testing.T, cmds []Command, op Op) RunCommand {
	t.Helper()
	for _, c := range cmds {
		if run, ok := c.(RunCommand); ok && run.Op == op {
			return run
		}
	}
	t.Fatalf("no %s command in %#v", op, cmds)
	return RunCommand{}
}

func complete(s State, cmd RunCommand, value any, err error) (State, []Command) {
	return Transition(s, OutcomeEvent{Token: cmd.Token, Value: value, Err: err, Elapsed: 3 * time.Millisecond})
}

var usersSchema = &models.TableSchema{
	Table: "users",
	Columns: []models.ColumnDescriptor{
		{Name: "id", DataType: "integer", IsPrimaryKey: true},
		{Name: "email", DataType: "text"},
	},
}

// connected walks a fresh state through the form up to the table list of app_db
func connected(t *testing.T) State {
	t.Helper()

	s := NewState(DefaultSettings(), nil, nil)
	s, _ = press(s, "enter")
	require.Equal(t, ScreenConnectionInput, s.Screen)
	require.Equal(t, models.Postgres, s.Engine)

	s = pressAll(s, "postgres", "tab", "secret", "tab", "localhost", "tab", "tab")
	s, cmds := press(s, "enter")
	connect := findRun(t, cmds, OpConnect)
	assert.Equal(t, models.ConnectionParams{Host: "localhost", Port: 5432, Username: "postgres", Secret: "secret"}, connect.Params)

	info := models.ConnectionInfo{ID: "c1", Engine: models.Postgres, Label: "postgres@localhost:5432", Database: "postgres"}
	s, cmds = complete(s, connect, info, nil)
	require.Equal(t, ScreenDatabaseSelect, s.Screen)
	require.True(t, s.Connected)
	assert.Contains(t, cmds, RememberCommand{Engine: models.Postgres, Params: connect.Params})

	s, _ = complete(s, findRun(t, cmds, OpListDatabases), []models.DatabaseSummary{{Name: "app_db"}, {Name: "test_db"}}, nil)
	require.Len(t, s.Databases, 2)

	s, cmds = press(s, "enter")
	use := findRun(t, cmds, OpUseDatabase)
	require.Equal(t, "app_db", use.Arg)
	s, _ = complete(s, use, []models.TableSummary{{Name: "users", Kind: "table"}, {Name: "orders", Kind: "table"}}, nil)
	require.Equal(t, ScreenTableList, s.Screen)
	return s
}

func TestPostgresBrowseScenario(t *testing.T) {
	s := connected(t)

	assert.Equal(t, "app_db", s.Database)
	assert.Equal(t, []models.TableSummary{{Name: "users", Kind: "table"}, {Name: "orders", Kind: "table"}}, s.Tables)

	s, cmds := press(s, "enter")
	describe := findRun(t, cmds, OpDescribeTable)
	assert.Equal(t, "users", describe.Arg)

	s, _ = complete(s, describe, usersSchema, nil)
	require.Equal(t, ScreenTableDescribe, s.Screen)
	require.Len(t, s.Schema.Columns, 2)
	assert.Equal(t, "id", s.Schema.Columns[0].Name)
	assert.Equal(t, "integer", s.Schema.Columns[0].DataType)
	assert.False(t, s.Schema.Columns[0].IsNullable)
	assert.Equal(t, "email", s.Schema.Columns[1].Name)
	assert.Equal(t, "text", s.Schema.Columns[1].DataType)
	assert.False(t, s.Schema.Columns[1].IsNullable)

	s, _ = press(s, "esc")
	assert.Equal(t, ScreenTableList, s.Screen)
}

func TestQueryErrorKeepsEditorText(t *testing.T) {
	s := pressAll(connected(t), "tab", "SELECT 1/0")
	require.Equal(t, ScreenQueryEditor, s.Screen)

	s, cmds := press(s, "f5")
	exec := findRun(t, cmds, OpExecuteQuery)
	assert.Equal(t, "SELECT 1/0", exec.Arg)

	s, cmds = complete(s, exec, nil, dberr.Errorf(dberr.Other, "division by zero"))
	assert.Empty(t, cmds)
	require.NotNil(t, s.Error)
	assert.Equal(t, "Query failed", s.Error.Title)
	assert.Equal(t, "division by zero", s.Error.Message)
	assert.Equal(t, ScreenQueryEditor, s.Screen)
	assert.Equal(t, "SELECT 1/0", s.Editor.Text())
	assert.True(t, s.Connected)

	s, _ = press(s, "enter")
	assert.Nil(t, s.Error)
	assert.Equal(t, "SELECT 1/0", s.Editor.Text(), "dismissing must not type into the editor")
}

func TestStaleListTablesAfterF1IsDropped(t *testing.T) {
	s, cmds := press(connected(t), "r")
	refresh := findRun(t, cmds, OpListTables)

	s, cmds = press(s, "f1")
	assert.Equal(t, ScreenDatabaseSelect, s.Screen)
	assert.Contains(t, cmds, Command(CancelCommand{Token: refresh.Token}))
	findRun(t, cmds, OpListDatabases)

	next, cmds := complete(s, refresh, []models.TableSummary{{Name: "stale"}}, nil)
	assert.Empty(t, cmds)
	assert.Equal(t, s, next)
}

func TestOnlyLatestSubmissionPerSlotApplies(t *testing.T) {
	s, cmds := press(connected(t), "r")
	first := findRun(t, cmds, OpListTables)
	s, cmds = press(s, "r")
	second := findRun(t, cmds, OpListTables)
	require.Equal(t, first.Token.Slot, second.Token.Slot)
	require.Greater(t, second.Token.Seq, first.Token.Seq)

	s, _ = complete(s, first, []models.TableSummary{{Name: "first"}}, nil)
	assert.Equal(t, "users", s.Tables[0].Name)

	s, _ = complete(s, second, []models.TableSummary{{Name: "second"}}, nil)
	assert.Equal(t, []models.TableSummary{{Name: "second"}}, s.Tables)

	again, _ := complete(s, second, []models.TableSummary{{Name: "again"}}, nil)
	assert.Equal(t, s, again, "an outcome is applied once")
}

func TestConnectionLostReturnsToForm(t *testing.T) {
	s, cmds := press(connected(t), "enter")
	describe := findRun(t, cmds, OpDescribeTable)

	s, cmds = complete(s, describe, nil, dberr.NewQueryError(dberr.ConnectionLost, errors.New("broken pipe")))
	assert.Equal(t, ScreenConnectionInput, s.Screen)
	assert.False(t, s.Connected)
	assert.Empty(t, s.Tables)
	require.NotNil(t, s.Error)
	assert.Equal(t, "Query failed: connection lost", s.Error.Title)
	assert.Equal(t, "postgres", s.Form.Values[FieldUsername])
	assert.Equal(t, "c1", findRun(t, cmds, OpDisconnect).ConnectionID)

	s, _ = press(s, "f1")
	assert.Equal(t, ScreenConnectionInput, s.Screen, "F1 needs a live connection")
}

func TestConnectFailureKeepsParams(t *testing.T) {
	s := NewState(DefaultSettings(), map[models.EngineKind]models.ConnectionParams{
		models.Postgres: {Host: "db", Port: 6543, Username: "app"},
	}, nil)
	s = pressAll(s, "enter", "down", "pw")
	assert.Equal(t, "6543", s.Form.Values[FieldPort])

	s = pressAll(s, "tab", "tab", "tab")
	s, cmds := press(s, "enter")
	connect := findRun(t, cmds, OpConnect)
	assert.Equal(t, "pw", connect.Params.Secret)

	s, _ = press(s, "enter")
	assert.Equal(t, connect.Token, s.Pending[runner.SlotConnect].Token, "a second enter does not resubmit")

	s, _ = complete(s, connect, nil, dberr.NewConnectError(dberr.AuthRejected, errors.New("bad password")))
	assert.Equal(t, ScreenConnectionInput, s.Screen)
	assert.False(t, s.Connected)
	require.NotNil(t, s.Error)
	assert.Equal(t, "Connection failed: authentication rejected", s.Error.Title)
	assert.Equal(t, "pw", s.Form.Values[FieldPassword])
}

func TestConnectionFormValidation(t *testing.T) {
	s := pressAll(NewState(DefaultSettings(), nil, nil), "down", "down", "enter")
	require.Equal(t, models.SQLite, s.Engine)
	assert.Equal(t, []Field{FieldFile}, FormFields(s.Engine))

	s, cmds := press(s, "enter")
	assert.Empty(t, cmds)
	require.NotNil(t, s.Error)
	assert.Equal(t, "Invalid connection parameters", s.Error.Title)

	s = pressAll(s, "esc", "/tmp/app.db")
	s, cmds = press(s, "enter")
	assert.Equal(t, models.ConnectionParams{Host: "/tmp/app.db"}, findRun(t, cmds, OpConnect).Params)
}

func TestPortFieldAcceptsDigitsOnly(t *testing.T) {
	s := pressAll(NewState(DefaultSettings(), nil, nil), "enter", "shift+tab", "shift+tab", "ctrl+u", "54x", "3")
	assert.Equal(t, "3", s.Form.Values[FieldPort])
	s = pressAll(s, "backspace")
	assert.Equal(t, "", s.Form.Values[FieldPort])
}

func TestDebugOverlayToggle(t *testing.T) {
	s := connected(t)
	before := s.TableCursor

	s, _ = press(s, "f12")
	assert.True(t, s.Debug)
	s, _ = press(s, "down")
	assert.Equal(t, before, s.TableCursor, "keys are swallowed by the overlay")
	assert.Equal(t, ScreenTableList, s.Screen)

	s, _ = press(s, "f12")
	assert.False(t, s.Debug)
	s, _ = press(s, "down")
	assert.Equal(t, before+1, s.TableCursor)
}

func TestOutcomeLandsBeneathOverlay(t *testing.T) {
	s, cmds := press(connected(t), "r")
	refresh := findRun(t, cmds, OpListTables)

	s, _ = press(s, "f12")
	s, _ = complete(s, refresh, []models.TableSummary{{Name: "fresh"}}, nil)
	assert.True(t, s.Debug)
	assert.Equal(t, "fresh", s.Tables[0].Name)
}

func TestQuitCancelsPendingWork(t *testing.T) {
	s, cmds := press(connected(t), "r")
	refresh := findRun(t, cmds, OpListTables)

	s, cmds = press(s, "ctrl+q")
	require.NotEmpty(t, cmds)
	assert.Equal(t, Command(CancelCommand{Token: refresh.Token}), cmds[0])
	assert.Equal(t, Command(QuitCommand{}), cmds[len(cmds)-1])
	assert.True(t, s.Quitting)
	assert.False(t, s.Busy())

	_, cmds = press(s, "ctrl+q")
	assert.Empty(t, cmds)
}

func TestEscDisconnects(t *testing.T) {
	s := pressAll(connected(t), "esc")
	assert.Equal(t, ScreenDatabaseSelect, s.Screen)

	s, cmds := press(s, "esc")
	assert.Equal(t, ScreenConnectionInput, s.Screen)
	assert.False(t, s.Connected)
	assert.Equal(t, "c1", findRun(t, cmds, OpDisconnect).ConnectionID)
}

func TestDatabaseCursorFollowsCurrentDatabase(t *testing.T) {
	s, cmds := press(connected(t), "f1")
	s, _ = complete(s, findRun(t, cmds, OpListDatabases), []models.DatabaseSummary{{Name: "a"}, {Name: "app_db"}, {Name: "z"}}, nil)
	assert.Equal(t, 1, s.DatabaseCursor)

	s = pressAll(s, "end")
	assert.Equal(t, 2, s.DatabaseCursor)
	s = pressAll(s, "pgdown")
	assert.Equal(t, 2, s.DatabaseCursor)
}

func TestQueryRecall(t *testing.T) {
	s := pressAll(connected(t), "tab")
	for _, sql := range []string{"SELECT 1", "SELECT 2", "SELECT 1"} {
		s = pressAll(s, "ctrl+l", sql)
		var cmds []Command
		s, cmds = press(s, "f5")
		s, _ = complete(s, findRun(t, cmds, OpExecuteQuery), &models.QueryResult{SQL: sql, Message: "ok"}, nil)
		s = pressAll(s, "esc")
		require.Equal(t, ScreenQueryEditor, s.Screen)
	}
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, s.Recall)

	s = pressAll(s, "ctrl+l", "draft", "ctrl+p")
	assert.Equal(t, "SELECT 1", s.Editor.Text())
	s = pressAll(s, "ctrl+p", "ctrl+p")
	assert.Equal(t, "SELECT 2", s.Editor.Text())
	s = pressAll(s, "ctrl+n", "ctrl+n")
	assert.Equal(t, "draft", s.Editor.Text())
}

func TestBlankQueryIsNotExecuted(t *testing.T) {
	s := pressAll(connected(t), "tab", "   ")
	s, cmds := press(s, "f5")
	assert.Empty(t, cmds)
	assert.Equal(t, "Nothing to execute", s.Status)
}

func TestResultNavigationAndCopy(t *testing.T) {
	s, cmds := press(pressAll(connected(t), "tab", "SELECT *"), "f5")
	cols := []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9", "c10"}
	rows := [][]string{
		{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"},
		{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"},
	}
	s, _ = complete(s, findRun(t, cmds, OpExecuteQuery), &models.QueryResult{Columns: cols, Rows: rows, RowCount: 2}, nil)
	require.Equal(t, ScreenQueryResult, s.Screen)
	assert.Equal(t, "2 rows in 3ms", s.Status)

	s = pressAll(s, "right", "right", "right")
	assert.Equal(t, 2, s.ColOffset)
	s = pressAll(s, "left", "left", "left")
	assert.Equal(t, 0, s.ColOffset)

	s, cmds = press(s, "down")
	assert.Empty(t, cmds)
	_, cmds = press(s, "ctrl+c")
	require.Len(t, cmds, 1)
	copyRow := cmds[0].(CopyCommand)
	assert.Equal(t, []string{"c1\tc2\tc3\tc4\tc5\tc6\tc7\tc8\tc9\tc10", "a\tb\tc\td\te\tf\tg\th\ti\tj"}, copyRow.Lines)

	_, cmds = press(s, "ctrl+a")
	require.Len(t, cmds, 1)
	assert.Len(t, cmds[0].(CopyCommand).Lines, 3)

	_, cmds = press(s, "ctrl+s")
	assert.Equal(t, []Command{ExportCommand{Result: s.Result}}, cmds)

	s = pressAll(s, "e")
	assert.Equal(t, ScreenQueryEditor, s.Screen)
	s = pressAll(s, "tab")
	assert.Equal(t, ScreenQueryResult, s.Screen)
	assert.Equal(t, 1, s.ResultCursor, "the result keeps its cursor")
}

func TestLeavingEditorCancelsQuery(t *testing.T) {
	s, cmds := press(pressAll(connected(t), "tab", "SELECT pg_sleep(10)"), "f5")
	exec := findRun(t, cmds, OpExecuteQuery)

	s, cmds = press(s, "esc")
	assert.Equal(t, ScreenTableList, s.Screen)
	assert.Equal(t, []Command{CancelCommand{Token: exec.Token}}, cmds)

	next, _ := complete(s, exec, &models.QueryResult{}, nil)
	assert.Equal(t, s, next)
}

func TestHelpOverlay(t *testing.T) {
	s := pressAll(NewState(DefaultSettings(), nil, nil), "?")
	assert.True(t, s.Help)
	s = pressAll(s, "down")
	assert.Equal(t, 0, s.EngineCursor)
	s = pressAll(s, "?")
	assert.False(t, s.Help)
}

func TestEffectEvents(t *testing.T) {
	s, _ := Transition(NewState(DefaultSettings(), nil, nil), EffectEvent{Status: "Copied row to clipboard"})
	assert.Equal(t, "Copied row to clipboard", s.Status)
	assert.Nil(t, s.Error)

	s, _ = Transition(s, EffectEvent{Err: errors.New("no clipboard utility")})
	require.NotNil(t, s.Error)
	assert.Equal(t, "no clipboard utility", s.Error.Message)
}

func TestFormParams(t *testing.T) {
	f := FormFromParams(models.MySQL, models.ConnectionParams{Host: "db", Username: "root"})
	assert.Equal(t, "3306", f.Values[FieldPort])

	p, err := f.Params(models.MySQL)
	require.NoError(t, err)
	assert.Equal(t, 3306, p.Port)

	f.Values[FieldPort] = "70000"
	_, err = f.Params(models.MySQL)
	assert.Error(t, err)

	f.Values[FieldPort] = ""
	p, err = f.Params(models.MySQL)
	require.NoError(t, err)
	assert.Equal(t, 3306, p.Port)
}

func TestOpSlots(t *testing.T) {
	assert.Equal(t, runner.SlotConnect, OpConnect.Slot())
	assert.Equal(t, runner.SlotConnect, OpDisconnect.Slot())
	assert.Equal(t, runner.SlotQuery, OpExecuteQuery.Slot())
	for _, op := range []Op{OpListDatabases, OpUseDatabase, OpListTables, OpDescribeTable} {
		assert.Equal(t, runner.SlotList, op.Slot(), op.String())
	}
}
