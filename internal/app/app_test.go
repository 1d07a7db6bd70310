package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/0xataru/dfox/internal/db/client/clienttest"
	"github.com/0xataru/dfox/internal/db/connection"
	"github.com/0xataru/dfox/internal/debuglog"
	"github.com/0xataru/dfox/internal/history"
	"github.com/0xataru/dfox/internal/models"
	"github.com/0xataru/dfox/internal/runner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryClipboard struct {
	text string
}

func (c *memoryClipboard) WriteAll(text string) error {
	c.text = text
	return nil
}

type harness struct {
	t       *testing.T
	model   *Model
	runner  *runner.Runner
	session *connection.Session
	fake    *clienttest.Fake
	debug   *debuglog.Log
	cb      *memoryClipboard
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	fake := clienttest.NewFake(models.Postgres, "app_db", "test_db")
	fake.Tables["app_db"] = []string{"users", "orders"}
	fake.Tables["test_db"] = []string{"fixtures"}
	fake.Schemas["users"] = usersSchema

	h := &harness{
		t:       t,
		fake:    fake,
		session: connection.NewSession(connection.WithDialer(fake.Dialer("secret"))),
		runner:  runner.New(),
		debug:   debuglog.New(nil, 50),
		cb:      &memoryClipboard{},
	}
	t.Cleanup(h.runner.Close)

	opts = append([]Option{
		WithRunner(h.runner),
		WithDebugLog(h.debug),
		WithClipboard(h.cb),
		WithPrefill(map[models.EngineKind]models.ConnectionParams{
			models.Postgres: {Host: "localhost", Port: 5432, Username: "postgres", Secret: "secret"},
		}),
	}, opts...)
	h.model = New(h.session, opts...)
	return h
}

// press feeds keys and returns the tea.Cmd of the last one
func (h *harness) press(keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = h.model.Update(keyMsg(k))
	}
	return cmd
}

// await applies the next runner outcome
func (h *harness) await() {
	h.t.Helper()
	select {
	case out, ok := <-h.runner.Outcomes():
		require.True(h.t, ok, "runner closed")
		h.model.Update(outcomeMsg(out))
	case <-time.After(5 * time.Second):
		h.t.Fatal("timed out waiting for an outcome")
	}
}

// run executes cmd and feeds the resulting messages back into the model
func (h *harness) run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, h.run(c)...)
		}
		return out
	}
	if msg != nil {
		h.model.Update(msg)
	}
	return []tea.Msg{msg}
}

func (h *harness) connect() {
	h.t.Helper()
	h.press("enter", "enter", "enter", "enter", "enter", "enter")
	h.await() // connect
	h.await() // list_databases
	require.Equal(h.t, ScreenDatabaseSelect, h.model.State().Screen)
}

func TestModelBrowsesAndQueries(t *testing.T) {
	h := newHarness(t)
	h.fake.Results["SELECT 1"] = &models.QueryResult{
		SQL:      "SELECT 1",
		Columns:  []string{"?column?"},
		Rows:     [][]string{{"1"}},
		RowCount: 1,
	}

	h.connect()
	names := []string{}
	for _, db := range h.model.State().Databases {
		names = append(names, db.Name)
	}
	assert.Equal(t, []string{"app_db", "test_db"}, names)

	h.press("enter")
	h.await()
	st := h.model.State()
	require.Equal(t, ScreenTableList, st.Screen)
	assert.Equal(t, "app_db", st.Database)
	require.Len(t, st.Tables, 2)
	assert.Equal(t, "users", st.Tables[0].Name)
	assert.Equal(t, "orders", st.Tables[1].Name)

	h.press("enter")
	h.await()
	st = h.model.State()
	require.Equal(t, ScreenTableDescribe, st.Screen)
	assert.Equal(t, "id", st.Schema.Columns[0].Name)
	assert.Equal(t, "email", st.Schema.Columns[1].Name)

	h.press("tab", "SELECT 1", "f5")
	h.await()
	st = h.model.State()
	require.Equal(t, ScreenQueryResult, st.Screen)
	assert.Equal(t, [][]string{{"1"}}, st.Result.Rows)

	h.run(h.press("ctrl+c"))
	assert.Equal(t, "?column?\n1", h.cb.text)
	assert.Equal(t, "Copied row to clipboard", h.model.State().Status)

	var kinds []debuglog.Kind
	for _, ev := range h.debug.Events() {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []debuglog.Kind{debuglog.KindConnect, debuglog.KindQuery}, kinds)

	h.run(h.press("ctrl+q"))
	assert.True(t, h.model.State().Quitting)
	assert.False(t, h.session.IsConnected())
	assert.Equal(t, 1, h.fake.CloseCalls())
}

func TestModelWrongPasswordStaysDisconnected(t *testing.T) {
	h := newHarness(t)
	h.press("enter", "down", "ctrl+u", "nope", "tab", "tab", "tab", "enter")
	h.await()

	st := h.model.State()
	assert.Equal(t, ScreenConnectionInput, st.Screen)
	require.NotNil(t, st.Error)
	assert.Contains(t, st.Error.Title, "authentication rejected")
	assert.False(t, h.session.IsConnected())

	events := h.debug.Events()
	require.Len(t, events, 1)
	assert.Equal(t, debuglog.KindError, events[0].Kind)
}

func TestModelDropsSupersededTableList(t *testing.T) {
	h := newHarness(t)
	h.connect()

	block := make(chan struct{})
	h.fake.Block = block
	t.Cleanup(func() { close(block) })

	h.press("enter") // use_database blocks in ListTables
	h.press("f1")
	h.await()

	st := h.model.State()
	assert.Equal(t, ScreenDatabaseSelect, st.Screen)
	assert.Empty(t, st.Tables)
	assert.False(t, st.Busy())
	assert.Len(t, st.Databases, 2)
}

func TestModelConnectionLost(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.press("enter")
	h.await()

	// the server went away under the session
	require.NoError(t, h.fake.Close())
	h.press("r")
	h.await()

	st := h.model.State()
	assert.Equal(t, ScreenConnectionInput, st.Screen)
	assert.False(t, st.Connected)
	require.NotNil(t, st.Error)

	h.await() // disconnect
	assert.False(t, h.session.IsConnected())
}

func TestModelRecordsQueryHistory(t *testing.T) {
	store, err := history.Open(":memory:", 100)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Add(context.Background(), history.Entry{
		Engine: "postgres", Query: "SELECT 42", ExecutedAt: time.Now().Add(-time.Hour), Success: true,
	}))

	h := newHarness(t, WithHistory(store, false))
	assert.Equal(t, []string{"SELECT 42"}, h.model.State().Recall)

	h.connect()
	h.press("enter")
	h.await()
	h.press("tab", "SELECT now()", "f5")
	h.await()

	entries, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "SELECT now()", entries[0].Query)
	assert.Equal(t, "app_db", entries[0].DatabaseName)
	assert.True(t, entries[0].Success)
	assert.Equal(t, []string{"SELECT now()", "SELECT 42"}, h.model.State().Recall)
}

func TestModelExportsResult(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, WithExport(dir, "json"), WithClock(func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}))
	h.fake.Results["SELECT 1"] = &models.QueryResult{Columns: []string{"n"}, Rows: [][]string{{"1"}}, RowCount: 1}

	h.connect()
	h.press("enter")
	h.await()
	h.press("tab", "SELECT 1", "f5")
	h.await()

	h.run(h.press("ctrl+s"))
	status := h.model.State().Status
	assert.True(t, strings.HasPrefix(status, "Exported to "), status)
	assert.True(t, strings.HasSuffix(status, "dfox-result-20240501-120000.json"), status)
}

func TestModelView(t *testing.T) {
	h := newHarness(t)
	h.model.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	assert.Contains(t, h.model.View(), "PostgreSQL")

	h.connect()
	view := h.model.View()
	assert.Contains(t, view, "app_db")
	assert.Contains(t, view, "postgres@localhost:5432")

	h.press("f12")
	assert.Contains(t, h.model.View(), "connected")
}
