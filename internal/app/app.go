package app

import (
	"context"
	"fmt"
	"time"

	"github.com/0xataru/dfox/internal/connection_history"
	"github.com/0xataru/dfox/internal/db/connection"
	"github.com/0xataru/dfox/internal/debuglog"
	"github.com/0xataru/dfox/internal/export"
	"github.com/0xataru/dfox/internal/history"
	"github.com/0xataru/dfox/internal/logx"
	"github.com/0xataru/dfox/internal/models"
	"github.com/0xataru/dfox/internal/runner"
	"github.com/0xataru/dfox/internal/ui/theme"
	tea "github.com/charmbracelet/bubbletea"
	"pkt.systems/pslog"
)

// recallSize is how many past queries are loaded for ctrl+p
const recallSize = 100

// Model is the Bubble Tea model. It owns the state value and turns the
// commands Transition returns into runner jobs and tea.Cmds.
type Model struct {
	state State

	session *connection.Session
	runner  *runner.Runner
	debug   *debuglog.Log

	history     *history.Store
	saveFailed  bool
	connections *connection_history.Manager

	clipboard    export.Clipboard
	exportDir    string
	exportFormat export.Format

	settings Settings
	prefill  map[models.EngineKind]models.ConnectionParams
	theme    theme.Theme
	logger   pslog.Logger
	now      func() time.Time
}

// outcomeMsg carries a runner outcome into the update loop
type outcomeMsg runner.Outcome

// effectMsg reports a clipboard or export result
type effectMsg struct {
	status string
	err    error
}

// Option configures a Model
type Option func(*Model)

// WithRunner sets the runner; the model closes it on quit
func WithRunner(r *runner.Runner) Option {
	return func(m *Model) {
		m.runner = r
	}
}

// WithDebugLog sets the debug event sink shown by F12
func WithDebugLog(l *debuglog.Log) Option {
	return func(m *Model) {
		m.debug = l
	}
}

// WithHistory records executed queries in store
func WithHistory(store *history.Store, saveFailed bool) Option {
	return func(m *Model) {
		m.history = store
		m.saveFailed = saveFailed
	}
}

// WithConnectionHistory remembers successful connections
func WithConnectionHistory(mgr *connection_history.Manager) Option {
	return func(m *Model) {
		m.connections = mgr
	}
}

// WithClipboard replaces the system clipboard
func WithClipboard(cb export.Clipboard) Option {
	return func(m *Model) {
		m.clipboard = cb
	}
}

// WithExport sets where ctrl+s writes results
func WithExport(dir string, format export.Format) Option {
	return func(m *Model) {
		m.exportDir = dir
		m.exportFormat = format
	}
}

// WithSettings sets paging and copy settings
func WithSettings(s Settings) Option {
	return func(m *Model) {
		m.settings = s
	}
}

// WithPrefill sets the connection form defaults per engine
func WithPrefill(p map[models.EngineKind]models.ConnectionParams) Option {
	return func(m *Model) {
		m.prefill = p
	}
}

// WithTheme sets the color theme
func WithTheme(th theme.Theme) Option {
	return func(m *Model) {
		m.theme = th
	}
}

// WithLogger sets the model logger
func WithLogger(log pslog.Logger) Option {
	return func(m *Model) {
		m.logger = log
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		m.now = now
	}
}

// New creates the model on the engine selection screen
func New(session *connection.Session, opts ...Option) *Model {
	m := &Model{
		session:      session,
		clipboard:    export.SystemClipboard{},
		exportDir:    ".",
		exportFormat: export.FormatCSV,
		settings:     DefaultSettings(),
		theme:        theme.DefaultTheme(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logx.Or(m.logger)
	if m.runner == nil {
		m.runner = runner.New(runner.WithLogger(m.logger))
	}
	if m.debug == nil {
		m.debug = debuglog.New(m.logger, debuglog.DefaultCapacity)
	}

	var recall []string
	if m.history != nil {
		queries, err := m.history.Queries(context.Background(), recallSize)
		if err != nil {
			m.logger.Warn("load query history failed", "error", err)
		}
		recall = queries
	}

	m.state = NewState(m.settings, m.prefill, recall)
	return m
}

// State returns the current state value
func (m *Model) State() State {
	return m.state
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return m.waitForOutcome()
}

// waitForOutcome blocks on the runner until the next outcome
func (m *Model) waitForOutcome() tea.Cmd {
	outcomes := m.runner.Outcomes()
	return func() tea.Msg {
		out, ok := <-outcomes
		if !ok {
			return nil
		}
		return outcomeMsg(out)
	}
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.apply(KeyEvent{Key: msg})
	case tea.WindowSizeMsg:
		return m, m.apply(ResizeEvent{Width: msg.Width, Height: msg.Height})
	case outcomeMsg:
		cmd := m.apply(OutcomeEvent{Token: msg.Token, Value: msg.Value, Err: msg.Err, Elapsed: msg.Elapsed})
		if m.state.Quitting {
			return m, cmd
		}
		return m, tea.Batch(cmd, m.waitForOutcome())
	case effectMsg:
		return m, m.apply(EffectEvent{Status: msg.status, Err: msg.err})
	}
	return m, nil
}

// View implements tea.Model
func (m *Model) View() string {
	var events []debuglog.Event
	if m.state.Debug {
		events = m.debug.Events()
	}
	return View(m.state, m.theme, events)
}

func (m *Model) apply(ev Event) tea.Cmd {
	next, cmds := Transition(m.state, ev)
	m.state = next
	return m.execute(cmds)
}

func (m *Model) execute(cmds []Command) tea.Cmd {
	var out []tea.Cmd
	for _, c := range cmds {
		switch c := c.(type) {
		case RunCommand:
			m.runner.Submit(c.Token, m.job(c))
		case CancelCommand:
			m.runner.Cancel(c.Token)
		case CopyCommand:
			out = append(out, m.copyLines(c))
		case ExportCommand:
			out = append(out, m.exportResult(c))
		case RememberCommand:
			out = append(out, m.remember(c))
		case QuitCommand:
			m.runner.Close()
			m.session.Disconnect()
			out = append(out, tea.Quit)
		}
	}
	return tea.Batch(out...)
}

// job wraps a session call for the runner. It runs on a worker goroutine
// and must not touch m.state.
func (m *Model) job(c RunCommand) runner.Func {
	return func(ctx context.Context) (any, error) {
		start := m.now()
		value, err := m.run(ctx, c)
		if ctx.Err() != nil {
			return value, err
		}
		m.record(ctx, c, value, err, m.now().Sub(start))
		return value, err
	}
}

func (m *Model) run(ctx context.Context, c RunCommand) (any, error) {
	switch c.Op {
	case OpConnect:
		info, err := m.session.Connect(ctx, c.Engine, c.Params)
		if err == nil && ctx.Err() != nil {
			// the form was left while dialing
			m.session.DisconnectID(info.ID)
			return nil, ctx.Err()
		}
		return info, err
	case OpDisconnect:
		m.session.DisconnectID(c.ConnectionID)
		return nil, nil
	case OpListDatabases:
		return m.session.ListDatabases(ctx)
	case OpUseDatabase:
		if err := m.session.UseDatabase(ctx, c.Arg); err != nil {
			return nil, err
		}
		return m.session.ListTables(ctx)
	case OpListTables:
		return m.session.ListTables(ctx)
	case OpDescribeTable:
		return m.session.DescribeTable(ctx, c.Arg)
	case OpExecuteQuery:
		return m.session.ExecuteQuery(ctx, c.Arg)
	}
	return nil, fmt.Errorf("unknown operation %d", c.Op)
}

// record writes debug events and query history for a finished job
func (m *Model) record(ctx context.Context, c RunCommand, value any, err error, elapsed time.Duration) {
	engine, target := c.Engine, c.Params.Label(c.Engine)
	if c.Op != OpConnect {
		info, _ := m.session.Info()
		engine, target = info.Engine, info.Label
	}

	ev := debuglog.Event{Time: m.now(), Duration: elapsed, Engine: engine.Key(), Target: target}
	switch {
	case err != nil:
		ev.Kind = debuglog.KindError
		ev.Message = fmt.Sprintf("%s failed: %v", c.Op, err)
		if c.Op == OpExecuteQuery {
			ev.Message = fmt.Sprintf("%s failed: %v: %s", c.Op, err, c.Arg)
		}
	case c.Op == OpConnect:
		ev.Kind = debuglog.KindConnect
		ev.Message = "connected"
	case c.Op == OpExecuteQuery:
		ev.Kind = debuglog.KindQuery
		ev.Message = c.Arg
	default:
		m.logger.Debug("operation done", "op", c.Op.String(), "arg", c.Arg, "elapsed", elapsed)
		return
	}
	m.debug.Record(ev)

	if c.Op != OpExecuteQuery || m.history == nil || (err != nil && !m.saveFailed) {
		return
	}
	entry := history.Entry{
		Engine:     engine.Key(),
		Target:     target,
		Query:      c.Arg,
		ExecutedAt: ev.Time,
		Duration:   elapsed,
		Success:    err == nil,
	}
	if info, ok := m.session.Info(); ok {
		entry.DatabaseName = info.Database
	}
	if result, ok := value.(*models.QueryResult); ok && result != nil {
		entry.RowsAffected = result.RowsAffected
		if result.HasRows() {
			entry.RowsAffected = int64(result.RowCount)
		}
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	if err := m.history.Add(ctx, entry); err != nil {
		m.logger.Warn("save query history failed", "error", err)
	}
}

func (m *Model) copyLines(c CopyCommand) tea.Cmd {
	cb := m.clipboard
	return func() tea.Msg {
		if err := export.CopyLines(cb, c.Lines); err != nil {
			return effectMsg{err: err}
		}
		return effectMsg{status: fmt.Sprintf("Copied %s to clipboard", c.What)}
	}
}

func (m *Model) exportResult(c ExportCommand) tea.Cmd {
	dir, format, now := m.exportDir, m.exportFormat, m.now()
	return func() tea.Msg {
		path, err := export.ToFile(c.Result, dir, format, now)
		if err != nil {
			return effectMsg{err: err}
		}
		return effectMsg{status: "Exported to " + path}
	}
}

func (m *Model) remember(c RememberCommand) tea.Cmd {
	if m.connections == nil {
		return nil
	}
	mgr, logger := m.connections, m.logger
	return func() tea.Msg {
		if _, err := mgr.Add(c.Engine, c.Params); err != nil {
			logger.Warn("remember connection failed", "engine", c.Engine.Key(), "error", err)
		}
		return nil
	}
}
