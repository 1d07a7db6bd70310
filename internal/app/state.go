package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/0xataru/dfox/internal/models"
	"github.com/0xataru/dfox/internal/runner"
	"github.com/0xataru/dfox/internal/ui/components"
	tea "github.com/charmbracelet/bubbletea"
)

// Screen is the visible step of the workflow
type Screen int

const (
	ScreenEngineSelect Screen = iota
	ScreenConnectionInput
	ScreenDatabaseSelect
	ScreenTableList
	ScreenTableDescribe
	ScreenQueryEditor
	ScreenQueryResult
)

func (s Screen) String() string {
	switch s {
	case ScreenEngineSelect:
		return "Select engine"
	case ScreenConnectionInput:
		return "Connection"
	case ScreenDatabaseSelect:
		return "Databases"
	case ScreenTableList:
		return "Tables"
	case ScreenTableDescribe:
		return "Structure"
	case ScreenQueryEditor:
		return "Query"
	case ScreenQueryResult:
		return "Result"
	default:
		return "Unknown"
	}
}

// Op is a database operation run off the UI loop
type Op int

const (
	OpNone Op = iota
	OpConnect
	OpDisconnect
	OpListDatabases
	OpUseDatabase
	OpListTables
	OpDescribeTable
	OpExecuteQuery
)

func (o Op) String() string {
	switch o {
	case OpConnect:
		return "connect"
	case OpDisconnect:
		return "disconnect"
	case OpListDatabases:
		return "list_databases"
	case OpUseDatabase:
		return "use_database"
	case OpListTables:
		return "list_tables"
	case OpDescribeTable:
		return "describe_table"
	case OpExecuteQuery:
		return "execute_query"
	default:
		return "none"
	}
}

// Slot is the runner slot an operation occupies
func (o Op) Slot() runner.Slot {
	switch o {
	case OpConnect, OpDisconnect:
		return runner.SlotConnect
	case OpExecuteQuery:
		return runner.SlotQuery
	default:
		return runner.SlotList
	}
}

// Pending marks the operation a slot is waiting for
type Pending struct {
	Token runner.Token
	Op    Op
	Arg   string
}

// Field is an input of the connection form
type Field int

const (
	FieldUsername Field = iota
	FieldPassword
	FieldHostname
	FieldPort
	FieldDatabase
	FieldFile

	numFields
)

// Label returns the form label
func (f Field) Label() string {
	switch f {
	case FieldUsername:
		return "Username"
	case FieldPassword:
		return "Password"
	case FieldHostname:
		return "Hostname"
	case FieldPort:
		return "Port"
	case FieldDatabase:
		return "Database"
	case FieldFile:
		return "File"
	default:
		return ""
	}
}

// FormFields lists the inputs shown for engine, in focus order
func FormFields(engine models.EngineKind) []Field {
	if engine.FileBased() {
		return []Field{FieldFile}
	}
	return []Field{FieldUsername, FieldPassword, FieldHostname, FieldPort, FieldDatabase}
}

// Form holds the connection form values
type Form struct {
	Values [numFields]string
	Focus  int
}

// FormFromParams fills a form from params
func FormFromParams(engine models.EngineKind, p models.ConnectionParams) Form {
	var f Form
	f.Values[FieldUsername] = p.Username
	f.Values[FieldPassword] = p.Secret
	f.Values[FieldHostname] = p.Host
	f.Values[FieldDatabase] = p.Database
	f.Values[FieldFile] = p.Host
	if p.Port > 0 {
		f.Values[FieldPort] = strconv.Itoa(p.Port)
	} else if port := engine.DefaultPort(); port > 0 {
		f.Values[FieldPort] = strconv.Itoa(port)
	}
	return f
}

// Params converts the form to validated connection params
func (f Form) Params(engine models.EngineKind) (models.ConnectionParams, error) {
	if engine.FileBased() {
		p := models.ConnectionParams{Host: strings.TrimSpace(f.Values[FieldFile])}
		return p, p.Validate(engine)
	}

	p := models.ConnectionParams{
		Host:     strings.TrimSpace(f.Values[FieldHostname]),
		Username: strings.TrimSpace(f.Values[FieldUsername]),
		Secret:   f.Values[FieldPassword],
		Database: strings.TrimSpace(f.Values[FieldDatabase]),
	}
	portText := strings.TrimSpace(f.Values[FieldPort])
	if portText == "" {
		p.Port = engine.DefaultPort()
	} else {
		port, err := strconv.Atoi(portText)
		if err != nil {
			return p, fmt.Errorf("port must be a number, got %q", portText)
		}
		p.Port = port
	}
	return p, p.Validate(engine)
}

// ErrorInfo is the content of the error overlay
type ErrorInfo struct {
	Title   string
	Message string
}

// Settings are the configurable knobs of the state machine
type Settings struct {
	PageSize       int
	VisibleColumns int
	CopyDelimiter  string
}

// DefaultSettings matches the config defaults
func DefaultSettings() Settings {
	return Settings{PageSize: 10, VisibleColumns: 8, CopyDelimiter: "\t"}
}

// State is everything the screen shows. It is replaced wholesale by
// Transition; slices and pointers inside it are never mutated in place.
type State struct {
	Screen   Screen
	Settings Settings

	EngineCursor int
	Engine       models.EngineKind
	Form         Form
	// Prefill holds the form defaults per engine
	Prefill map[models.EngineKind]models.ConnectionParams

	Connected  bool
	Connection models.ConnectionInfo

	Databases      []models.DatabaseSummary
	DatabaseCursor int
	Database       string

	Tables      []models.TableSummary
	TableCursor int

	Schema       *models.TableSchema
	SchemaCursor int

	Editor      components.EditorBuffer
	Recall      []string
	RecallIndex int
	Draft       string

	Result       *models.QueryResult
	ResultCursor int
	ColOffset    int

	Pending [runner.NumSlots]Pending
	Seq     uint64

	Error         *ErrorInfo
	Debug         bool
	Help          bool
	Status        string
	StatusIsError bool

	Width    int
	Height   int
	Quitting bool
}

// NewState returns the startup state on EngineSelect
func NewState(settings Settings, prefill map[models.EngineKind]models.ConnectionParams, recall []string) State {
	if settings.PageSize < 1 {
		settings.PageSize = DefaultSettings().PageSize
	}
	if settings.VisibleColumns < 1 {
		settings.VisibleColumns = DefaultSettings().VisibleColumns
	}
	if settings.CopyDelimiter == "" {
		settings.CopyDelimiter = DefaultSettings().CopyDelimiter
	}
	return State{
		Screen:      ScreenEngineSelect,
		Settings:    settings,
		Prefill:     prefill,
		Recall:      recall,
		RecallIndex: -1,
	}
}

// PendingOp returns the operation waiting on slot, OpNone when idle
func (s State) PendingOp(slot runner.Slot) Op {
	return s.Pending[slot].Op
}

// Busy reports whether any slot is waiting
func (s State) Busy() bool {
	for _, p := range s.Pending {
		if !p.Token.IsZero() {
			return true
		}
	}
	return false
}

// Event is an input of Transition
type Event interface {
	isEvent()
}

// KeyEvent is a key press
type KeyEvent struct {
	Key tea.KeyMsg
}

// ResizeEvent carries the terminal size
type ResizeEvent struct {
	Width  int
	Height int
}

// OutcomeEvent is the result of an operation submitted by a RunCommand
type OutcomeEvent struct {
	Token   runner.Token
	Value   any
	Err     error
	Elapsed time.Duration
}

// EffectEvent reports a clipboard or export side effect
type EffectEvent struct {
	Status string
	Err    error
}

func (KeyEvent) isEvent()     {}
func (ResizeEvent) isEvent()  {}
func (OutcomeEvent) isEvent() {}
func (EffectEvent) isEvent()  {}

// Command is an effect requested by Transition
type Command interface {
	isCommand()
}

// RunCommand submits an operation to the runner
type RunCommand struct {
	Token        runner.Token
	Op           Op
	Arg          string
	Engine       models.EngineKind
	Params       models.ConnectionParams
	ConnectionID string
}

// CancelCommand cancels a submitted operation
type CancelCommand struct {
	Token runner.Token
}

// CopyCommand writes lines to the clipboard
type CopyCommand struct {
	Lines []string
	What  string
}

// ExportCommand writes a result to a file
type ExportCommand struct {
	Result *models.QueryResult
}

// RememberCommand stores a successful connection
type RememberCommand struct {
	Engine models.EngineKind
	Params models.ConnectionParams
}

// QuitCommand disconnects and exits
type QuitCommand struct{}

func (RunCommand) isCommand()      {}
func (CancelCommand) isCommand()   {}
func (CopyCommand) isCommand()     {}
func (ExportCommand) isCommand()   {}
func (RememberCommand) isCommand() {}
func (QuitCommand) isCommand()     {}
