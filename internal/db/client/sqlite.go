package client

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"github.com/0xataru/dfox/internal/db/dberr"
	"github.com/0xataru/dfox/internal/models"
	"github.com/mattn/go-sqlite3"
)

const (
	sqliteMainSchema = "main"
	sqliteMemory     = ":memory:"
)

type sqliteClient struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	schema string
	opts   Options
}

// sqliteDSN opens existing files read-write only; a missing file is an
// error rather than a new empty database.
func sqliteDSN(path string) string {
	if path == sqliteMemory {
		return sqliteMemory
	}
	return "file:" + path + "?mode=rw&_busy_timeout=5000&_foreign_keys=on"
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, dberr.NewConnectError(dberr.ProtocolMismatch, err)
	}
	db.SetMaxOpenConns(1)

	// NOTADB only surfaces on the first read
	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		_ = db.Close()
		return nil, translateSQLiteConnect(err)
	}
	return db, nil
}

func connectSQLite(ctx context.Context, params models.ConnectionParams, o Options) (Client, error) {
	if params.Host == "" {
		return nil, dberr.NewConnectError(dberr.Unreachable, errors.New("database file is required"))
	}
	db, err := openSQLite(ctx, params.Host)
	if err != nil {
		return nil, err
	}
	return &sqliteClient{db: db, path: params.Host, schema: sqliteMainSchema, opts: o}, nil
}

func (c *sqliteClient) Engine() models.EngineKind {
	return models.SQLite
}

func (c *sqliteClient) CurrentDatabase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.schema
}

func (c *sqliteClient) handle() (*sql.DB, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, "", dberr.ErrNotConnected
	}
	return c.db, c.schema, nil
}

func (c *sqliteClient) ListDatabases(ctx context.Context) ([]models.DatabaseSummary, error) {
	db, _, err := c.handle()
	if err != nil {
		return nil, err
	}

	rows, err := queryStrings(ctx, db, "PRAGMA database_list")
	if err != nil {
		return nil, translateSQLiteQuery(err)
	}

	databases := make([]models.DatabaseSummary, 0, len(rows))
	for _, row := range rows {
		summary := models.DatabaseSummary{Name: row[1]}
		if len(row) > 2 && row[2] != nullText {
			summary.Detail = row[2]
		}
		databases = append(databases, summary)
	}
	return databases, nil
}

// UseDatabase switches to an attached schema, or opens name as a new
// database file when no schema by that name is attached.
func (c *sqliteClient) UseDatabase(ctx context.Context, name string) error {
	if name == "" {
		return dberr.Errorf(dberr.Other, "database name is required")
	}

	attached, err := c.ListDatabases(ctx)
	if err != nil {
		return err
	}
	for _, db := range attached {
		if db.Name == name {
			c.mu.Lock()
			c.schema = name
			c.mu.Unlock()
			return nil
		}
	}

	db, err := openSQLite(ctx, name)
	if err != nil {
		return reconnectError(err)
	}

	c.mu.Lock()
	old := c.db
	c.db = db
	c.path = name
	c.schema = sqliteMainSchema
	c.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			c.opts.Logger.Warn("close previous sqlite handle failed", "error", err)
		}
	}
	return nil
}

func (c *sqliteClient) ListTables(ctx context.Context) ([]models.TableSummary, error) {
	db, schema, err := c.handle()
	if err != nil {
		return nil, err
	}

	query := `SELECT name, type FROM ` + quoteIdent(schema, `"`) + `.sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
	rows, err := queryStrings(ctx, db, query)
	if err != nil {
		return nil, translateSQLiteQuery(err)
	}

	tables := make([]models.TableSummary, 0, len(rows))
	for _, row := range rows {
		t := models.TableSummary{Name: row[0], Kind: row[1]}
		if schema != sqliteMainSchema {
			t.Schema = schema
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (c *sqliteClient) DescribeTable(ctx context.Context, name string) (*models.TableSchema, error) {
	db, schema, err := c.handle()
	if err != nil {
		return nil, err
	}
	if s, table := splitQualified(name); s != "" {
		schema, name = s, table
	}
	prefix := quoteIdent(schema, `"`) + "."
	arg := "(" + quoteIdent(name, `'`) + ")"

	rows, err := db.QueryContext(ctx, "PRAGMA "+prefix+"table_info"+arg)
	if err != nil {
		return nil, translateSQLiteQuery(err)
	}
	defer func() { _ = rows.Close() }()

	result := &models.TableSchema{Table: name}
	index := make(map[string]int)
	for rows.Next() {
		var (
			cid     int
			col     models.ColumnDescriptor
			notNull int
			def     sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &col.Name, &col.DataType, &notNull, &def, &pk); err != nil {
			return nil, translateSQLiteQuery(err)
		}
		col.IsNullable = notNull == 0 && pk == 0
		col.DefaultValue = def.String
		col.IsPrimaryKey = pk > 0
		index[col.Name] = len(result.Columns)
		result.Columns = append(result.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, translateSQLiteQuery(err)
	}
	if len(result.Columns) == 0 {
		return nil, dberr.Errorf(dberr.Other, "table %q not found", name)
	}

	uniques, err := c.uniqueColumns(ctx, db, prefix, arg)
	if err != nil {
		return nil, translateSQLiteQuery(err)
	}
	for _, column := range uniques {
		if i, ok := index[column]; ok {
			result.Columns[i].IsUnique = true
		}
	}

	fks, err := queryStrings(ctx, db, "PRAGMA "+prefix+"foreign_key_list"+arg)
	if err != nil {
		return nil, translateSQLiteQuery(err)
	}
	for _, fk := range fks {
		// id, seq, table, from, to, on_update, on_delete, match
		if len(fk) > 3 {
			if i, ok := index[fk[3]]; ok {
				result.Columns[i].IsForeignKey = true
			}
		}
	}
	return result, nil
}

// uniqueColumns returns the columns covered alone by a unique index
func (c *sqliteClient) uniqueColumns(ctx context.Context, db *sql.DB, prefix, arg string) ([]string, error) {
	indexes, err := queryStrings(ctx, db, "PRAGMA "+prefix+"index_list"+arg)
	if err != nil {
		return nil, err
	}

	var columns []string
	for _, idx := range indexes {
		// seq, name, unique, origin, partial
		if len(idx) < 3 || idx[2] != "1" {
			continue
		}
		if len(idx) > 3 && idx[3] == "pk" {
			continue
		}
		info, err := queryStrings(ctx, db, "PRAGMA "+prefix+"index_info("+quoteIdent(idx[1], `'`)+")")
		if err != nil {
			return nil, err
		}
		if len(info) == 1 && len(info[0]) > 2 {
			columns = append(columns, info[0][2])
		}
	}
	return columns, nil
}

func (c *sqliteClient) ExecuteQuery(ctx context.Context, query string) (*models.QueryResult, error) {
	db, _, err := c.handle()
	if err != nil {
		return nil, err
	}
	return runSQL(ctx, db, query, c.opts.RowLimit, translateSQLiteQuery)
}

func (c *sqliteClient) Close() error {
	c.mu.Lock()
	db := c.db
	c.db = nil
	c.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Close()
}

func isSQLiteSyntax(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "syntax error") ||
		strings.Contains(msg, "incomplete input") ||
		strings.Contains(msg, "unrecognized token")
}

func translateSQLiteConnect(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrCantOpen:
			return dberr.NewConnectError(dberr.Unreachable, err)
		case sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return dberr.NewConnectError(dberr.ProtocolMismatch, err)
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
			return dberr.NewConnectError(dberr.AuthRejected, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return dberr.NewConnectError(dberr.ConnectTimeout, err)
		}
	}
	return connectFallback(err)
}

func translateSQLiteQuery(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return queryFallback(err)
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrError:
			if isSQLiteSyntax(se.Error()) {
				return dberr.NewQueryError(dberr.Syntax, err)
			}
			return dberr.NewQueryError(dberr.Other, err)
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
			return dberr.NewQueryError(dberr.Permission, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrInterrupt:
			return dberr.NewQueryError(dberr.QueryTimeout, err)
		case sqlite3.ErrIoErr, sqlite3.ErrCantOpen:
			return dberr.NewQueryError(dberr.ConnectionLost, err)
		default:
			return dberr.NewQueryError(dberr.Other, err)
		}
	}
	return queryFallback(err)
}

