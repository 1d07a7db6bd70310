package client

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/0xataru/dfox/internal/db/dberr"
	"github.com/0xataru/dfox/internal/models"
	"github.com/go-sql-driver/mysql"
)

type mysqlOpener func(ctx context.Context, cfg *mysql.Config) (*sql.DB, error)

type mysqlClient struct {
	mu   sync.RWMutex
	db   *sql.DB
	cfg  *mysql.Config
	opts Options
	open mysqlOpener
}

func newMySQLClient(db *sql.DB, cfg *mysql.Config, o Options, open mysqlOpener) *mysqlClient {
	if open == nil {
		open = openMySQL
	}
	return &mysqlClient{db: db, cfg: cfg, opts: o, open: open}
}

func mysqlConfig(params models.ConnectionParams, o Options) *mysql.Config {
	port := params.Port
	if port == 0 {
		port = models.MySQL.DefaultPort()
	}

	cfg := mysql.NewConfig()
	cfg.User = params.Username
	cfg.Passwd = params.Secret
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(params.Host, strconv.Itoa(port))
	cfg.DBName = params.Database
	cfg.Timeout = o.ConnectTimeout
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg
}

func openMySQL(ctx context.Context, cfg *mysql.Config) (*sql.DB, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, dberr.NewConnectError(dberr.ProtocolMismatch, err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, translateMySQLConnect(err)
	}
	return db, nil
}

func connectMySQL(ctx context.Context, params models.ConnectionParams, o Options) (Client, error) {
	cfg := mysqlConfig(params, o)
	db, err := openMySQL(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newMySQLClient(db, cfg, o, openMySQL), nil
}

func (c *mysqlClient) Engine() models.EngineKind {
	return models.MySQL
}

func (c *mysqlClient) CurrentDatabase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.DBName
}

func (c *mysqlClient) handle() (*sql.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, dberr.ErrNotConnected
	}
	return c.db, nil
}

func (c *mysqlClient) ListDatabases(ctx context.Context) ([]models.DatabaseSummary, error) {
	db, err := c.handle()
	if err != nil {
		return nil, err
	}

	rows, err := queryStrings(ctx, db, "SHOW DATABASES")
	if err != nil {
		return nil, translateMySQLQuery(err)
	}

	databases := make([]models.DatabaseSummary, 0, len(rows))
	for _, row := range rows {
		databases = append(databases, models.DatabaseSummary{Name: row[0]})
	}
	return databases, nil
}

func (c *mysqlClient) UseDatabase(ctx context.Context, name string) error {
	if name == "" {
		return dberr.Errorf(dberr.Other, "database name is required")
	}

	c.mu.RLock()
	if c.db == nil {
		c.mu.RUnlock()
		return dberr.ErrNotConnected
	}
	cfg := c.cfg.Clone()
	c.mu.RUnlock()
	cfg.DBName = name

	db, err := c.open(ctx, cfg)
	if err != nil {
		return reconnectError(err)
	}

	c.mu.Lock()
	old := c.db
	c.db = db
	c.cfg = cfg
	c.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			c.opts.Logger.Warn("close previous mysql handle failed", "error", err)
		}
	}
	return nil
}

func (c *mysqlClient) ListTables(ctx context.Context) ([]models.TableSummary, error) {
	db, err := c.handle()
	if err != nil {
		return nil, err
	}
	if c.CurrentDatabase() == "" {
		return nil, dberr.Errorf(dberr.Other, "no database selected")
	}

	rows, err := queryStrings(ctx, db, "SHOW FULL TABLES")
	if err != nil {
		return nil, translateMySQLQuery(err)
	}

	tables := make([]models.TableSummary, 0, len(rows))
	for _, row := range rows {
		t := models.TableSummary{Name: row[0], Kind: "table"}
		if len(row) > 1 && row[1] == "VIEW" {
			t.Kind = "view"
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (c *mysqlClient) DescribeTable(ctx context.Context, name string) (*models.TableSchema, error) {
	db, err := c.handle()
	if err != nil {
		return nil, err
	}
	schema, table := splitQualified(name)

	query := `
		SELECT
			c.COLUMN_NAME,
			c.COLUMN_TYPE,
			c.IS_NULLABLE = 'YES',
			c.COLUMN_DEFAULT,
			c.COLUMN_KEY = 'PRI',
			EXISTS (
				SELECT 1 FROM information_schema.KEY_COLUMN_USAGE k
				WHERE k.TABLE_SCHEMA = c.TABLE_SCHEMA
				  AND k.TABLE_NAME = c.TABLE_NAME
				  AND k.COLUMN_NAME = c.COLUMN_NAME
				  AND k.REFERENCED_TABLE_NAME IS NOT NULL
			),
			c.COLUMN_KEY = 'UNI'
		FROM information_schema.COLUMNS c
		WHERE c.TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
		  AND c.TABLE_NAME = ?
		ORDER BY c.ORDINAL_POSITION`

	rows, err := db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, translateMySQLQuery(err)
	}
	defer func() { _ = rows.Close() }()

	result := &models.TableSchema{Table: name}
	for rows.Next() {
		var col models.ColumnDescriptor
		var def sql.NullString
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &def,
			&col.IsPrimaryKey, &col.IsForeignKey, &col.IsUnique); err != nil {
			return nil, translateMySQLQuery(err)
		}
		col.DefaultValue = def.String
		result.Columns = append(result.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, translateMySQLQuery(err)
	}
	if len(result.Columns) == 0 {
		return nil, dberr.Errorf(dberr.Other, "table %q not found", name)
	}
	return result, nil
}

func (c *mysqlClient) ExecuteQuery(ctx context.Context, query string) (*models.QueryResult, error) {
	db, err := c.handle()
	if err != nil {
		return nil, err
	}
	return runSQL(ctx, db, query, c.opts.RowLimit, translateMySQLQuery)
}

func (c *mysqlClient) Close() error {
	c.mu.Lock()
	db := c.db
	c.db = nil
	c.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Close()
}

func isMySQLProtocolError(err error) bool {
	return errors.Is(err, mysql.ErrMalformPkt) ||
		errors.Is(err, mysql.ErrOldProtocol) ||
		errors.Is(err, mysql.ErrNativePassword) ||
		errors.Is(err, mysql.ErrCleartextPassword) ||
		errors.Is(err, mysql.ErrUnknownPlugin) ||
		errors.Is(err, mysql.ErrNoTLS)
}

// translateMySQLConnect classifies a failed dial or ping
func translateMySQLConnect(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1044, 1045, 1049, 1698, 1130:
			return dberr.NewConnectError(dberr.AuthRejected, err)
		case 1043, 1251:
			return dberr.NewConnectError(dberr.ProtocolMismatch, err)
		case 1040, 1203:
			return dberr.NewConnectError(dberr.Unreachable, err)
		}
	}
	if isMySQLProtocolError(err) {
		return dberr.NewConnectError(dberr.ProtocolMismatch, err)
	}
	return connectFallback(err)
}

// translateMySQLQuery classifies a failure by server error number
func translateMySQLQuery(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1064, 1149:
			return dberr.NewQueryError(dberr.Syntax, err)
		case 1044, 1045, 1142, 1143, 1227, 1370:
			return dberr.NewQueryError(dberr.Permission, err)
		case 1205, 1317, 3024:
			return dberr.NewQueryError(dberr.QueryTimeout, err)
		case 1053, 2006, 2013:
			return dberr.NewQueryError(dberr.ConnectionLost, err)
		default:
			return dberr.NewQueryError(dberr.Other, err)
		}
	}
	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) {
		return dberr.NewQueryError(dberr.ConnectionLost, err)
	}
	return queryFallback(err)
}
