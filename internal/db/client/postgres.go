package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/0xataru/dfox/internal/db/dberr"
	"github.com/0xataru/dfox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresDefaultDatabase = "postgres"

type postgresClient struct {
	mu     sync.RWMutex
	pool   *pgxpool.Pool
	params models.ConnectionParams
	opts   Options
}

func connectPostgres(ctx context.Context, params models.ConnectionParams, o Options) (Client, error) {
	if params.Database == "" {
		params.Database = postgresDefaultDatabase
	}
	pool, err := openPostgresPool(ctx, params, o)
	if err != nil {
		return nil, err
	}
	return &postgresClient{pool: pool, params: params, opts: o}, nil
}

// postgresDSN builds a key/value connection string, quoting every value
func postgresDSN(params models.ConnectionParams) string {
	quote := func(v string) string {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `'`, `\'`)
		return "'" + v + "'"
	}

	port := params.Port
	if port == 0 {
		port = models.Postgres.DefaultPort()
	}

	parts := []string{
		"host=" + quote(params.Host),
		"port=" + strconv.Itoa(port),
		"dbname=" + quote(params.Database),
		"user=" + quote(params.Username),
		"sslmode=prefer",
	}
	if params.Secret != "" {
		parts = append(parts, "password="+quote(params.Secret))
	}
	return strings.Join(parts, " ")
}

func openPostgresPool(ctx context.Context, params models.ConnectionParams, o Options) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(postgresDSN(params))
	if err != nil {
		return nil, dberr.NewConnectError(dberr.ProtocolMismatch, fmt.Errorf("parse connection config: %w", err))
	}

	// One physical connection per session
	poolConfig.MaxConns = 1
	poolConfig.MinConns = 0
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.ConnectTimeout = o.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, translatePostgresConnect(err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, translatePostgresConnect(err)
	}
	return pool, nil
}

func (c *postgresClient) Engine() models.EngineKind {
	return models.Postgres
}

func (c *postgresClient) CurrentDatabase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params.Database
}

func (c *postgresClient) handle() (*pgxpool.Pool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pool == nil {
		return nil, dberr.ErrNotConnected
	}
	return c.pool, nil
}

func (c *postgresClient) ListDatabases(ctx context.Context) ([]models.DatabaseSummary, error) {
	pool, err := c.handle()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT d.datname, pg_catalog.pg_get_userbyid(d.datdba)
		FROM pg_catalog.pg_database d
		WHERE NOT d.datistemplate AND d.datallowconn
		ORDER BY d.datname
	`
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, translatePostgresQuery(err)
	}
	defer rows.Close()

	var databases []models.DatabaseSummary
	for rows.Next() {
		var db models.DatabaseSummary
		var owner string
		if err := rows.Scan(&db.Name, &owner); err != nil {
			return nil, translatePostgresQuery(err)
		}
		db.Detail = "owner " + owner
		databases = append(databases, db)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePostgresQuery(err)
	}
	return databases, nil
}

// UseDatabase reconnects against name and swaps the pool once the new
// connection is up. The old pool stays in place on failure.
func (c *postgresClient) UseDatabase(ctx context.Context, name string) error {
	if name == "" {
		return dberr.Errorf(dberr.Other, "database name is required")
	}

	c.mu.RLock()
	params := c.params.WithDatabase(name)
	closed := c.pool == nil
	c.mu.RUnlock()
	if closed {
		return dberr.ErrNotConnected
	}

	pool, err := openPostgresPool(ctx, params, c.opts)
	if err != nil {
		return reconnectError(err)
	}

	c.mu.Lock()
	old := c.pool
	c.pool = pool
	c.params = params
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

func (c *postgresClient) ListTables(ctx context.Context) ([]models.TableSummary, error) {
	pool, err := c.handle()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT schemaname, tablename, 'table' AS kind
		FROM pg_catalog.pg_tables
		WHERE schemaname NOT IN ('pg_catalog', 'information_schema')
		  AND schemaname NOT LIKE 'pg_toast%'
		UNION ALL
		SELECT schemaname, viewname, 'view'
		FROM pg_catalog.pg_views
		WHERE schemaname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY 1, 2
	`
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, translatePostgresQuery(err)
	}
	defer rows.Close()

	var tables []models.TableSummary
	for rows.Next() {
		var t models.TableSummary
		if err := rows.Scan(&t.Schema, &t.Name, &t.Kind); err != nil {
			return nil, translatePostgresQuery(err)
		}
		if t.Schema == "public" {
			t.Schema = ""
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePostgresQuery(err)
	}
	return tables, nil
}

func (c *postgresClient) DescribeTable(ctx context.Context, name string) (*models.TableSchema, error) {
	pool, err := c.handle()
	if err != nil {
		return nil, err
	}
	schema, table := splitQualified(name)

	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			COALESCE(c.column_default, ''),
			COALESCE(bool_or(tc.constraint_type = 'PRIMARY KEY'), false),
			COALESCE(bool_or(tc.constraint_type = 'FOREIGN KEY'), false),
			COALESCE(bool_or(tc.constraint_type = 'UNIQUE'), false)
		FROM information_schema.columns c
		LEFT JOIN information_schema.key_column_usage k
			ON k.table_schema = c.table_schema
			AND k.table_name = c.table_name
			AND k.column_name = c.column_name
		LEFT JOIN information_schema.table_constraints tc
			ON tc.constraint_schema = k.constraint_schema
			AND tc.constraint_name = k.constraint_name
		WHERE c.table_schema = COALESCE(NULLIF($1::text, ''), current_schema()::text)
		  AND c.table_name = $2
		GROUP BY c.column_name, c.data_type, c.is_nullable, c.column_default, c.ordinal_position
		ORDER BY c.ordinal_position
	`
	rows, err := pool.Query(ctx, query, schema, table)
	if err != nil {
		return nil, translatePostgresQuery(err)
	}
	defer rows.Close()

	result := &models.TableSchema{Table: name}
	for rows.Next() {
		var col models.ColumnDescriptor
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.DefaultValue,
			&col.IsPrimaryKey, &col.IsForeignKey, &col.IsUnique); err != nil {
			return nil, translatePostgresQuery(err)
		}
		result.Columns = append(result.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePostgresQuery(err)
	}
	if len(result.Columns) == 0 {
		return nil, dberr.Errorf(dberr.Other, "table %q not found", name)
	}
	return result, nil
}

// ExecuteQuery runs sql over the simple protocol, values arrive as text
func (c *postgresClient) ExecuteQuery(ctx context.Context, sql string) (*models.QueryResult, error) {
	pool, err := c.handle()
	if err != nil {
		return nil, err
	}
	start := time.Now()

	rows, err := pool.Query(ctx, sql, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return nil, translatePostgresQuery(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	var data [][]string
	truncated := false
	for rows.Next() {
		if c.opts.RowLimit > 0 && len(data) >= c.opts.RowLimit {
			truncated = true
			break
		}
		raw := rows.RawValues()
		row := make([]string, len(raw))
		for i, v := range raw {
			if v == nil {
				row[i] = nullText
			} else {
				row[i] = string(v)
			}
		}
		data = append(data, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, translatePostgresQuery(err)
	}

	result := &models.QueryResult{
		SQL:       sql,
		Columns:   columns,
		Rows:      data,
		RowCount:  len(data),
		Truncated: truncated,
		Duration:  time.Since(start),
	}
	tag := rows.CommandTag()
	if len(fields) > 0 {
		result.Message = rowsMessage(len(data), truncated)
	} else {
		result.RowsAffected = tag.RowsAffected()
		result.Message = tag.String()
	}
	return result, nil
}

func (c *postgresClient) Close() error {
	c.mu.Lock()
	pool := c.pool
	c.pool = nil
	c.mu.Unlock()

	if pool != nil {
		pool.Close()
	}
	return nil
}

// translatePostgresConnect classifies a failed dial or ping
func translatePostgresConnect(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "28"), pgErr.Code == "3D000":
			return dberr.NewConnectError(dberr.AuthRejected, err)
		case pgErr.Code == "08P01", pgErr.Code == "0A000":
			return dberr.NewConnectError(dberr.ProtocolMismatch, err)
		case pgErr.Code == "57P03", pgErr.Code == "53300":
			return dberr.NewConnectError(dberr.Unreachable, err)
		}
	}
	if pgconn.Timeout(err) {
		return dberr.NewConnectError(dberr.ConnectTimeout, err)
	}
	return connectFallback(err)
}

// translatePostgresQuery classifies a failure on an established pool by
// SQLSTATE class.
func translatePostgresQuery(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42601":
			return dberr.NewQueryError(dberr.Syntax, err)
		case pgErr.Code == "42501":
			return dberr.NewQueryError(dberr.Permission, err)
		case pgErr.Code == "57014", pgErr.Code == "55P03":
			return dberr.NewQueryError(dberr.QueryTimeout, err)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P0"):
			return dberr.NewQueryError(dberr.ConnectionLost, err)
		default:
			return dberr.NewQueryError(dberr.Other, err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return queryFallback(err)
	}
	if pgconn.Timeout(err) {
		return dberr.NewQueryError(dberr.QueryTimeout, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "conn closed") || strings.Contains(msg, "closed pool") {
		return dberr.NewQueryError(dberr.ConnectionLost, err)
	}
	return queryFallback(err)
}
