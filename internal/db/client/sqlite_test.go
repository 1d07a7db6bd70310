package client

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/0xataru/dfox/internal/db/dberr"
	"github.com/0xataru/dfox/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sqliteFixture = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT DEFAULT 'anonymous'
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id),
	total REAL
);
CREATE VIEW big_orders AS SELECT * FROM orders WHERE total > 100;
INSERT INTO users (id, email, name) VALUES (1, 'a@example.com', 'Ann'), (2, 'b@example.com', NULL), (3, 'c@example.com', 'Cid');
INSERT INTO orders (id, user_id, total) VALUES (1, 1, 12.5), (2, 1, 250);
`

func newSQLiteFile(t *testing.T, name, ddl string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	if ddl != "" {
		_, err = db.Exec(ddl)
		require.NoError(t, err)
	}
	return path
}

func connectFixture(t *testing.T, opts ...Option) Client {
	t.Helper()

	path := newSQLiteFile(t, "app.db", sqliteFixture)
	c, err := Connect(context.Background(), models.SQLite, models.ConnectionParams{Host: path}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSQLiteListDatabases(t *testing.T) {
	c := connectFixture(t)

	dbs, err := c.ListDatabases(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, dbs)
	assert.Equal(t, "main", dbs[0].Name)
	assert.True(t, strings.HasSuffix(dbs[0].Detail, "app.db"))
	assert.Equal(t, "main", c.CurrentDatabase())
	assert.Equal(t, models.SQLite, c.Engine())
}

func TestSQLiteListTables(t *testing.T) {
	c := connectFixture(t)

	tables, err := c.ListTables(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []models.TableSummary{
		{Name: "big_orders", Kind: "view"},
		{Name: "orders", Kind: "table"},
		{Name: "users", Kind: "table"},
	}, tables)
}

func TestSQLiteDescribeTablePreservesOrder(t *testing.T) {
	c := connectFixture(t)

	schema, err := c.DescribeTable(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, schema.Columns, 3)

	names := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		names = append(names, col.Name)
	}
	assert.Equal(t, []string{"id", "email", "name"}, names)

	id, email, name := schema.Columns[0], schema.Columns[1], schema.Columns[2]
	assert.True(t, id.IsPrimaryKey)
	assert.False(t, id.IsNullable)
	assert.Equal(t, "INTEGER", id.DataType)

	assert.Equal(t, "TEXT", email.DataType)
	assert.False(t, email.IsNullable)
	assert.True(t, email.IsUnique)

	assert.True(t, name.IsNullable)
	assert.Equal(t, "'anonymous'", name.DefaultValue)
}

func TestSQLiteDescribeForeignKey(t *testing.T) {
	c := connectFixture(t)

	schema, err := c.DescribeTable(context.Background(), "orders")
	require.NoError(t, err)
	require.Len(t, schema.Columns, 3)
	assert.Equal(t, "user_id", schema.Columns[1].Name)
	assert.True(t, schema.Columns[1].IsForeignKey)
	assert.False(t, schema.Columns[2].IsForeignKey)
}

func TestSQLiteDescribeMissingTable(t *testing.T) {
	c := connectFixture(t)

	_, err := c.DescribeTable(context.Background(), "nope")
	require.Error(t, err)
	kind, ok := dberr.QueryKindOf(err)
	assert.True(t, ok)
	assert.Equal(t, dberr.Other, kind)
}

func TestSQLiteExecuteQuery(t *testing.T) {
	c := connectFixture(t)
	ctx := context.Background()

	result, err := c.ExecuteQuery(ctx, "SELECT id, email, name FROM users ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email", "name"}, result.Columns)
	assert.Equal(t, 3, result.RowCount)
	assert.Equal(t, []string{"2", "b@example.com", "NULL"}, result.Rows[1])
	assert.False(t, result.Truncated)

	result, err = c.ExecuteQuery(ctx, "UPDATE users SET name = 'x' WHERE id > 1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.RowsAffected)
	assert.Empty(t, result.Columns)
	assert.Contains(t, result.Message, "2 rows affected")
}

func TestSQLiteRowLimit(t *testing.T) {
	c := connectFixture(t, WithRowLimit(2))

	result, err := c.ExecuteQuery(context.Background(), "SELECT * FROM users")
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowCount)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Truncated)
}

func TestSQLiteQueryErrors(t *testing.T) {
	c := connectFixture(t)

	tests := []struct {
		name string
		sql  string
		want dberr.QueryKind
	}{
		{"syntax", "SELEC * FROM users", dberr.Syntax},
		{"missing table", "SELECT * FROM nope", dberr.Other},
		{"constraint", "INSERT INTO users (id, email) VALUES (1, 'dup@example.com')", dberr.Other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ExecuteQuery(context.Background(), tt.sql)
			require.Error(t, err)
			kind, ok := dberr.QueryKindOf(err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestSQLiteConnectErrors(t *testing.T) {
	ctx := context.Background()

	missing := filepath.Join(t.TempDir(), "missing.db")
	_, err := Connect(ctx, models.SQLite, models.ConnectionParams{Host: missing})
	kind, ok := dberr.ConnectKindOf(err)
	require.True(t, ok)
	assert.Equal(t, dberr.Unreachable, kind)

	junk := filepath.Join(t.TempDir(), "junk.db")
	require.NoError(t, os.WriteFile(junk, []byte(strings.Repeat("not a database file\n", 200)), 0o600))
	_, err = Connect(ctx, models.SQLite, models.ConnectionParams{Host: junk})
	kind, ok = dberr.ConnectKindOf(err)
	require.True(t, ok)
	assert.Equal(t, dberr.ProtocolMismatch, kind)
}

func TestSQLiteUseDatabase(t *testing.T) {
	c := connectFixture(t)
	ctx := context.Background()

	require.NoError(t, c.UseDatabase(ctx, "main"))
	assert.Equal(t, "main", c.CurrentDatabase())

	other := newSQLiteFile(t, "other.db", "CREATE TABLE invoices (id INTEGER PRIMARY KEY);")
	require.NoError(t, c.UseDatabase(ctx, other))

	tables, err := c.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.TableSummary{{Name: "invoices", Kind: "table"}}, tables)

	err = c.UseDatabase(ctx, filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	kind, ok := dberr.QueryKindOf(err)
	assert.True(t, ok)
	assert.Equal(t, dberr.ConnectionLost, kind)

	// the failed switch keeps the previous file
	tables, err = c.ListTables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 1)
}

func TestSQLiteClosed(t *testing.T) {
	c := connectFixture(t)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.ListTables(context.Background())
	kind, ok := dberr.QueryKindOf(err)
	assert.True(t, ok)
	assert.Equal(t, dberr.NotConnected, kind)
}

func TestSQLiteMemory(t *testing.T) {
	c, err := Connect(context.Background(), models.SQLite, models.ConnectionParams{Host: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	result, err := c.ExecuteQuery(context.Background(), "SELECT 1 AS one")
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, result.Columns)
	assert.Equal(t, [][]string{{"1"}}, result.Rows)
}
