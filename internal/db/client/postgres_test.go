package client

import (
	"context"
	"errors"
	"testing"

	"github.com/0xataru/dfox/internal/db/dberr"
	"github.com/0xataru/dfox/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(models.ConnectionParams{
		Host:     "db.internal",
		Username: "app",
		Secret:   `it's a \secret`,
		Database: "app_db",
	})
	assert.Equal(t, `host='db.internal' port=5432 dbname='app_db' user='app' sslmode=prefer password='it\'s a \\secret'`, dsn)

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.ConnConfig.Host)
	assert.Equal(t, uint16(5432), cfg.ConnConfig.Port)
	assert.Equal(t, `it's a \secret`, cfg.ConnConfig.Password)
	assert.Equal(t, "app_db", cfg.ConnConfig.Database)
}

func TestPostgresDSNWithoutSecret(t *testing.T) {
	dsn := postgresDSN(models.ConnectionParams{Host: "localhost", Port: 6543, Username: "me", Database: "postgres"})
	assert.NotContains(t, dsn, "password")
	assert.Contains(t, dsn, "port=6543")
}

func TestTranslatePostgresQuery(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want dberr.QueryKind
	}{
		{"syntax", &pgconn.PgError{Code: "42601", Message: `syntax error at or near "SELEC"`}, dberr.Syntax},
		{"permission", &pgconn.PgError{Code: "42501", Message: "permission denied for table users"}, dberr.Permission},
		{"statement timeout", &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"}, dberr.QueryTimeout},
		{"lock not available", &pgconn.PgError{Code: "55P03", Message: "could not obtain lock"}, dberr.QueryTimeout},
		{"admin shutdown", &pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"}, dberr.ConnectionLost},
		{"connection failure", &pgconn.PgError{Code: "08006", Message: "connection failure"}, dberr.ConnectionLost},
		{"division by zero", &pgconn.PgError{Code: "22012", Message: "division by zero"}, dberr.Other},
		{"undefined table", &pgconn.PgError{Code: "42P01", Message: `relation "nope" does not exist`}, dberr.Other},
		{"conn closed", errors.New("conn closed"), dberr.ConnectionLost},
		{"canceled", context.Canceled, dberr.Other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := dberr.QueryKindOf(translatePostgresQuery(tt.err))
			assert.True(t, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestTranslatePostgresQueryKeepsServerMessage(t *testing.T) {
	err := translatePostgresQuery(&pgconn.PgError{Severity: "ERROR", Code: "22012", Message: "division by zero"})
	assert.Contains(t, err.Error(), "division by zero")
}

func TestTranslatePostgresConnect(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want dberr.ConnectKind
	}{
		{"bad password", &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}, dberr.AuthRejected},
		{"no pg_hba entry", &pgconn.PgError{Code: "28000", Message: "no pg_hba.conf entry"}, dberr.AuthRejected},
		{"unknown database", &pgconn.PgError{Code: "3D000", Message: `database "nope" does not exist`}, dberr.AuthRejected},
		{"protocol violation", &pgconn.PgError{Code: "08P01", Message: "protocol violation"}, dberr.ProtocolMismatch},
		{"too many connections", &pgconn.PgError{Code: "53300", Message: "too many connections"}, dberr.Unreachable},
		{"deadline", context.DeadlineExceeded, dberr.ConnectTimeout},
		{"tls", errors.New("tls error: server refused TLS connection"), dberr.ProtocolMismatch},
		{"refused", errors.New("dial error: connection refused"), dberr.Unreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := dberr.ConnectKindOf(translatePostgresConnect(tt.err))
			assert.True(t, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestPostgresClosedClient(t *testing.T) {
	c := &postgresClient{params: models.ConnectionParams{Database: "app_db"}, opts: newOptions(nil)}

	require.NoError(t, c.Close())
	assert.Equal(t, "app_db", c.CurrentDatabase())

	_, err := c.ListTables(context.Background())
	assert.ErrorIs(t, err, dberr.ErrNotConnected)
	assert.ErrorIs(t, c.UseDatabase(context.Background(), "test_db"), dberr.ErrNotConnected)
}

func TestConnectUnknownEngine(t *testing.T) {
	_, err := Connect(context.Background(), models.EngineKind(99), models.ConnectionParams{})
	kind, ok := dberr.ConnectKindOf(err)
	require.True(t, ok)
	assert.Equal(t, dberr.ProtocolMismatch, kind)
}
