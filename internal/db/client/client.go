// Package client implements the database capability set once per engine.
// Driver errors never leave this package untranslated: every method returns
// a *dberr.ConnectError or *dberr.QueryError.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/0xataru/dfox/internal/db/dberr"
	"github.com/0xataru/dfox/internal/logx"
	"github.com/0xataru/dfox/internal/models"
	"pkt.systems/pslog"
)

// DefaultRowLimit caps the rows kept from a single result set
const DefaultRowLimit = 1000

// Client is the capability set shared by every engine
type Client interface {
	Engine() models.EngineKind
	CurrentDatabase() string
	ListDatabases(ctx context.Context) ([]models.DatabaseSummary, error)
	UseDatabase(ctx context.Context, name string) error
	ListTables(ctx context.Context) ([]models.TableSummary, error)
	DescribeTable(ctx context.Context, name string) (*models.TableSchema, error)
	ExecuteQuery(ctx context.Context, query string) (*models.QueryResult, error)
	Close() error
}

// Options tunes a client
type Options struct {
	RowLimit       int
	ConnectTimeout time.Duration
	Logger         pslog.Logger
}

// Option configures Options
type Option func(*Options)

// WithRowLimit sets the maximum number of rows kept per result
func WithRowLimit(n int) Option {
	return func(o *Options) {
		o.RowLimit = n
	}
}

// WithConnectTimeout sets the driver dial timeout
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ConnectTimeout = d
	}
}

// WithLogger sets the logger used for best-effort failures
func WithLogger(log pslog.Logger) Option {
	return func(o *Options) {
		o.Logger = log
	}
}

func newOptions(opts []Option) Options {
	o := Options{
		RowLimit:       DefaultRowLimit,
		ConnectTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.Logger = logx.Or(o.Logger)
	return o
}

// Connect opens a client for the given engine
func Connect(ctx context.Context, engine models.EngineKind, params models.ConnectionParams, opts ...Option) (Client, error) {
	o := newOptions(opts)
	switch engine {
	case models.Postgres:
		return connectPostgres(ctx, params, o)
	case models.MySQL:
		return connectMySQL(ctx, params, o)
	case models.SQLite:
		return connectSQLite(ctx, params, o)
	default:
		return nil, dberr.NewConnectError(dberr.ProtocolMismatch, fmt.Errorf("unsupported engine %s", engine))
	}
}
