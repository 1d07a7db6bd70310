// Package clienttest provides an in-memory client.Client for tests.
package clienttest

import (
	"context"
	"errors"
	"sync"

	"github.com/0xataru/dfox/internal/db/client"
	"github.com/0xataru/dfox/internal/db/dberr"
	"github.com/0xataru/dfox/internal/models"
)

// Fake is a scripted client. Tables are grouped per database and only the
// current database's tables are listed.
type Fake struct {
	Kind      models.EngineKind
	Databases []string
	Tables    map[string][]string
	Schemas   map[string]*models.TableSchema
	Results   map[string]*models.QueryResult
	Errors    map[string]error
	CloseErr  error

	// Block, when set, holds ListTables until it is closed or ctx is done
	Block chan struct{}

	mu         sync.Mutex
	current    string
	closed     bool
	closeCalls int
}

// NewFake returns a fake positioned on its first database
func NewFake(kind models.EngineKind, databases ...string) *Fake {
	f := &Fake{
		Kind:      kind,
		Databases: databases,
		Tables:    make(map[string][]string),
		Schemas:   make(map[string]*models.TableSchema),
		Results:   make(map[string]*models.QueryResult),
		Errors:    make(map[string]error),
	}
	if len(databases) > 0 {
		f.current = databases[0]
	}
	return f
}

// Dialer returns a dial func accepting only the given secret
func (f *Fake) Dialer(secret string) func(ctx context.Context, engine models.EngineKind, params models.ConnectionParams) (client.Client, error) {
	return func(ctx context.Context, engine models.EngineKind, params models.ConnectionParams) (client.Client, error) {
		if err := ctx.Err(); err != nil {
			return nil, dberr.NewConnectError(dberr.ConnectTimeout, err)
		}
		if params.Secret != secret {
			return nil, dberr.NewConnectError(dberr.AuthRejected, errors.New("password authentication failed"))
		}
		f.mu.Lock()
		f.Kind = engine
		f.closed = false
		if params.Database != "" {
			f.current = params.Database
		}
		f.mu.Unlock()
		return f, nil
	}
}

// CloseCalls reports how many times Close ran
func (f *Fake) CloseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

func (f *Fake) Engine() models.EngineKind {
	return f.Kind
}

func (f *Fake) CurrentDatabase() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Fake) ListDatabases(ctx context.Context) ([]models.DatabaseSummary, error) {
	if err := f.err("list_databases"); err != nil {
		return nil, err
	}
	out := make([]models.DatabaseSummary, 0, len(f.Databases))
	for _, name := range f.Databases {
		out = append(out, models.DatabaseSummary{Name: name})
	}
	return out, nil
}

func (f *Fake) UseDatabase(ctx context.Context, name string) error {
	if err := f.err("use_database"); err != nil {
		return err
	}
	for _, db := range f.Databases {
		if db == name {
			f.mu.Lock()
			f.current = name
			f.mu.Unlock()
			return nil
		}
	}
	return dberr.Errorf(dberr.Other, "database %q does not exist", name)
}

func (f *Fake) ListTables(ctx context.Context) ([]models.TableSummary, error) {
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.err("list_tables"); err != nil {
		return nil, err
	}
	var out []models.TableSummary
	for _, name := range f.Tables[f.CurrentDatabase()] {
		out = append(out, models.TableSummary{Name: name, Kind: "table"})
	}
	return out, nil
}

func (f *Fake) DescribeTable(ctx context.Context, name string) (*models.TableSchema, error) {
	if err := f.err("describe_table"); err != nil {
		return nil, err
	}
	schema, ok := f.Schemas[name]
	if !ok {
		return nil, dberr.Errorf(dberr.Other, "table %q not found", name)
	}
	return schema, nil
}

func (f *Fake) ExecuteQuery(ctx context.Context, sql string) (*models.QueryResult, error) {
	if err := f.err(sql); err != nil {
		return nil, err
	}
	if result, ok := f.Results[sql]; ok {
		return result, nil
	}
	return &models.QueryResult{SQL: sql, Message: "0 rows"}, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCalls++
	return f.CloseErr
}

func (f *Fake) err(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return dberr.NewQueryError(dberr.ConnectionLost, errors.New("client closed"))
	}
	return f.Errors[key]
}
