// Package connection owns the single live database client of a dfox run.
package connection

import (
	"context"
	"sync"
	"time"

	"github.com/0xataru/dfox/internal/db/client"
	"github.com/0xataru/dfox/internal/db/dberr"
	"github.com/0xataru/dfox/internal/logx"
	"github.com/0xataru/dfox/internal/models"
	"github.com/google/uuid"
	"pkt.systems/pslog"
)

// Dialer opens a client for an engine
type Dialer func(ctx context.Context, engine models.EngineKind, params models.ConnectionParams) (client.Client, error)

// Session holds zero or one client. Every call holds the read lock for its
// whole duration, so Disconnect waits for in-flight calls to return.
type Session struct {
	mu     sync.RWMutex
	dial   Dialer
	client client.Client
	info   models.ConnectionInfo
	logger pslog.Logger
}

// Option configures a Session
type Option func(*Session)

// WithDialer replaces the default client.Connect dialer
func WithDialer(d Dialer) Option {
	return func(s *Session) {
		s.dial = d
	}
}

// WithLogger sets the session logger
func WithLogger(log pslog.Logger) Option {
	return func(s *Session) {
		s.logger = log
	}
}

// NewSession creates a disconnected session
func NewSession(opts ...Option) *Session {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logx.Or(s.logger)
	if s.dial == nil {
		s.dial = func(ctx context.Context, engine models.EngineKind, params models.ConnectionParams) (client.Client, error) {
			return client.Connect(ctx, engine, params, client.WithLogger(s.logger))
		}
	}
	return s
}

// Connect tears down any current client, then dials a new one. On failure
// the session stays disconnected.
func (s *Session) Connect(ctx context.Context, engine models.EngineKind, params models.ConnectionParams) (models.ConnectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	c, err := s.dial(ctx, engine, params)
	if err != nil {
		s.logger.Warn("session connect failed", "engine", engine.Key(), "target", params.Label(engine), "error", err)
		return models.ConnectionInfo{}, err
	}

	s.client = c
	s.info = models.ConnectionInfo{
		ID:          uuid.NewString(),
		Engine:      engine,
		Label:       params.Label(engine),
		Database:    c.CurrentDatabase(),
		ConnectedAt: time.Now(),
	}
	s.logger.Info("session connected", "engine", engine.Key(), "target", s.info.Label, "id", s.info.ID)
	return s.info, nil
}

// Disconnect closes the current client. It is safe to call repeatedly and
// never fails; close errors are only logged.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// DisconnectID closes the current client only if it is the connection
// identified by id. It reports whether a client was closed.
func (s *Session) DisconnectID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || s.info.ID != id {
		return false
	}
	s.closeLocked()
	return true
}

func (s *Session) closeLocked() {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		s.logger.Warn("session disconnect failed", "id", s.info.ID, "error", err)
	} else {
		s.logger.Info("session disconnected", "id", s.info.ID)
	}
	s.client = nil
	s.info = models.ConnectionInfo{}
}

// IsConnected reports whether a client is held
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

// CurrentEngine returns the engine of the held client
func (s *Session) CurrentEngine() (models.EngineKind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return 0, false
	}
	return s.info.Engine, true
}

// Info returns metadata about the held client
func (s *Session) Info() (models.ConnectionInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return models.ConnectionInfo{}, false
	}
	info := s.info
	info.Database = s.client.CurrentDatabase()
	return info, true
}

// with runs fn against the held client under the read lock
func (s *Session) with(fn func(c client.Client) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return dberr.ErrNotConnected
	}
	return fn(s.client)
}

func (s *Session) ListDatabases(ctx context.Context) ([]models.DatabaseSummary, error) {
	var out []models.DatabaseSummary
	err := s.with(func(c client.Client) error {
		var err error
		out, err = c.ListDatabases(ctx)
		return err
	})
	return out, err
}

func (s *Session) UseDatabase(ctx context.Context, name string) error {
	return s.with(func(c client.Client) error {
		return c.UseDatabase(ctx, name)
	})
}

func (s *Session) ListTables(ctx context.Context) ([]models.TableSummary, error) {
	var out []models.TableSummary
	err := s.with(func(c client.Client) error {
		var err error
		out, err = c.ListTables(ctx)
		return err
	})
	return out, err
}

func (s *Session) DescribeTable(ctx context.Context, name string) (*models.TableSchema, error) {
	var out *models.TableSchema
	err := s.with(func(c client.Client) error {
		var err error
		out, err = c.DescribeTable(ctx, name)
		return err
	})
	return out, err
}

func (s *Session) ExecuteQuery(ctx context.Context, sql string) (*models.QueryResult, error) {
	var out *models.QueryResult
	err := s.with(func(c client.Client) error {
		var err error
		out, err = c.ExecuteQuery(ctx, sql)
		return err
	})
	return out, err
}
