// Package connection_history remembers the connections an operator used so
// the form can be prefilled on the next run.
package connection_history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/0xataru/dfox/internal/logx"
	"github.com/0xataru/dfox/internal/models"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"pkt.systems/pslog"
)

// FileName is the history file inside the config directory
const FileName = "connection_history.yaml"

// Manager manages connection history
type Manager struct {
	mu      sync.Mutex
	path    string
	history []models.ConnectionHistoryEntry
	secrets SecretStore
	logger  pslog.Logger
	now     func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithSecretStore stores secrets alongside entries. Without one, secrets
// are never persisted.
func WithSecretStore(s SecretStore) Option {
	return func(m *Manager) {
		m.secrets = s
	}
}

// WithLogger sets the manager logger
func WithLogger(log pslog.Logger) Option {
	return func(m *Manager) {
		m.logger = log
	}
}

// NewManager loads the history file from configDir if it exists
func NewManager(configDir string, opts ...Option) (*Manager, error) {
	m := &Manager{
		path:    filepath.Join(configDir, FileName),
		history: []models.ConnectionHistoryEntry{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logx.Or(m.logger)

	if _, err := os.Stat(m.path); err == nil {
		if err := m.load(); err != nil {
			return nil, fmt.Errorf("failed to load connection history: %w", err)
		}
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read connection history file: %w", err)
	}
	if err := yaml.Unmarshal(data, &m.history); err != nil {
		return fmt.Errorf("failed to parse connection history: %w", err)
	}
	return nil
}

func (m *Manager) saveLocked() error {
	data, err := yaml.Marshal(m.history)
	if err != nil {
		return fmt.Errorf("failed to marshal connection history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write connection history file: %w", err)
	}
	return nil
}

// Add records a successful connection, updating the entry that matches the
// same engine, address, database and user
func (m *Manager) Add(engine models.EngineKind, params models.ConnectionParams) (models.ConnectionHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.secrets != nil && params.Secret != "" {
		if err := m.secrets.Save(SecretKey(engine, params), params.Secret); err != nil {
			// the entry is still worth keeping without its secret
			m.logger.Warn("connection history secret save failed", "engine", engine.Key(), "error", err)
		}
	}

	now := m.now()
	for i, entry := range m.history {
		if entry.Engine == engine.Key() &&
			entry.Host == params.Host &&
			entry.Port == params.Port &&
			entry.Database == params.Database &&
			entry.User == params.Username {
			m.history[i].LastUsed = now
			m.history[i].UsageCount++
			return m.history[i], m.saveLocked()
		}
	}

	entry := models.ConnectionHistoryEntry{
		ID:         uuid.New().String(),
		Name:       params.Label(engine),
		Engine:     engine.Key(),
		Host:       params.Host,
		Port:       params.Port,
		Database:   params.Database,
		User:       params.Username,
		LastUsed:   now,
		UsageCount: 1,
		CreatedAt:  now,
	}
	m.history = append(m.history, entry)
	return entry, m.saveLocked()
}

// GetAll returns a copy of every entry
func (m *Manager) GetAll() []models.ConnectionHistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ConnectionHistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}

// GetRecent returns the most recently used connections
func (m *Manager) GetRecent(limit int) []models.ConnectionHistoryEntry {
	sorted := m.GetAll()
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastUsed.After(sorted[j].LastUsed)
	})
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted
}

// GetMostUsed returns the most frequently used connections
func (m *Manager) GetMostUsed(limit int) []models.ConnectionHistoryEntry {
	sorted := m.GetAll()
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UsageCount > sorted[j].UsageCount
	})
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted
}

// Last returns the most recently used connection for engine
func (m *Manager) Last(engine models.EngineKind) (models.ConnectionHistoryEntry, bool) {
	for _, entry := range m.GetRecent(0) {
		if entry.Engine == engine.Key() {
			return entry, true
		}
	}
	return models.ConnectionHistoryEntry{}, false
}

// Params returns the entry's params with its stored secret, if any
func (m *Manager) Params(entry models.ConnectionHistoryEntry) models.ConnectionParams {
	params := entry.Params()
	if m.secrets == nil {
		return params
	}

	engine, err := models.ParseEngine(entry.Engine)
	if err != nil {
		return params
	}
	secret, err := m.secrets.Get(SecretKey(engine, params))
	switch {
	case err == nil:
		params.Secret = secret
	case !errors.Is(err, ErrSecretNotFound):
		m.logger.Warn("connection history secret read failed", "engine", entry.Engine, "error", err)
	}
	return params
}

// Delete removes an entry and its secret
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, entry := range m.history {
		if entry.ID != id {
			continue
		}
		if m.secrets != nil {
			if engine, err := models.ParseEngine(entry.Engine); err == nil {
				_ = m.secrets.Delete(SecretKey(engine, entry.Params()))
			}
		}
		m.history = append(m.history[:i], m.history[i+1:]...)
		return m.saveLocked()
	}
	return fmt.Errorf("connection history entry with ID '%s' not found", id)
}
