package models

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionParams holds what the connection form collects.
// For SQLite, Host carries the database file path.
type ConnectionParams struct {
	Host     string
	Port     int
	Username string
	Secret   string
	Database string
}

// Validate checks the params are usable for the given engine
func (p ConnectionParams) Validate(engine EngineKind) error {
	if strings.TrimSpace(p.Host) == "" {
		if engine.FileBased() {
			return fmt.Errorf("database file is required")
		}
		return fmt.Errorf("hostname is required")
	}
	if engine.FileBased() {
		return nil
	}
	if strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", p.Port)
	}
	return nil
}

// WithDatabase returns a copy targeting another database
func (p ConnectionParams) WithDatabase(name string) ConnectionParams {
	p.Database = name
	return p
}

// Label renders the params without the secret
func (p ConnectionParams) Label(engine EngineKind) string {
	if engine.FileBased() {
		return p.Host
	}
	label := fmt.Sprintf("%s@%s:%d", p.Username, p.Host, p.Port)
	if p.Database != "" {
		label += "/" + p.Database
	}
	return label
}

// ConnectionInfo describes the live connection held by the session
type ConnectionInfo struct {
	ID          string
	Engine      EngineKind
	Label       string
	Database    string
	ConnectedAt time.Time
}

// ConnectionHistoryEntry represents a remembered connection
type ConnectionHistoryEntry struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Engine   string `yaml:"engine"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	// The secret lives in the keyring, never in this file
	LastUsed   time.Time `yaml:"last_used"`
	UsageCount int       `yaml:"usage_count"`
	CreatedAt  time.Time `yaml:"created_at"`
}

// Params converts a history entry to ConnectionParams without the secret
func (e *ConnectionHistoryEntry) Params() ConnectionParams {
	return ConnectionParams{
		Host:     e.Host,
		Port:     e.Port,
		Username: e.User,
		Database: e.Database,
	}
}
