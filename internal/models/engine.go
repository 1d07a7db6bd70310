package models

import (
	"fmt"
	"strings"
)

// EngineKind identifies a supported database engine
type EngineKind int

const (
	Postgres EngineKind = iota
	MySQL
	SQLite
)

// Engines lists the supported engines in menu order
func Engines() []EngineKind {
	return []EngineKind{Postgres, MySQL, SQLite}
}

// String returns the display name
func (e EngineKind) String() string {
	switch e {
	case Postgres:
		return "PostgreSQL"
	case MySQL:
		return "MySQL"
	case SQLite:
		return "SQLite"
	default:
		return "Unknown"
	}
}

// Key returns the identifier used in config files and logs
func (e EngineKind) Key() string {
	switch e {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// DefaultPort returns the engine's well-known port, 0 for file-based engines
func (e EngineKind) DefaultPort() int {
	switch e {
	case Postgres:
		return 5432
	case MySQL:
		return 3306
	default:
		return 0
	}
}

// FileBased reports whether the engine addresses a local file instead of a server
func (e EngineKind) FileBased() bool {
	return e == SQLite
}

// ParseEngine resolves a config key or display name to an EngineKind
func ParseEngine(s string) (EngineKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("unsupported engine %q", s)
	}
}
