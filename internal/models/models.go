package models

import (
	"time"
)

// DatabaseSummary is one entry of a database listing
type DatabaseSummary struct {
	Name string
	// Owner for server engines, backing file for SQLite
	Detail string
}

// TableSummary is one entry of a table listing
type TableSummary struct {
	Name   string
	Schema string
	Kind   string // "table" or "view"
}

// QualifiedName returns schema.name, or just name when no schema applies
func (t TableSummary) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ColumnDescriptor describes a single column of a table
type ColumnDescriptor struct {
	Name         string
	DataType     string
	IsNullable   bool
	DefaultValue string
	IsPrimaryKey bool
	IsForeignKey bool
	IsUnique     bool
}

// TableSchema is the ordered column list of a table, in declaration order
type TableSchema struct {
	Table   string
	Columns []ColumnDescriptor
}

// QueryResult is the outcome of a single statement. It is never mutated
// after the adapter returns it.
type QueryResult struct {
	SQL          string
	Columns      []string
	Rows         [][]string
	RowCount     int
	RowsAffected int64
	Duration     time.Duration
	Truncated    bool
	Message      string
	Error        error
}

// HasRows reports whether the statement produced a result set
func (r *QueryResult) HasRows() bool {
	return r != nil && len(r.Columns) > 0
}
