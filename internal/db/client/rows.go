package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/0xataru/dfox/internal/models"
)

const nullText = "NULL"

// rowKeywords lists the statement prefixes that produce a result set
var rowKeywords = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"PRAGMA":   true,
	"VALUES":   true,
	"TABLE":    true,
}

// formatValue converts a driver value to its display text
func formatValue(val any) string {
	switch v := val.(type) {
	case nil:
		return nullText
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// leadingKeyword returns the first keyword of a statement, upper-cased,
// skipping whitespace, comments and opening parentheses.
func leadingKeyword(query string) string {
	s := query
	for {
		s = strings.TrimLeft(s, " \t\r\n(")
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
				continue
			}
			return ""
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
				continue
			}
			return ""
		}
		break
	}
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end < 0 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}

// returnsRows reports whether a statement should be run as a query
func returnsRows(query string) bool {
	return rowKeywords[leadingKeyword(query)]
}

// scanRows reads a result set as strings, stopping after limit rows.
// A limit of zero reads everything.
func scanRows(rows *sql.Rows, limit int) ([]string, [][]string, bool, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, false, err
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var data [][]string
	truncated := false
	for rows.Next() {
		if limit > 0 && len(data) >= limit {
			truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, false, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, err
	}
	return columns, data, truncated, nil
}

// runSQL executes one statement on a database/sql handle
func runSQL(ctx context.Context, db *sql.DB, query string, limit int, translate func(error) error) (*models.QueryResult, error) {
	start := time.Now()
	result := &models.QueryResult{SQL: query}

	if returnsRows(query) {
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return nil, translate(err)
		}
		defer func() { _ = rows.Close() }()

		columns, data, truncated, err := scanRows(rows, limit)
		if err != nil {
			return nil, translate(err)
		}
		result.Columns = columns
		result.Rows = data
		result.RowCount = len(data)
		result.Truncated = truncated
		result.Message = rowsMessage(len(data), truncated)
	} else {
		res, err := db.ExecContext(ctx, query)
		if err != nil {
			return nil, translate(err)
		}
		if n, err := res.RowsAffected(); err == nil {
			result.RowsAffected = n
		}
		result.Message = fmt.Sprintf("Statement executed, %d rows affected", result.RowsAffected)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// queryStrings runs a metadata query and returns every row as strings
func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([][]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	_, data, _, err := scanRows(rows, 0)
	return data, err
}

func rowsMessage(n int, truncated bool) string {
	if truncated {
		return fmt.Sprintf("%d rows (truncated)", n)
	}
	if n == 1 {
		return "1 row"
	}
	return fmt.Sprintf("%d rows", n)
}

// splitQualified splits "schema.table" into its parts
func splitQualified(name string) (string, string) {
	if i := strings.LastIndexByte(name, '.'); i > 0 && i < len(name)-1 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// quoteIdent quotes an identifier with the given quote character
func quoteIdent(name string, quote string) string {
	return quote + strings.ReplaceAll(name, quote, quote+quote) + quote
}
