package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xataru/dfox/internal/models"
	"github.com/atotto/clipboard"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Format is a result file format
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat resolves a config value, defaulting to CSV
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "table", "txt", "text":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatTable:
		return ".txt"
	default:
		return ".csv"
	}
}

// cleanCell keeps a cell on one line and free of the delimiter
func cleanCell(cell, delimiter string) string {
	cell = strings.ReplaceAll(cell, "\r\n", " ")
	cell = strings.ReplaceAll(cell, "\n", " ")
	if delimiter != "" {
		cell = strings.ReplaceAll(cell, delimiter, " ")
	}
	return cell
}

func joinLine(cells []string, delimiter string) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = cleanCell(c, delimiter)
	}
	return strings.Join(parts, delimiter)
}

// RowLines renders one row as clipboard lines, header first
func RowLines(columns, row []string, delimiter string) []string {
	return []string{joinLine(columns, delimiter), joinLine(row, delimiter)}
}

// ResultLines renders a whole result as clipboard lines, header first
func ResultLines(result *models.QueryResult, delimiter string) []string {
	if !result.HasRows() {
		return nil
	}
	lines := make([]string, 0, len(result.Rows)+1)
	lines = append(lines, joinLine(result.Columns, delimiter))
	for _, row := range result.Rows {
		lines = append(lines, joinLine(row, delimiter))
	}
	return lines
}

// Clipboard is the system clipboard
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes through atotto/clipboard
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// CopyLines writes lines to the clipboard, one per line
func CopyLines(cb Clipboard, lines []string) error {
	if err := cb.WriteAll(strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// ToCSV writes a result to a CSV file
func ToCSV(result *models.QueryResult, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	if err := writer.Write(result.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range result.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ToJSON writes a result as an array of column/value objects
func ToJSON(result *models.QueryResult, path string) error {
	records := make([]map[string]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		rec := make(map[string]string, len(result.Columns))
		for i, col := range result.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result to JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	return nil
}

// RenderTable renders a result as a boxed text table
func RenderTable(result *models.QueryResult) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)

	header := make(table.Row, len(result.Columns))
	for i, col := range result.Columns {
		header[i] = col
	}
	tw.AppendHeader(header)

	for _, row := range result.Rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

// ToTable writes a result as a text table
func ToTable(result *models.QueryResult, path string) error {
	if err := os.WriteFile(path, []byte(RenderTable(result)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write table file: %w", err)
	}
	return nil
}

// ToFile writes a result into dir with a timestamped name and returns its path
func ToFile(result *models.QueryResult, dir string, format Format, now time.Time) (string, error) {
	if !result.HasRows() {
		return "", fmt.Errorf("nothing to export")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, "dfox-result-"+now.Format("20060102-150405")+format.extension())
	var err error
	switch format {
	case FormatJSON:
		err = ToJSON(result, path)
	case FormatTable:
		err = ToTable(result, path)
	default:
		err = ToCSV(result, path)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}
