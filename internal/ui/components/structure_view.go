package components

import (
	"strconv"
	"strings"

	"github.com/0xataru/dfox/internal/models"
	"github.com/0xataru/dfox/internal/ui/theme"
)

// StructureView shows the columns of a table in declaration order
type StructureView struct {
	Schema *models.TableSchema
	Cursor int
	Width  int
	Height int
	Theme  theme.Theme
}

// StructureColumns are the headings of the structure table
var StructureColumns = []string{"#", "Column", "Type", "Nullable", "Default", "Keys"}

// StructureRows flattens a schema into display rows
func StructureRows(schema *models.TableSchema) [][]string {
	if schema == nil {
		return nil
	}
	rows := make([][]string, 0, len(schema.Columns))
	for i, col := range schema.Columns {
		nullable := "NO"
		if col.IsNullable {
			nullable = "YES"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			col.Name,
			col.DataType,
			nullable,
			col.DefaultValue,
			keyFlags(col),
		})
	}
	return rows
}

func keyFlags(col models.ColumnDescriptor) string {
	var flags []string
	if col.IsPrimaryKey {
		flags = append(flags, "PK")
	}
	if col.IsForeignKey {
		flags = append(flags, "FK")
	}
	if col.IsUnique && !col.IsPrimaryKey {
		flags = append(flags, "UQ")
	}
	return strings.Join(flags, ",")
}

// View renders the structure table
func (sv *StructureView) View() string {
	if sv.Schema == nil {
		return sv.Theme.Faint().Italic(true).Render("No table selected")
	}
	tv := TableView{
		Columns:     StructureColumns,
		Rows:        StructureRows(sv.Schema),
		SelectedRow: sv.Cursor,
		Width:       sv.Width,
		Height:      sv.Height,
		Theme:       sv.Theme,
	}
	return tv.View()
}
