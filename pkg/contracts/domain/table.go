package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CellKind identifies which variant a Cell holds.
type CellKind int

const (
	CellBlank CellKind = iota
	CellNumber
	CellText
)

// Cell is a single spreadsheet cell. Cells are heterogeneous: a column may
// mix numbers, free text and blanks, so the kind travels with the value.
type Cell struct {
	Kind   CellKind
	Number float64
	Text   string
}

// BlankCell returns the blank cell value.
func BlankCell() Cell {
	return Cell{Kind: CellBlank}
}

// NumberCell returns a numeric cell.
func NumberCell(v float64) Cell {
	return Cell{Kind: CellNumber, Number: v}
}

// TextCell returns a text cell.
func TextCell(s string) Cell {
	return Cell{Kind: CellText, Text: s}
}

// IsBlank reports whether the cell holds no value.
func (c Cell) IsBlank() bool {
	return c.Kind == CellBlank
}

// String renders the cell the way it would appear in a sheet.
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellText:
		return c.Text
	default:
		return ""
	}
}

// MarshalJSON encodes blanks as null, numbers as JSON numbers and text as
// JSON strings so API payloads look like the original sheet.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellNumber:
		return json.Marshal(c.Number)
	case CellText:
		return json.Marshal(c.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, numbers and strings.
func (c *Cell) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*c = BlankCell()
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TextCell(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("cell must be null, number or string: %w", err)
	}
	*c = NumberCell(v)
	return nil
}

// Column is one named column of a wide table.
type Column struct {
	Name  string `json:"name"`
	Cells []Cell `json:"cells"`
}

// WideTable is one sheet of one source file in wide format: one row per
// entity, one column per period or category. All columns have the same
// length; Validate enforces that before any processing starts.
type WideTable struct {
	SourceFile string   `json:"source_file,omitempty"`
	Sheet      string   `json:"sheet,omitempty"`
	Columns    []Column `json:"columns"`
}

// RowCount returns the number of data rows.
func (t *WideTable) RowCount() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

// ColumnNames returns the column names in sheet order.
func (t *WideTable) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (t *WideTable) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// Cell returns the cell at (row, column index). Short rows read as blank.
func (t *WideTable) Cell(row, col int) Cell {
	if col < 0 || col >= len(t.Columns) {
		return BlankCell()
	}
	cells := t.Columns[col].Cells
	if row < 0 || row >= len(cells) {
		return BlankCell()
	}
	return cells[row]
}

// Validate checks the equal-column-length invariant.
func (t *WideTable) Validate() error {
	if len(t.Columns) == 0 {
		return nil
	}
	want := len(t.Columns[0].Cells)
	for _, col := range t.Columns[1:] {
		if len(col.Cells) != want {
			return fmt.Errorf("column %q has %d rows, expected %d", col.Name, len(col.Cells), want)
		}
	}
	return nil
}
