package dataprocessing

import (
	"strings"

	"depivot/pkg/contracts/domain"
)

// DefaultSummaryPatterns marks rows that aggregate other rows. Matching is
// substring-based, so "Total Revenue" and even "Totally Fine" match "total".
// That is long-standing, documented behavior; callers needing stricter
// matching supply their own pattern set, which replaces this one entirely.
func DefaultSummaryPatterns() []string {
	return []string{
		"grand total",
		"total",
		"subtotal",
		"sub-total",
		"sub total",
		"sum",
		"summary",
	}
}

// IsSummaryRow reports whether the given wide row is a subtotal or
// grand-total artifact: any identifier field whose trimmed, lowercased
// value contains any pattern as a substring.
func IsSummaryRow(table *domain.WideTable, row int, idColumns []string, patterns []string) bool {
	if len(patterns) == 0 {
		patterns = DefaultSummaryPatterns()
	}
	for _, name := range idColumns {
		idx := table.ColumnIndex(name)
		if idx < 0 {
			continue
		}
		value := strings.ToLower(strings.TrimSpace(table.Cell(row, idx).String()))
		if value == "" {
			continue
		}
		for _, pattern := range patterns {
			if strings.Contains(value, pattern) {
				return true
			}
		}
	}
	return false
}

// FilterSummaryRows returns a copy of the table without summary rows and
// the number of rows removed. Filtering only applies when identifier
// columns are configured; with a synthetic ordinal identifier there is
// nothing to match against.
func FilterSummaryRows(table *domain.WideTable, idColumns []string, patterns []string) (*domain.WideTable, int) {
	if len(idColumns) == 0 {
		return table, 0
	}

	rows := table.RowCount()
	keep := make([]int, 0, rows)
	for row := 0; row < rows; row++ {
		if !IsSummaryRow(table, row, idColumns, patterns) {
			keep = append(keep, row)
		}
	}
	if len(keep) == rows {
		return table, 0
	}

	filtered := &domain.WideTable{
		SourceFile: table.SourceFile,
		Sheet:      table.Sheet,
		Columns:    make([]domain.Column, len(table.Columns)),
	}
	for i, col := range table.Columns {
		cells := make([]domain.Cell, len(keep))
		for j, row := range keep {
			cells[j] = table.Cell(row, i)
		}
		filtered.Columns[i] = domain.Column{Name: col.Name, Cells: cells}
	}
	return filtered, rows - len(keep)
}
