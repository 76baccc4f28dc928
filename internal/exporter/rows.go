package exporter

import (
	"strconv"
	"strings"

	"depivot/pkg/contracts/domain"
)

// Derived metadata column names appended after the identifier,
// variable and value fields.
const (
	ColumnDataType    = "DataType"
	ColumnReleaseDate = "ReleaseDate"
	ColumnFiscalYear  = "FiscalYear"
	ColumnPeriod      = "Period"
	ColumnSourceFile  = "SourceFile"
)

// DataHeader builds the output header for a long table: identifier
// columns first, then variable and value, then the derived metadata.
func DataHeader(long *domain.LongTable) []string {
	header := make([]string, 0, len(long.IDColumns)+6)
	header = append(header, long.IDColumns...)
	header = append(header, long.VariableName, long.ValueName,
		ColumnDataType, ColumnReleaseDate, ColumnFiscalYear, ColumnPeriod)
	return header
}

// dataRow converts one record to cell values in header order. Missing
// values and zero-valued year/period fields become nil so they render
// as blank cells.
func dataRow(rec domain.LongRecord) []interface{} {
	row := make([]interface{}, 0, len(rec.IDValues)+6)
	for _, cell := range rec.IDValues {
		row = append(row, cellValue(cell))
	}
	row = append(row, rec.Variable)
	if domain.IsMissing(rec.Value) {
		row = append(row, nil)
	} else {
		row = append(row, rec.Value)
	}
	row = append(row, rec.DataType, blankIfEmpty(rec.ReleaseDate),
		blankIfZero(rec.FiscalYear), blankIfZero(rec.Period))
	return row
}

// ValidationHeader is the fixed header of the validation report.
func ValidationHeader() []string {
	return []string{
		ColumnSourceFile, "Sheet", "Identifier", "Category",
		"SourceTotal", "ProcessedTotal", "Difference", "Match",
	}
}

// validationRow converts one validation record to cell values.
// Identifier values collapse into a single pipe-separated field so the
// report has a fixed width regardless of identifier arity.
func validationRow(rec domain.ValidationRecord) []interface{} {
	return []interface{}{
		rec.SourceFile,
		rec.Sheet,
		strings.Join(rec.IDValues, " | "),
		rec.Category,
		rec.SourceTotal,
		rec.ProcessedTotal,
		rec.Difference,
		rec.Match,
	}
}

func cellValue(cell domain.Cell) interface{} {
	switch cell.Kind {
	case domain.CellNumber:
		return cell.Number
	case domain.CellText:
		return cell.Text
	default:
		return nil
	}
}

func blankIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func blankIfZero(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

// stringify renders a cell value for CSV output.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}
