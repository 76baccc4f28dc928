package reader

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "depivot/internal/errors"
	"depivot/pkg/contracts/domain"
)

// Options controls which sheets are read and where the header sits.
type Options struct {
	// SheetNames restricts reading to the named sheets. A requested
	// sheet missing from the workbook is an error. Empty means all.
	SheetNames []string
	// SkipSheets excludes sheets by name after selection.
	SkipSheets []string
	// HeaderRow is the zero-based row holding column names. Rows
	// above it are ignored.
	HeaderRow int
}

// Reader loads Excel workbooks into wide tables.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a workbook reader. A nil logger falls back to the
// process default.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger}
}

// ReadFile opens the workbook at path and converts every selected
// sheet into a WideTable. Sheets with no rows at or below the header
// row are skipped with a warning rather than failing the file.
func (r *Reader) ReadFile(path string, opts Options) ([]*domain.WideTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open workbook", err).
			WithContext("path", path)
	}
	defer f.Close()

	sheets, err := selectSheets(f.GetSheetList(), opts)
	if err != nil {
		return nil, err
	}

	var tables []*domain.WideTable
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, apperrors.NewSheetError("failed to read sheet", err).
				WithContext("path", path).
				WithContext("sheet", sheet)
		}

		table, ok := buildTable(rows, opts.HeaderRow)
		if !ok {
			r.logger.Warn("skipping sheet without data",
				slog.String("path", path),
				slog.String("sheet", sheet))
			continue
		}

		table.SourceFile = path
		table.Sheet = sheet
		tables = append(tables, table)

		r.logger.Debug("sheet loaded",
			slog.String("sheet", sheet),
			slog.Int("columns", len(table.Columns)),
			slog.Int("rows", table.RowCount()))
	}

	return tables, nil
}

// selectSheets applies the SheetNames/SkipSheets options to the
// workbook's sheet list, preserving workbook order.
func selectSheets(available []string, opts Options) ([]string, error) {
	have := make(map[string]bool, len(available))
	for _, name := range available {
		have[name] = true
	}

	selected := available
	if len(opts.SheetNames) > 0 {
		for _, name := range opts.SheetNames {
			if !have[name] {
				return nil, apperrors.NewSheetError("sheet not found in workbook", nil).
					WithContext("sheet", name)
			}
		}
		want := make(map[string]bool, len(opts.SheetNames))
		for _, name := range opts.SheetNames {
			want[name] = true
		}
		selected = nil
		for _, name := range available {
			if want[name] {
				selected = append(selected, name)
			}
		}
	}

	if len(opts.SkipSheets) == 0 {
		return selected, nil
	}
	skip := make(map[string]bool, len(opts.SkipSheets))
	for _, name := range opts.SkipSheets {
		skip[name] = true
	}
	var out []string
	for _, name := range selected {
		if !skip[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

// buildTable converts raw sheet rows into a column-oriented table. The
// header row supplies column names; unnamed columns get positional
// names so downstream selection can still address them.
func buildTable(rows [][]string, headerRow int) (*domain.WideTable, bool) {
	if headerRow < 0 || headerRow >= len(rows) {
		return nil, false
	}

	header := rows[headerRow]
	width := len(header)
	for _, row := range rows[headerRow+1:] {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return nil, false
	}

	table := &domain.WideTable{Columns: make([]domain.Column, width)}
	for i := range table.Columns {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = "Column" + strconv.Itoa(i+1)
		}
		table.Columns[i].Name = name
	}

	for _, row := range rows[headerRow+1:] {
		if isBlankRow(row) {
			continue
		}
		for i := 0; i < width; i++ {
			raw := ""
			if i < len(row) {
				raw = row[i]
			}
			table.Columns[i].Cells = append(table.Columns[i].Cells, parseCell(raw))
		}
	}

	return table, true
}

// parseCell maps a raw cell string to its typed representation.
// Numeric detection uses the formatted value excelize returns, so
// "1,000" stays text here and is resolved later by value cleaning.
func parseCell(raw string) domain.Cell {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.BlankCell()
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return domain.NumberCell(n)
	}
	return domain.TextCell(trimmed)
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
