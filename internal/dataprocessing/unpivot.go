package dataprocessing

import (
	"fmt"
	"log/slog"
	"strings"

	"depivot/internal/errors"
	"depivot/pkg/contracts/domain"
)

// Default field names used when options leave them empty.
const (
	DefaultVariableName = "variable"
	DefaultValueName    = "value"
	DefaultIndexColumn  = "Row"
	DefaultDataTypeName = "DataType"
)

// UnpivotOptions configures the reshape of one sheet.
type UnpivotOptions struct {
	// IDColumns are preserved verbatim across the reshape. When empty, a
	// synthetic ordinal identifier column is generated instead.
	IDColumns []string

	// ValueColumns are the columns to melt. When empty, every column not
	// in IDColumns is melted, after include/exclude filtering.
	ValueColumns []string

	// IncludeColumns and ExcludeColumns filter the candidate value
	// columns before resolution.
	IncludeColumns []string
	ExcludeColumns []string

	// VariableName and ValueName name the melted output fields.
	VariableName string
	ValueName    string

	// IndexColumnName names the synthetic ordinal identifier.
	IndexColumnName string

	// ExcludeTotals enables summary-row filtering on wide rows, before
	// melting and before validation totals are computed.
	ExcludeTotals bool

	// SummaryPatterns replaces (not merges with) the default pattern set.
	SummaryPatterns []string

	// DropNA removes records whose value is the missing marker. Dropping
	// happens after stats capture, so NA counts stay observable.
	DropNA bool

	// DataTypeOverride forces the data-type tag instead of deriving it
	// from the sheet name.
	DataTypeOverride string

	// ForecastStart splits an Actual tag into Actual/Forecast per month;
	// the start month itself classifies as Forecast.
	ForecastStart string

	// ReleaseDate tags every record when non-empty (YYYY-MM).
	ReleaseDate string
}

func (o UnpivotOptions) variableName() string {
	if o.VariableName == "" {
		return DefaultVariableName
	}
	return o.VariableName
}

func (o UnpivotOptions) valueName() string {
	if o.ValueName == "" {
		return DefaultValueName
	}
	return o.ValueName
}

func (o UnpivotOptions) indexColumnName() string {
	if o.IndexColumnName == "" {
		return DefaultIndexColumn
	}
	return o.IndexColumnName
}

// UnpivotResult carries the long table together with the post-filter
// source it was melted from, so the validator can cross-check totals
// against exactly what survived filtering.
type UnpivotResult struct {
	Long           *domain.LongTable
	FilteredSource *domain.WideTable
	ValueColumns   []string
	Stats          domain.SheetStats

	// SyntheticID marks output identifiers as generated ordinals. The
	// flag is explicit so that a source column sharing the ordinal
	// column's name is never mistaken for the identifier.
	SyntheticID bool
}

// Engine performs the wide-to-long reshape for a single sheet.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a new unpivot engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Unpivot reshapes one wide table into long format.
//
// Output ordering is row-major then column-major: rows in source order,
// and within a row the value columns in their original left-to-right
// order. Identifier columns are checked before any row is processed;
// a missing one fails the whole sheet with a SCHEMA error.
func (e *Engine) Unpivot(table *domain.WideTable, opts UnpivotOptions) (*UnpivotResult, error) {
	if err := table.Validate(); err != nil {
		return nil, errors.NewSchemaError(
			fmt.Sprintf("malformed wide table in sheet %q", table.Sheet), err)
	}

	// Fail fast: all identifier columns must exist before row one.
	if missing := missingColumns(table, opts.IDColumns); len(missing) > 0 {
		return nil, errors.NewSchemaError(
			fmt.Sprintf("column(s) not found in sheet %q: %s (available: %s)",
				table.Sheet,
				strings.Join(missing, ", "),
				strings.Join(table.ColumnNames(), ", ")),
			nil)
	}

	source := table
	filtered := 0
	if opts.ExcludeTotals && len(opts.IDColumns) > 0 {
		source, filtered = FilterSummaryRows(table, opts.IDColumns, opts.SummaryPatterns)
		if filtered > 0 {
			e.logger.Debug("filtered summary rows",
				slog.String("sheet", table.Sheet),
				slog.Int("filtered", filtered))
		}
	}

	valueColumns, err := resolveValueColumns(source, opts)
	if err != nil {
		return nil, err
	}

	idColumns := opts.IDColumns
	syntheticID := len(idColumns) == 0
	if syntheticID {
		idColumns = []string{opts.indexColumnName()}
	}

	baseDataType := opts.DataTypeOverride
	if baseDataType == "" {
		baseDataType = DetectDataType(source.Sheet)
	}
	splitForecast := opts.ForecastStart != "" && baseDataType == domain.DataTypeActual

	fiscalYear := 0
	if opts.ReleaseDate != "" {
		fy, err := ExtractFiscalYear(opts.ReleaseDate)
		if err != nil {
			// Recoverable: proceed with a zero fiscal year.
			e.logger.Warn("could not derive fiscal year from release date",
				slog.String("release_date", opts.ReleaseDate),
				slog.String("error", err.Error()))
		}
		fiscalYear = fy
	}

	idIdx := make([]int, 0, len(opts.IDColumns))
	for _, name := range opts.IDColumns {
		idIdx = append(idIdx, source.ColumnIndex(name))
	}
	valueIdx := make([]int, len(valueColumns))
	for i, name := range valueColumns {
		valueIdx[i] = source.ColumnIndex(name)
	}

	rows := source.RowCount()
	records := make([]domain.LongRecord, 0, rows*len(valueColumns))
	missingCount := 0

	for row := 0; row < rows; row++ {
		var idValues []domain.Cell
		if syntheticID {
			idValues = []domain.Cell{domain.NumberCell(float64(row + 1))}
		} else {
			idValues = make([]domain.Cell, len(idIdx))
			for i, idx := range idIdx {
				idValues[i] = source.Cell(row, idx)
			}
		}

		for _, idx := range valueIdx {
			variable := source.Columns[idx].Name
			value := CleanNumericValue(source.Cell(row, idx))
			if domain.IsMissing(value) {
				missingCount++
			}

			dataType := baseDataType
			if splitForecast && IsForecastMonth(variable, opts.ForecastStart) {
				dataType = domain.DataTypeForecast
			}

			// Zero when the variable is not a month name.
			period, _ := MonthToPeriod(variable)

			records = append(records, domain.LongRecord{
				IDValues:    idValues,
				Variable:    variable,
				Value:       value,
				DataType:    dataType,
				ReleaseDate: opts.ReleaseDate,
				FiscalYear:  fiscalYear,
				Period:      period,
			})
		}
	}

	result := &UnpivotResult{
		Long: &domain.LongTable{
			IDColumns:    idColumns,
			VariableName: opts.variableName(),
			ValueName:    opts.valueName(),
			Records:      records,
		},
		FilteredSource: source,
		ValueColumns:   valueColumns,
		SyntheticID:    syntheticID,
		Stats: domain.SheetStats{
			SourceFile:    table.SourceFile,
			Sheet:         table.Sheet,
			SourceRows:    table.RowCount(),
			FilteredRows:  filtered,
			OutputRecords: len(records),
			MissingValues: missingCount,
		},
	}

	if opts.DropNA {
		dropped := result.DropNA()
		e.logger.Debug("dropped NA records",
			slog.String("sheet", table.Sheet),
			slog.Int("dropped", dropped))
	}

	return result, nil
}

// DropNA removes records carrying the missing marker and returns how many
// were removed. Stats counters keep the pre-drop numbers, so the trace of
// what was dropped survives.
func (r *UnpivotResult) DropNA() int {
	kept := r.Long.Records[:0]
	for _, rec := range r.Long.Records {
		if !domain.IsMissing(rec.Value) {
			kept = append(kept, rec)
		}
	}
	dropped := len(r.Long.Records) - len(kept)
	r.Long.Records = kept
	r.Stats.DroppedNA += dropped
	return dropped
}

// missingColumns returns the requested column names absent from the table.
func missingColumns(table *domain.WideTable, names []string) []string {
	var missing []string
	for _, name := range names {
		if table.ColumnIndex(name) < 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

// resolveValueColumns determines which columns get melted. Resolution is
// dynamic: with no explicit spec, every non-identifier column qualifies,
// after include/exclude filtering. Original column order is preserved.
func resolveValueColumns(table *domain.WideTable, opts UnpivotOptions) ([]string, error) {
	include := toSet(opts.IncludeColumns)
	exclude := toSet(opts.ExcludeColumns)
	ids := toSet(opts.IDColumns)

	available := func(name string) bool {
		if len(include) > 0 {
			if _, ok := include[name]; !ok {
				return false
			}
		}
		_, excluded := exclude[name]
		return !excluded
	}

	var resolved []string
	if len(opts.ValueColumns) == 0 {
		for _, col := range table.Columns {
			if _, isID := ids[col.Name]; isID {
				continue
			}
			if available(col.Name) {
				resolved = append(resolved, col.Name)
			}
		}
	} else {
		for _, name := range opts.ValueColumns {
			if table.ColumnIndex(name) < 0 || !available(name) {
				continue
			}
			if _, isID := ids[name]; isID {
				return nil, errors.NewSchemaError(
					fmt.Sprintf("column %q cannot be both identifier and value column", name), nil)
			}
			resolved = append(resolved, name)
		}
	}

	if len(resolved) == 0 {
		return nil, errors.NewSchemaError(
			fmt.Sprintf("no value columns to unpivot in sheet %q", table.Sheet), nil)
	}
	return resolved, nil
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
