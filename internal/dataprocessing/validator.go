package dataprocessing

import (
	"strings"

	"depivot/pkg/contracts/domain"
)

// Validator recomputes totals from source and output tables and reports
// row, sheet and grand-level matches. It has no side effects; a mismatch
// is surfaced as data and never halts processing by itself.
type Validator struct{}

// NewValidator creates a new totals validator.
func NewValidator() *Validator {
	return &Validator{}
}

// idSeparator joins identifier values into a grouping key. Unit separator
// keeps ordinary cell text from colliding.
const idSeparator = "\x1f"

// ValidateSheet compares one filtered wide table against its long output.
//
// It emits one record per identifier group (in first-occurrence order)
// plus one SHEET_TOTAL record. Source totals are computed with the same
// numeric normalization the engine applies, with missing treated as zero,
// so a lossless melt always reconciles.
func (v *Validator) ValidateSheet(source *domain.WideTable, result *UnpivotResult) []domain.ValidationRecord {
	valueIdx := make([]int, len(result.ValueColumns))
	for i, name := range result.ValueColumns {
		valueIdx[i] = source.ColumnIndex(name)
	}
	// Synthetic ordinals exist only in the output, so the flag on the
	// result decides; a source column that shares the ordinal column's
	// name must not be read as the identifier.
	var idIdx []int
	if !result.SyntheticID {
		idIdx = make([]int, len(result.Long.IDColumns))
		for i, name := range result.Long.IDColumns {
			idIdx[i] = source.ColumnIndex(name)
		}
	}

	// Group source rows by identifier tuple, preserving first occurrence.
	type group struct {
		idValues []string
		total    float64
	}
	var order []string
	groups := make(map[string]*group)

	rows := source.RowCount()
	for row := 0; row < rows; row++ {
		var idValues []string
		if result.SyntheticID {
			idValues = []string{domain.NumberCell(float64(row + 1)).String()}
		} else {
			idValues = make([]string, len(idIdx))
			for i, idx := range idIdx {
				idValues[i] = source.Cell(row, idx).String()
			}
		}
		key := strings.Join(idValues, idSeparator)
		g, ok := groups[key]
		if !ok {
			g = &group{idValues: idValues}
			groups[key] = g
			order = append(order, key)
		}
		for _, idx := range valueIdx {
			if idx < 0 {
				continue
			}
			g.total = SumForTotals(g.total, CleanNumericValue(source.Cell(row, idx)))
		}
	}

	// Processed totals per identifier tuple.
	processed := make(map[string]float64, len(groups))
	var sheetProcessed float64
	for _, rec := range result.Long.Records {
		parts := make([]string, len(rec.IDValues))
		for i, cell := range rec.IDValues {
			parts[i] = cell.String()
		}
		key := strings.Join(parts, idSeparator)
		processed[key] = SumForTotals(processed[key], rec.Value)
		sheetProcessed = SumForTotals(sheetProcessed, rec.Value)
	}

	records := make([]domain.ValidationRecord, 0, len(order)+1)
	var sheetSource float64
	for _, key := range order {
		g := groups[key]
		sheetSource += g.total
		records = append(records, domain.NewValidationRecord(
			source.SourceFile, source.Sheet, "", g.idValues, g.total, processed[key]))
	}

	records = append(records, domain.NewValidationRecord(
		source.SourceFile, source.Sheet, domain.SheetTotalSentinel, nil, sheetSource, sheetProcessed))

	return records
}

// GrandTotal aggregates every SHEET_TOTAL record into the run's single
// GRAND_TOTAL record. Exactly one is produced per run.
func (v *Validator) GrandTotal(records []domain.ValidationRecord, sourceFile string) domain.ValidationRecord {
	var source, processed float64
	for _, rec := range records {
		if rec.Category == domain.SheetTotalSentinel {
			source += rec.SourceTotal
			processed += rec.ProcessedTotal
		}
	}
	return domain.NewValidationRecord(
		sourceFile, domain.AllSheetsLabel, domain.GrandTotalSentinel, nil, source, processed)
}
