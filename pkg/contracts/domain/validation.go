package domain

import "math"

// Sentinel identifiers for aggregate validation rows.
const (
	SheetTotalSentinel = "SHEET_TOTAL"
	GrandTotalSentinel = "GRAND_TOTAL"
	AllSheetsLabel     = "ALL_SHEETS"
)

// Match outcomes for validation records.
const (
	MatchOK       = "OK"
	MatchMismatch = "MISMATCH"
)

// MatchTolerance absorbs floating-point summation drift. It is fixed, not
// a business tolerance knob.
const MatchTolerance = 0.01

// ValidationRecord compares source and processed totals at one granularity.
// Category is empty for row-level records and carries the SHEET_TOTAL or
// GRAND_TOTAL sentinel for aggregate records.
type ValidationRecord struct {
	SourceFile     string   `json:"source_file"`
	Sheet          string   `json:"sheet"`
	IDValues       []string `json:"id_values,omitempty"`
	Category       string   `json:"category,omitempty"`
	SourceTotal    float64  `json:"source_total"`
	ProcessedTotal float64  `json:"processed_total"`
	Difference     float64  `json:"difference"`
	Match          string   `json:"match"`
}

// NewValidationRecord fills in Difference and Match from the two totals.
func NewValidationRecord(sourceFile, sheet, category string, idValues []string, sourceTotal, processedTotal float64) ValidationRecord {
	diff := processedTotal - sourceTotal
	match := MatchOK
	if math.Abs(diff) >= MatchTolerance {
		match = MatchMismatch
	}
	return ValidationRecord{
		SourceFile:     sourceFile,
		Sheet:          sheet,
		IDValues:       idValues,
		Category:       category,
		SourceTotal:    sourceTotal,
		ProcessedTotal: processedTotal,
		Difference:     diff,
		Match:          match,
	}
}
