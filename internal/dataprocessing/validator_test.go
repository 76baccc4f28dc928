package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depivot/pkg/contracts/domain"
)

// End-to-end scenario: one data row plus one grand-total row; with
// filtering enabled the surviving row reconciles exactly.
func TestValidator_EndToEnd(t *testing.T) {
	engine := NewEngine(nil)
	validator := NewValidator()

	table := testTable(
		[]string{"Site", "Category", "Jan", "Feb"},
		[][]domain.Cell{
			{domain.TextCell("A"), domain.TextCell("Cost1"), domain.NumberCell(100), domain.NumberCell(200)},
			{domain.TextCell("A"), domain.TextCell("Grand Total"), domain.NumberCell(100), domain.NumberCell(200)},
		},
	)
	table.SourceFile = "2025_02_sites.xlsx"

	res, err := engine.Unpivot(table, UnpivotOptions{
		IDColumns:     []string{"Site", "Category"},
		ExcludeTotals: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Long.Records, 2)
	assert.Equal(t, 100.0, res.Long.Records[0].Value)
	assert.Equal(t, 200.0, res.Long.Records[1].Value)

	records := validator.ValidateSheet(res.FilteredSource, res)
	require.Len(t, records, 2) // one row group + SHEET_TOTAL

	row := records[0]
	assert.Equal(t, []string{"A", "Cost1"}, row.IDValues)
	assert.Equal(t, 300.0, row.SourceTotal)
	assert.Equal(t, 300.0, row.ProcessedTotal)
	assert.Equal(t, domain.MatchOK, row.Match)

	sheet := records[1]
	assert.Equal(t, domain.SheetTotalSentinel, sheet.Category)
	assert.Equal(t, 300.0, sheet.SourceTotal)
	assert.Equal(t, 300.0, sheet.ProcessedTotal)
	assert.Equal(t, domain.MatchOK, sheet.Match)
}

// Melting is a lossless partition of the same values, so totals always
// reconcile for tables without summary rows or missing values.
func TestValidator_RoundTripTotals(t *testing.T) {
	engine := NewEngine(nil)
	validator := NewValidator()

	table := testTable(
		[]string{"ID", "M1", "M2", "M3"},
		[][]domain.Cell{
			{domain.TextCell("a"), domain.NumberCell(1.1), domain.NumberCell(2.2), domain.NumberCell(3.3)},
			{domain.TextCell("b"), domain.NumberCell(-4), domain.TextCell("(5)"), domain.TextCell("$6,000")},
		},
	)

	res, err := engine.Unpivot(table, UnpivotOptions{IDColumns: []string{"ID"}})
	require.NoError(t, err)

	records := validator.ValidateSheet(res.FilteredSource, res)
	for _, rec := range records {
		assert.Equal(t, domain.MatchOK, rec.Match, "record %+v", rec)
		assert.InDelta(t, 0, rec.Difference, domain.MatchTolerance)
	}
}

func TestValidator_MissingTreatedAsZero(t *testing.T) {
	engine := NewEngine(nil)
	validator := NewValidator()

	table := testTable(
		[]string{"ID", "M1", "M2"},
		[][]domain.Cell{
			{domain.TextCell("a"), domain.NumberCell(10), domain.TextCell("n/a")},
		},
	)

	res, err := engine.Unpivot(table, UnpivotOptions{IDColumns: []string{"ID"}})
	require.NoError(t, err)

	records := validator.ValidateSheet(res.FilteredSource, res)
	require.Len(t, records, 2)
	assert.Equal(t, 10.0, records[0].SourceTotal)
	assert.Equal(t, 10.0, records[0].ProcessedTotal)
	assert.Equal(t, domain.MatchOK, records[0].Match)
}

func TestValidator_DuplicateIdentifierGroups(t *testing.T) {
	engine := NewEngine(nil)
	validator := NewValidator()

	table := testTable(
		[]string{"Site", "Jan"},
		[][]domain.Cell{
			{domain.TextCell("A"), domain.NumberCell(1)},
			{domain.TextCell("A"), domain.NumberCell(2)},
			{domain.TextCell("B"), domain.NumberCell(3)},
		},
	)

	res, err := engine.Unpivot(table, UnpivotOptions{IDColumns: []string{"Site"}})
	require.NoError(t, err)

	records := validator.ValidateSheet(res.FilteredSource, res)
	// Two groups plus sheet total; duplicates collapse into one group.
	require.Len(t, records, 3)
	assert.Equal(t, []string{"A"}, records[0].IDValues)
	assert.Equal(t, 3.0, records[0].SourceTotal)
	assert.Equal(t, 3.0, records[0].ProcessedTotal)
	assert.Equal(t, []string{"B"}, records[1].IDValues)
}

func TestValidator_SyntheticIdentifier(t *testing.T) {
	engine := NewEngine(nil)
	validator := NewValidator()

	table := testTable(
		[]string{"Jan", "Feb"},
		[][]domain.Cell{
			{domain.NumberCell(1), domain.NumberCell(2)},
			{domain.NumberCell(3), domain.NumberCell(4)},
		},
	)

	res, err := engine.Unpivot(table, UnpivotOptions{})
	require.NoError(t, err)

	records := validator.ValidateSheet(res.FilteredSource, res)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"1"}, records[0].IDValues)
	assert.Equal(t, 3.0, records[0].SourceTotal)
	assert.Equal(t, domain.MatchOK, records[0].Match)
	assert.Equal(t, 10.0, records[2].SourceTotal)
}

// A source column named like the ordinal column must not be mistaken
// for the identifier: it is melted as a value column while the output
// carries generated ordinals.
func TestValidator_SyntheticIdentifierNameCollision(t *testing.T) {
	engine := NewEngine(nil)
	validator := NewValidator()

	table := testTable(
		[]string{"Row", "Jan"},
		[][]domain.Cell{
			{domain.NumberCell(7), domain.NumberCell(1)},
			{domain.NumberCell(7), domain.NumberCell(2)},
		},
	)

	res, err := engine.Unpivot(table, UnpivotOptions{})
	require.NoError(t, err)
	assert.True(t, res.SyntheticID)
	// Both columns melt; identifiers are ordinals, not the Row column.
	require.Len(t, res.Long.Records, 4)
	assert.Equal(t, 1.0, res.Long.Records[0].IDValues[0].Number)
	assert.Equal(t, 2.0, res.Long.Records[2].IDValues[0].Number)

	records := validator.ValidateSheet(res.FilteredSource, res)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"1"}, records[0].IDValues)
	assert.Equal(t, 8.0, records[0].SourceTotal)
	assert.Equal(t, []string{"2"}, records[1].IDValues)
	assert.Equal(t, 9.0, records[1].SourceTotal)
	for _, rec := range records {
		assert.Equal(t, domain.MatchOK, rec.Match, "record %+v", rec)
	}
}

func TestValidator_GrandTotal(t *testing.T) {
	validator := NewValidator()

	records := []domain.ValidationRecord{
		domain.NewValidationRecord("f1.xlsx", "S1", "", []string{"A"}, 1, 1),
		domain.NewValidationRecord("f1.xlsx", "S1", domain.SheetTotalSentinel, nil, 100, 100),
		domain.NewValidationRecord("f2.xlsx", "S1", domain.SheetTotalSentinel, nil, 50, 49),
	}

	grand := validator.GrandTotal(records, AllFilesLabel)
	assert.Equal(t, domain.GrandTotalSentinel, grand.Category)
	assert.Equal(t, domain.AllSheetsLabel, grand.Sheet)
	assert.Equal(t, 150.0, grand.SourceTotal)
	assert.Equal(t, 149.0, grand.ProcessedTotal)
	assert.Equal(t, domain.MatchMismatch, grand.Match)
	assert.InDelta(t, -1.0, grand.Difference, 1e-9)
}

func TestNewValidationRecord_Tolerance(t *testing.T) {
	tests := []struct {
		name      string
		source    float64
		processed float64
		want      string
	}{
		{name: "exact", source: 100, processed: 100, want: domain.MatchOK},
		{name: "within tolerance", source: 100, processed: 100.009, want: domain.MatchOK},
		{name: "at tolerance", source: 100, processed: 100.01, want: domain.MatchMismatch},
		{name: "beyond tolerance", source: 100, processed: 101, want: domain.MatchMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := domain.NewValidationRecord("f", "s", "", nil, tt.source, tt.processed)
			assert.Equal(t, tt.want, rec.Match)
		})
	}
}
