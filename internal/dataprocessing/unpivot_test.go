package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "depivot/internal/errors"
	"depivot/pkg/contracts/domain"
)

func siteTable() *domain.WideTable {
	t := testTable(
		[]string{"Site", "Category", "Jan", "Feb"},
		[][]domain.Cell{
			{domain.TextCell("A"), domain.TextCell("Cost1"), domain.NumberCell(100), domain.NumberCell(200)},
			{domain.TextCell("B"), domain.TextCell("Cost2"), domain.TextCell("$1,000"), domain.TextCell("(50)")},
		},
	)
	t.Sheet = "Actuals"
	return t
}

func TestEngine_Unpivot_Ordering(t *testing.T) {
	engine := NewEngine(nil)

	res, err := engine.Unpivot(siteTable(), UnpivotOptions{
		IDColumns: []string{"Site", "Category"},
	})
	require.NoError(t, err)

	// Row-major then column-major: row 1 Jan, row 1 Feb, row 2 Jan, row 2 Feb.
	require.Len(t, res.Long.Records, 4)
	wantVars := []string{"Jan", "Feb", "Jan", "Feb"}
	wantVals := []float64{100, 200, 1000, -50}
	wantSites := []string{"A", "A", "B", "B"}
	wantPeriods := []int{1, 2, 1, 2}
	for i, rec := range res.Long.Records {
		assert.Equal(t, wantVars[i], rec.Variable, "record %d variable", i)
		assert.InDelta(t, wantVals[i], rec.Value, 1e-9, "record %d value", i)
		assert.Equal(t, wantSites[i], rec.IDValues[0].Text, "record %d site", i)
		assert.Equal(t, wantPeriods[i], rec.Period, "record %d period", i)
	}

	assert.Equal(t, []string{"Site", "Category"}, res.Long.IDColumns)
	assert.Equal(t, []string{"Jan", "Feb"}, res.ValueColumns)
	assert.Equal(t, DefaultVariableName, res.Long.VariableName)
	assert.Equal(t, DefaultValueName, res.Long.ValueName)
}

// For R surviving rows and V value columns the engine emits exactly R*V
// records before any NA drop.
func TestEngine_Unpivot_RowCountLaw(t *testing.T) {
	engine := NewEngine(nil)

	table := testTable(
		[]string{"ID", "M1", "M2", "M3"},
		[][]domain.Cell{
			{domain.TextCell("a"), domain.NumberCell(1), domain.TextCell("junk"), domain.BlankCell()},
			{domain.TextCell("b"), domain.NumberCell(2), domain.NumberCell(3), domain.NumberCell(4)},
			{domain.TextCell("c"), domain.BlankCell(), domain.BlankCell(), domain.BlankCell()},
		},
	)

	res, err := engine.Unpivot(table, UnpivotOptions{IDColumns: []string{"ID"}})
	require.NoError(t, err)
	assert.Len(t, res.Long.Records, 3*3)
	assert.Equal(t, 4, res.Stats.MissingValues)
	assert.Zero(t, res.Stats.DroppedNA)
}

func TestEngine_Unpivot_SchemaErrorFailsFast(t *testing.T) {
	engine := NewEngine(nil)

	_, err := engine.Unpivot(siteTable(), UnpivotOptions{
		IDColumns: []string{"Site", "Nope"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
	assert.Contains(t, err.Error(), "Nope")
}

func TestEngine_Unpivot_SyntheticIdentifier(t *testing.T) {
	engine := NewEngine(nil)

	table := testTable(
		[]string{"Jan", "Feb"},
		[][]domain.Cell{
			{domain.NumberCell(1), domain.NumberCell(2)},
			{domain.NumberCell(3), domain.NumberCell(4)},
		},
	)

	res, err := engine.Unpivot(table, UnpivotOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"Row"}, res.Long.IDColumns)
	require.Len(t, res.Long.Records, 4)
	// Ordinals start at 1, one per original row.
	assert.Equal(t, 1.0, res.Long.Records[0].IDValues[0].Number)
	assert.Equal(t, 1.0, res.Long.Records[1].IDValues[0].Number)
	assert.Equal(t, 2.0, res.Long.Records[2].IDValues[0].Number)
}

func TestEngine_Unpivot_IncludeExclude(t *testing.T) {
	engine := NewEngine(nil)
	table := testTable(
		[]string{"Site", "Jan", "Feb", "Notes"},
		[][]domain.Cell{
			{domain.TextCell("A"), domain.NumberCell(1), domain.NumberCell(2), domain.TextCell("x")},
		},
	)

	tests := []struct {
		name string
		opts UnpivotOptions
		want []string
	}{
		{
			name: "exclude filters candidates",
			opts: UnpivotOptions{IDColumns: []string{"Site"}, ExcludeColumns: []string{"Notes"}},
			want: []string{"Jan", "Feb"},
		},
		{
			name: "include narrows candidates",
			opts: UnpivotOptions{IDColumns: []string{"Site"}, IncludeColumns: []string{"Feb"}},
			want: []string{"Feb"},
		},
		{
			name: "explicit value columns keep given order",
			opts: UnpivotOptions{IDColumns: []string{"Site"}, ValueColumns: []string{"Feb", "Jan"}},
			want: []string{"Feb", "Jan"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.Unpivot(table, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.ValueColumns)
		})
	}
}

func TestEngine_Unpivot_NoValueColumns(t *testing.T) {
	engine := NewEngine(nil)
	table := testTable(
		[]string{"Site"},
		[][]domain.Cell{{domain.TextCell("A")}},
	)

	_, err := engine.Unpivot(table, UnpivotOptions{IDColumns: []string{"Site"}})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
}

func TestEngine_Unpivot_OverlapRejected(t *testing.T) {
	engine := NewEngine(nil)
	_, err := engine.Unpivot(siteTable(), UnpivotOptions{
		IDColumns:    []string{"Site"},
		ValueColumns: []string{"Site", "Jan"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
}

func TestEngine_Unpivot_SummaryFiltering(t *testing.T) {
	engine := NewEngine(nil)
	table := testTable(
		[]string{"Site", "Category", "Jan", "Feb"},
		[][]domain.Cell{
			{domain.TextCell("A"), domain.TextCell("Cost1"), domain.NumberCell(100), domain.NumberCell(200)},
			{domain.TextCell("A"), domain.TextCell("Grand Total"), domain.NumberCell(100), domain.NumberCell(200)},
		},
	)

	res, err := engine.Unpivot(table, UnpivotOptions{
		IDColumns:     []string{"Site", "Category"},
		ExcludeTotals: true,
	})
	require.NoError(t, err)
	assert.Len(t, res.Long.Records, 2)
	assert.Equal(t, 1, res.Stats.FilteredRows)
	assert.Equal(t, 2, res.Stats.SourceRows)
	assert.Equal(t, 1, res.FilteredSource.RowCount())
}

func TestEngine_Unpivot_DropNAAfterStats(t *testing.T) {
	engine := NewEngine(nil)
	table := testTable(
		[]string{"Site", "Jan", "Feb"},
		[][]domain.Cell{
			{domain.TextCell("A"), domain.NumberCell(1), domain.TextCell("n/a")},
		},
	)

	res, err := engine.Unpivot(table, UnpivotOptions{
		IDColumns: []string{"Site"},
		DropNA:    true,
	})
	require.NoError(t, err)
	assert.Len(t, res.Long.Records, 1)
	// Pre-drop counts stay observable.
	assert.Equal(t, 2, res.Stats.OutputRecords)
	assert.Equal(t, 1, res.Stats.MissingValues)
	assert.Equal(t, 1, res.Stats.DroppedNA)
}

func TestEngine_Unpivot_DataTypeTagging(t *testing.T) {
	engine := NewEngine(nil)

	tests := []struct {
		name  string
		sheet string
		opts  UnpivotOptions
		want  []string
	}{
		{
			name:  "sheet name detection",
			sheet: "FY25 Budget",
			opts:  UnpivotOptions{IDColumns: []string{"Site"}},
			want:  []string{domain.DataTypeBudget, domain.DataTypeBudget},
		},
		{
			name:  "override wins",
			sheet: "FY25 Budget",
			opts:  UnpivotOptions{IDColumns: []string{"Site"}, DataTypeOverride: domain.DataTypeForecast},
			want:  []string{domain.DataTypeForecast, domain.DataTypeForecast},
		},
		{
			name:  "forecast start splits actuals",
			sheet: "Actuals",
			opts:  UnpivotOptions{IDColumns: []string{"Site"}, ForecastStart: "Feb"},
			want:  []string{domain.DataTypeActual, domain.DataTypeForecast},
		},
		{
			name:  "forecast start ignored for budget sheets",
			sheet: "Budget",
			opts:  UnpivotOptions{IDColumns: []string{"Site"}, ForecastStart: "Feb"},
			want:  []string{domain.DataTypeBudget, domain.DataTypeBudget},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := testTable(
				[]string{"Site", "Jan", "Feb"},
				[][]domain.Cell{
					{domain.TextCell("A"), domain.NumberCell(1), domain.NumberCell(2)},
				},
			)
			table.Sheet = tt.sheet

			res, err := engine.Unpivot(table, tt.opts)
			require.NoError(t, err)
			require.Len(t, res.Long.Records, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want, res.Long.Records[i].DataType, "record %d", i)
			}
		})
	}
}

func TestEngine_Unpivot_ReleaseDateAndFiscalYear(t *testing.T) {
	engine := NewEngine(nil)

	res, err := engine.Unpivot(siteTable(), UnpivotOptions{
		IDColumns:   []string{"Site", "Category"},
		ReleaseDate: "2025-02",
	})
	require.NoError(t, err)
	for _, rec := range res.Long.Records {
		assert.Equal(t, "2025-02", rec.ReleaseDate)
		assert.Equal(t, 2025, rec.FiscalYear)
	}
}

func TestEngine_Unpivot_BadReleaseDateRecovers(t *testing.T) {
	engine := NewEngine(nil)

	res, err := engine.Unpivot(siteTable(), UnpivotOptions{
		IDColumns:   []string{"Site", "Category"},
		ReleaseDate: "not-a-date",
	})
	require.NoError(t, err)
	// Release date kept verbatim, fiscal year falls back to zero.
	assert.Equal(t, "not-a-date", res.Long.Records[0].ReleaseDate)
	assert.Zero(t, res.Long.Records[0].FiscalYear)
}

func TestEngine_Unpivot_MalformedTable(t *testing.T) {
	engine := NewEngine(nil)
	table := &domain.WideTable{
		Sheet: "Bad",
		Columns: []domain.Column{
			{Name: "A", Cells: []domain.Cell{domain.NumberCell(1)}},
			{Name: "B", Cells: []domain.Cell{domain.NumberCell(1), domain.NumberCell(2)}},
		},
	}
	_, err := engine.Unpivot(table, UnpivotOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
}
