package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "depivot/internal/errors"
	"depivot/pkg/contracts/domain"
)

func TestExtractReleaseDate(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{name: "underscore separator", filename: "2025_02_All Sites EAC.xlsx", want: "2025-02"},
		{name: "dash separator", filename: "report-2024-11-final.xlsx", want: "2024-11"},
		{name: "compact digits", filename: "budget_202503_final.xlsx", want: "2025-03"},
		{name: "compact invalid month rejected", filename: "id_202599_x.xlsx", want: ""},
		{name: "no date", filename: "no_date_here.xlsx", want: ""},
		{name: "month name not recognized", filename: "February 2025 Data.xlsx", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractReleaseDate(tt.filename))
		})
	}
}

func TestResolveReleaseDate(t *testing.T) {
	// Overrides pass through verbatim, no reformatting.
	assert.Equal(t, "2025_07", ResolveReleaseDate("2024_01_x.xlsx", "2025_07"))
	assert.Equal(t, "2024-01", ResolveReleaseDate("2024_01_x.xlsx", ""))
}

func TestMonthToPeriod(t *testing.T) {
	tests := []struct {
		name    string
		month   string
		want    int
		wantErr bool
	}{
		{name: "short name", month: "Jan", want: 1},
		{name: "full name", month: "January", want: 1},
		{name: "uppercase", month: "DECEMBER", want: 12},
		{name: "sept variant", month: "Sept", want: 9},
		{name: "padded", month: " mar ", want: 3},
		{name: "prefix of longer label", month: "Junio", want: 6},
		{name: "unknown", month: "Smarch", wantErr: true},
		{name: "empty", month: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MonthToPeriod(tt.month)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsForecastMonth(t *testing.T) {
	tests := []struct {
		name          string
		month         string
		forecastStart string
		want          bool
	}{
		{name: "before start", month: "Feb", forecastStart: "March", want: false},
		// The boundary is inclusive: the start month itself is Forecast.
		{name: "start month", month: "Mar", forecastStart: "March", want: true},
		{name: "after start", month: "Dec", forecastStart: "March", want: true},
		{name: "unknown month defaults to actual", month: "bogus", forecastStart: "March", want: false},
		{name: "unknown start defaults to actual", month: "Jun", forecastStart: "bogus", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsForecastMonth(tt.month, tt.forecastStart))
		})
	}
}

func TestExtractFiscalYear(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		want    int
		wantErr bool
	}{
		{name: "dash format", date: "2025-02", want: 2025},
		{name: "underscore format", date: "2025_02", want: 2025},
		{name: "year only", date: "2024", want: 2024},
		{name: "garbage", date: "febmarch", wantErr: true},
		{name: "empty", date: "", wantErr: true},
		{name: "short year", date: "25-02", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractFiscalYear(tt.date)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectDataType(t *testing.T) {
	tests := []struct {
		sheet string
		want  string
	}{
		{sheet: "FY25 Forecast", want: domain.DataTypeForecast},
		{sheet: "Budget 2025", want: domain.DataTypeBudget},
		{sheet: "budg-q1", want: domain.DataTypeBudget},
		{sheet: "Actuals", want: domain.DataTypeActual},
		{sheet: "Sheet1", want: domain.DataTypeActual},
		// Forecast keyword wins over budget when both appear.
		{sheet: "Budget Forecast", want: domain.DataTypeForecast},
	}

	for _, tt := range tests {
		t.Run(tt.sheet, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDataType(tt.sheet))
		})
	}
}
