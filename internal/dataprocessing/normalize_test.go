package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"depivot/pkg/contracts/domain"
)

func TestCleanNumericValue(t *testing.T) {
	tests := []struct {
		name string
		cell domain.Cell
		want float64
	}{
		{name: "plain integer text", cell: domain.TextCell("1234"), want: 1234},
		{name: "currency with commas", cell: domain.TextCell("$1,234.56"), want: 1234.56},
		{name: "grouping commas only", cell: domain.TextCell("1,234"), want: 1234},
		{name: "parenthesized negative", cell: domain.TextCell("(123.45)"), want: -123.45},
		{name: "parenthesized currency", cell: domain.TextCell("($1,000.50)"), want: -1000.50},
		{name: "plain decimal", cell: domain.TextCell("100.00"), want: 100},
		{name: "explicit minus", cell: domain.TextCell("-42.5"), want: -42.5},
		{name: "numeric passthrough", cell: domain.NumberCell(99.25), want: 99.25},
		{name: "negative numeric passthrough", cell: domain.NumberCell(-3.5), want: -3.5},
		{name: "leading and trailing spaces", cell: domain.TextCell("  2,500 "), want: 2500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanNumericValue(tt.cell)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCleanNumericValue_Missing(t *testing.T) {
	tests := []struct {
		name string
		cell domain.Cell
	}{
		{name: "blank cell", cell: domain.BlankCell()},
		{name: "plain text", cell: domain.TextCell("abc")},
		{name: "empty string", cell: domain.TextCell("")},
		{name: "symbols only", cell: domain.TextCell("$-")},
		{name: "nan number", cell: domain.NumberCell(domain.Missing)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, domain.IsMissing(CleanNumericValue(tt.cell)))
		})
	}
}

// Normalizing an already-numeric value must return it unchanged, so
// running the normalizer over its own output is a no-op.
func TestCleanNumericValue_Idempotent(t *testing.T) {
	first := CleanNumericValue(domain.TextCell("$1,234.56"))
	second := CleanNumericValue(domain.NumberCell(first))
	assert.Equal(t, first, second)
}

func TestSumForTotals(t *testing.T) {
	total := 0.0
	total = SumForTotals(total, 100)
	total = SumForTotals(total, domain.Missing)
	total = SumForTotals(total, 200)
	assert.Equal(t, 300.0, total)
}
