package dataprocessing

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"depivot/pkg/contracts/domain"
)

// nonNumericPattern strips everything except digits, decimal points,
// grouping commas, parentheses and minus signs.
var nonNumericPattern = regexp.MustCompile(`[^\d.,()\-]`)

// CleanNumericValue converts a raw cell into a float64 value.
//
// Handles currency symbols, grouping commas (1,234.56) and accounting
// negatives in parentheses ((123.45) -> -123.45). Already-numeric cells
// pass through unchanged. Anything unparseable resolves silently to the
// missing marker; this function never fails.
func CleanNumericValue(cell domain.Cell) float64 {
	switch cell.Kind {
	case domain.CellBlank:
		return domain.Missing
	case domain.CellNumber:
		if math.IsNaN(cell.Number) {
			return domain.Missing
		}
		return cell.Number
	}

	cleaned := nonNumericPattern.ReplaceAllString(cell.Text, "")

	// Accounting convention: a parenthesized amount is negative.
	negative := strings.Contains(cleaned, "(") && strings.Contains(cleaned, ")")
	if negative {
		cleaned = strings.ReplaceAll(cleaned, "(", "")
		cleaned = strings.ReplaceAll(cleaned, ")", "")
	}

	cleaned = strings.ReplaceAll(cleaned, ",", "")

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return domain.Missing
	}
	if negative {
		return -value
	}
	return value
}

// SumForTotals adds v into a running total, treating the missing marker
// as zero so NA cells cannot poison a validation sum.
func SumForTotals(total, v float64) float64 {
	if domain.IsMissing(v) {
		return total
	}
	return total + v
}
