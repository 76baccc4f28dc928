package dataprocessing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"depivot/internal/errors"
	"depivot/pkg/contracts/domain"
)

// monthOrder maps the first three letters of a month name to its ordinal.
var monthOrder = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// monthAliases covers full month names and common variants that the
// three-letter table would miss.
var monthAliases = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "june": 6,
	"july": 7, "august": 8, "september": 9, "sept": 9, "october": 10,
	"november": 11, "december": 12,
}

var (
	separatedDatePattern = regexp.MustCompile(`(\d{4})[_-](\d{2})`)
	compactDatePattern   = regexp.MustCompile(`(\d{4})(\d{2})`)
)

// MonthToPeriod converts a month name to its period number (Jan -> 1).
// Lookup is case-insensitive and falls back to a first-three-letters
// match, so "Jan", "january" and "JANUARY" all resolve to 1.
func MonthToPeriod(name string) (int, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return 0, errors.NewFormatError("month name is empty", nil)
	}
	if period, ok := monthAliases[normalized]; ok {
		return period, nil
	}
	if period, ok := monthOrder[normalized]; ok {
		return period, nil
	}
	if len(normalized) >= 3 {
		if period, ok := monthOrder[normalized[:3]]; ok {
			return period, nil
		}
	}
	return 0, errors.NewFormatError(fmt.Sprintf("unrecognized month name: %q", name), nil)
}

// IsForecastMonth reports whether month falls on or after forecastStart.
// The comparison is inclusive: the forecast-start month itself is
// Forecast, not Actual. Unrecognized names default to Actual.
func IsForecastMonth(month, forecastStart string) bool {
	monthNum, err := MonthToPeriod(month)
	if err != nil {
		return false
	}
	startNum, err := MonthToPeriod(forecastStart)
	if err != nil {
		return false
	}
	return monthNum >= startNum
}

// ExtractReleaseDate pulls a YYYY-MM release date out of a filename.
//
// It tries YYYY_MM and YYYY-MM first, then a compact YYYYMM whose month
// group parses as 1-12. Returns "" when no pattern matches; the caller
// decides whether that is fatal.
func ExtractReleaseDate(filename string) string {
	if m := separatedDatePattern.FindStringSubmatch(filename); m != nil {
		return m[1] + "-" + m[2]
	}
	if m := compactDatePattern.FindStringSubmatch(filename); m != nil {
		if month, err := strconv.Atoi(m[2]); err == nil && month >= 1 && month <= 12 {
			return m[1] + "-" + m[2]
		}
	}
	return ""
}

// ResolveReleaseDate returns the override verbatim when given, otherwise
// whatever ExtractReleaseDate finds in the filename.
func ResolveReleaseDate(filename, override string) string {
	if override != "" {
		return override
	}
	return ExtractReleaseDate(filename)
}

// ExtractFiscalYear parses the leading four digits of a YYYY-MM (or
// YYYY_MM) release date. The error is recoverable: callers log a warning
// and proceed with a zero fiscal year.
func ExtractFiscalYear(releaseDate string) (int, error) {
	trimmed := strings.TrimSpace(releaseDate)
	if trimmed == "" {
		return 0, errors.NewFormatError("release date is empty", nil)
	}
	yearPart := trimmed
	if i := strings.IndexAny(trimmed, "-_"); i >= 0 {
		yearPart = trimmed[:i]
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil || len(yearPart) != 4 {
		return 0, errors.NewFormatError(fmt.Sprintf("invalid release date format: %q, expected YYYY-MM", releaseDate), err)
	}
	return year, nil
}

// DetectDataType infers the data-type tag from a sheet name. Keywords are
// checked in order of specificity; sheets with no keyword default to
// Actual.
func DetectDataType(sheetName string) string {
	lower := strings.ToLower(sheetName)
	switch {
	case strings.Contains(lower, "forecast"):
		return domain.DataTypeForecast
	case strings.Contains(lower, "budg"):
		return domain.DataTypeBudget
	case strings.Contains(lower, "actu"):
		return domain.DataTypeActual
	default:
		return domain.DataTypeActual
	}
}
