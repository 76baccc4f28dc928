package quality

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"depivot/pkg/contracts/domain"
)

// ruleRegistry maps configuration names to rule constructors.
var ruleRegistry = map[string]func(RuleConfig) Rule{
	"check_null_values":        func(c RuleConfig) Rule { return &nullValuesRule{cfg: c} },
	"check_duplicates":         func(c RuleConfig) Rule { return &duplicatesRule{cfg: c} },
	"check_column_types":       func(c RuleConfig) Rule { return &columnTypesRule{cfg: c} },
	"check_value_ranges":       func(c RuleConfig) Rule { return &valueRangesRule{cfg: c} },
	"check_required_columns":   func(c RuleConfig) Rule { return &requiredColumnsRule{cfg: c} },
	"check_row_count":          func(c RuleConfig) Rule { return &rowCountRule{cfg: c} },
	"check_numeric_conversion": func(c RuleConfig) Rule { return &numericConversionRule{cfg: c} },
	"check_outliers":           func(c RuleConfig) Rule { return &outliersRule{cfg: c} },
	"check_data_completeness":  func(c RuleConfig) Rule { return &completenessRule{cfg: c} },
	"check_totals_match":       func(c RuleConfig) Rule { return &totalsMatchRule{cfg: c} },
}

// numericValue coerces a cell to a number without the engine's currency
// cleaning: plain conversion only, so formatted text counts as
// non-numeric here even when the reshape would recover it.
func numericValue(cell domain.Cell) (float64, bool) {
	switch cell.Kind {
	case domain.CellNumber:
		return cell.Number, true
	case domain.CellText:
		v, err := strconv.ParseFloat(strings.TrimSpace(cell.Text), 64)
		return v, err == nil
	default:
		return 0, false
	}
}

func pass(name string, sev Severity, message string) Result {
	return Result{Rule: name, Severity: sev, Passed: true, Message: message}
}

func fail(name string, sev Severity, message string, details map[string]interface{}) Result {
	return Result{Rule: name, Severity: sev, Passed: false, Message: message, Details: details}
}

// nullValuesRule flags columns whose blank ratio exceeds a threshold.
type nullValuesRule struct{ cfg RuleConfig }

func (r *nullValuesRule) Name() string { return "check_null_values" }

func (r *nullValuesRule) Validate(ctx *Context) Result {
	threshold := r.cfg.Threshold
	if threshold == 0 {
		threshold = 0.05
	}

	columns := r.cfg.Columns
	if len(columns) == 0 {
		columns = ctx.Wide.ColumnNames()
	}

	rows := ctx.Wide.RowCount()
	var issues []string
	for _, name := range columns {
		idx := ctx.Wide.ColumnIndex(name)
		if idx < 0 || rows == 0 {
			continue
		}
		blank := 0
		for row := 0; row < rows; row++ {
			if ctx.Wide.Cell(row, idx).IsBlank() {
				blank++
			}
		}
		ratio := float64(blank) / float64(rows)
		if ratio > threshold {
			issues = append(issues, fmt.Sprintf("%s (%.1f%%)", name, ratio*100))
		}
	}

	if len(issues) > 0 {
		return fail(r.Name(), r.cfg.severity(),
			fmt.Sprintf("blank ratio above %.0f%% in: %s", threshold*100, strings.Join(issues, ", ")),
			map[string]interface{}{"columns": issues, "threshold": threshold})
	}
	return pass(r.Name(), r.cfg.severity(), "no excessive blank values")
}

// duplicatesRule flags rows that repeat, either on key columns or in
// their entirety.
type duplicatesRule struct{ cfg RuleConfig }

func (r *duplicatesRule) Name() string { return "check_duplicates" }

func (r *duplicatesRule) Validate(ctx *Context) Result {
	keyIdx := make([]int, 0)
	if len(r.cfg.KeyColumns) > 0 {
		for _, name := range r.cfg.KeyColumns {
			if idx := ctx.Wide.ColumnIndex(name); idx >= 0 {
				keyIdx = append(keyIdx, idx)
			}
		}
	} else {
		for i := range ctx.Wide.Columns {
			keyIdx = append(keyIdx, i)
		}
	}

	rows := ctx.Wide.RowCount()
	counts := make(map[string]int, rows)
	for row := 0; row < rows; row++ {
		parts := make([]string, len(keyIdx))
		for i, idx := range keyIdx {
			parts[i] = ctx.Wide.Cell(row, idx).String()
		}
		counts[strings.Join(parts, "\x1f")]++
	}

	duplicated := 0
	for _, n := range counts {
		if n > 1 {
			duplicated += n
		}
	}

	if duplicated > 0 {
		return fail(r.Name(), r.cfg.severity(),
			fmt.Sprintf("%d duplicate rows detected", duplicated),
			map[string]interface{}{"duplicate_count": duplicated, "key_columns": r.cfg.KeyColumns})
	}
	return pass(r.Name(), r.cfg.severity(), "no duplicates detected")
}

// columnTypesRule checks columns against expected semantic types. A
// column is numeric when every non-blank cell coerces to a number.
type columnTypesRule struct{ cfg RuleConfig }

func (r *columnTypesRule) Name() string { return "check_column_types" }

func (r *columnTypesRule) Validate(ctx *Context) Result {
	names := make([]string, 0, len(r.cfg.Types))
	for name := range r.cfg.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	var issues []string
	for _, name := range names {
		expected := r.cfg.Types[name]
		idx := ctx.Wide.ColumnIndex(name)
		if idx < 0 {
			issues = append(issues, fmt.Sprintf("%s (missing)", name))
			continue
		}
		if actual := inferType(ctx.Wide, idx); actual != expected {
			issues = append(issues, fmt.Sprintf("%s (expected %s, got %s)", name, expected, actual))
		}
	}

	if len(issues) > 0 {
		return fail(r.Name(), r.cfg.severity(),
			"column type mismatch: "+strings.Join(issues, ", "),
			map[string]interface{}{"issues": issues})
	}
	return pass(r.Name(), r.cfg.severity(), "all column types match")
}

func inferType(table *domain.WideTable, col int) string {
	rows := table.RowCount()
	sawValue := false
	for row := 0; row < rows; row++ {
		cell := table.Cell(row, col)
		if cell.IsBlank() {
			continue
		}
		sawValue = true
		if _, ok := numericValue(cell); !ok {
			return "text"
		}
	}
	if !sawValue {
		return "text"
	}
	return "numeric"
}

// valueRangesRule flags numeric values outside configured bounds.
type valueRangesRule struct{ cfg RuleConfig }

func (r *valueRangesRule) Name() string { return "check_value_ranges" }

func (r *valueRangesRule) Validate(ctx *Context) Result {
	names := make([]string, 0, len(r.cfg.Ranges))
	for name := range r.cfg.Ranges {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := ctx.Wide.RowCount()
	var issues []string
	total := 0
	for _, name := range names {
		bounds := r.cfg.Ranges[name]
		idx := ctx.Wide.ColumnIndex(name)
		if idx < 0 {
			continue
		}
		outliers := 0
		for row := 0; row < rows; row++ {
			v, ok := numericValue(ctx.Wide.Cell(row, idx))
			if !ok {
				continue
			}
			if (bounds.Min != nil && v < *bounds.Min) || (bounds.Max != nil && v > *bounds.Max) {
				outliers++
			}
		}
		if outliers > 0 {
			issues = append(issues, fmt.Sprintf("%s (%d out of range)", name, outliers))
			total += outliers
		}
	}

	if len(issues) > 0 {
		return fail(r.Name(), r.cfg.severity(),
			"values out of range: "+strings.Join(issues, ", "),
			map[string]interface{}{"issues": issues, "total": total})
	}
	return pass(r.Name(), r.cfg.severity(), "all values within expected ranges")
}

// requiredColumnsRule checks required columns exist and hold data.
type requiredColumnsRule struct{ cfg RuleConfig }

func (r *requiredColumnsRule) Name() string { return "check_required_columns" }

func (r *requiredColumnsRule) Validate(ctx *Context) Result {
	rows := ctx.Wide.RowCount()
	var issues []string
	for _, name := range r.cfg.Columns {
		idx := ctx.Wide.ColumnIndex(name)
		if idx < 0 {
			issues = append(issues, fmt.Sprintf("%s (missing)", name))
			continue
		}
		if r.cfg.AllowAllBlank {
			continue
		}
		allBlank := true
		for row := 0; row < rows; row++ {
			if !ctx.Wide.Cell(row, idx).IsBlank() {
				allBlank = false
				break
			}
		}
		if allBlank {
			issues = append(issues, fmt.Sprintf("%s (all blank)", name))
		}
	}

	if len(issues) > 0 {
		return fail(r.Name(), r.cfg.severity(),
			"required column problems: "+strings.Join(issues, ", "),
			map[string]interface{}{"issues": issues})
	}
	return pass(r.Name(), r.cfg.severity(), "all required columns present")
}

// rowCountRule checks the output size against the row-count law:
// source rows times value columns.
type rowCountRule struct{ cfg RuleConfig }

func (r *rowCountRule) Name() string { return "check_row_count" }

func (r *rowCountRule) Validate(ctx *Context) Result {
	if ctx.Source == nil || ctx.Long == nil {
		return pass(r.Name(), r.cfg.severity(), "skipped (missing context)")
	}

	minRatio, maxRatio := r.cfg.MinRatio, r.cfg.MaxRatio
	if minRatio == 0 {
		minRatio = 0.9
	}
	if maxRatio == 0 {
		maxRatio = 1.1
	}

	expected := ctx.Source.RowCount() * len(ctx.ValueColumns)
	actual := len(ctx.Long.Records)
	ratio := 0.0
	if expected > 0 {
		ratio = float64(actual) / float64(expected)
	}

	if ratio < minRatio || ratio > maxRatio {
		return fail(r.Name(), r.cfg.severity(),
			fmt.Sprintf("row count off: expected %d, got %d (%.2fx)", expected, actual, ratio),
			map[string]interface{}{"expected": expected, "actual": actual, "ratio": ratio})
	}
	return pass(r.Name(), r.cfg.severity(),
		fmt.Sprintf("row count valid: %d rows (%.2fx expected)", actual, ratio))
}

// numericConversionRule tracks how many output values failed numeric
// conversion and became missing.
type numericConversionRule struct{ cfg RuleConfig }

func (r *numericConversionRule) Name() string { return "check_numeric_conversion" }

func (r *numericConversionRule) Validate(ctx *Context) Result {
	if ctx.Long == nil {
		return pass(r.Name(), r.cfg.severity(), "skipped (missing context)")
	}

	maxRatio := r.cfg.MaxNullRatio
	if maxRatio == 0 {
		maxRatio = 0.1
	}

	missing := 0
	for _, rec := range ctx.Long.Records {
		if domain.IsMissing(rec.Value) {
			missing++
		}
	}
	ratio := 0.0
	if len(ctx.Long.Records) > 0 {
		ratio = float64(missing) / float64(len(ctx.Long.Records))
	}

	if ratio > maxRatio {
		return fail(r.Name(), r.cfg.severity(),
			fmt.Sprintf("%d values (%.1f%%) failed numeric conversion", missing, ratio*100),
			map[string]interface{}{"missing": missing, "ratio": ratio, "max_ratio": maxRatio})
	}
	return pass(r.Name(), r.cfg.severity(),
		fmt.Sprintf("numeric conversion successful: %.1f%% missing", ratio*100))
}

// outliersRule detects statistical outliers in the output values using
// z-scores or the interquartile range.
type outliersRule struct{ cfg RuleConfig }

func (r *outliersRule) Name() string { return "check_outliers" }

func (r *outliersRule) Validate(ctx *Context) Result {
	if ctx.Long == nil {
		return pass(r.Name(), r.cfg.severity(), "skipped (missing context)")
	}

	method := r.cfg.Method
	if method == "" {
		method = "zscore"
	}
	threshold := r.cfg.Threshold
	if threshold == 0 {
		if method == "iqr" {
			threshold = 1.5
		} else {
			threshold = 3.0
		}
	}

	var values []float64
	for _, rec := range ctx.Long.Records {
		if !domain.IsMissing(rec.Value) {
			values = append(values, rec.Value)
		}
	}
	if len(values) == 0 {
		return pass(r.Name(), r.cfg.severity(), "no numeric values to check")
	}

	outliers := 0
	switch method {
	case "iqr":
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		q1 := quantile(sorted, 0.25)
		q3 := quantile(sorted, 0.75)
		iqr := q3 - q1
		lower, upper := q1-threshold*iqr, q3+threshold*iqr
		for _, v := range values {
			if v < lower || v > upper {
				outliers++
			}
		}
	default:
		mean, std := meanStd(values)
		if std > 0 {
			for _, v := range values {
				if math.Abs(v-mean)/std > threshold {
					outliers++
				}
			}
		}
	}

	if outliers > 0 {
		return fail(r.Name(), r.cfg.severity(),
			fmt.Sprintf("%d outliers detected (method %s, threshold %g)", outliers, method, threshold),
			map[string]interface{}{"outliers": outliers, "method": method, "threshold": threshold})
	}
	return pass(r.Name(), r.cfg.severity(),
		fmt.Sprintf("no outliers detected (method %s, threshold %g)", method, threshold))
}

// meanStd returns mean and sample standard deviation.
func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}

// quantile interpolates linearly over a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// completenessRule checks that every dimension combination carries all
// expected variable values.
type completenessRule struct{ cfg RuleConfig }

func (r *completenessRule) Name() string { return "check_data_completeness" }

func (r *completenessRule) Validate(ctx *Context) Result {
	if ctx.Long == nil {
		return pass(r.Name(), r.cfg.severity(), "skipped (missing context)")
	}
	if len(r.cfg.Dimensions) == 0 || len(r.cfg.ExpectedValues) == 0 {
		return pass(r.Name(), r.cfg.severity(), "skipped (no dimensions or expected values configured)")
	}

	dimIdx := make([]int, 0, len(r.cfg.Dimensions))
	for _, name := range r.cfg.Dimensions {
		found := -1
		for i, id := range ctx.Long.IDColumns {
			if id == name {
				found = i
				break
			}
		}
		if found < 0 {
			return pass(r.Name(), r.cfg.severity(),
				fmt.Sprintf("skipped (dimension %q not an identifier column)", name))
		}
		dimIdx = append(dimIdx, found)
	}

	expected := make(map[string]struct{}, len(r.cfg.ExpectedValues))
	for _, v := range r.cfg.ExpectedValues {
		expected[v] = struct{}{}
	}

	var order []string
	seen := make(map[string]map[string]struct{})
	for _, rec := range ctx.Long.Records {
		parts := make([]string, len(dimIdx))
		for i, idx := range dimIdx {
			parts[i] = rec.IDValues[idx].String()
		}
		key := strings.Join(parts, " | ")
		vars, ok := seen[key]
		if !ok {
			vars = make(map[string]struct{})
			seen[key] = vars
			order = append(order, key)
		}
		vars[rec.Variable] = struct{}{}
	}

	var issues []string
	for _, key := range order {
		var missing []string
		for v := range expected {
			if _, ok := seen[key][v]; !ok {
				missing = append(missing, v)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			issues = append(issues, fmt.Sprintf("%s missing %s", key, strings.Join(missing, ", ")))
		}
	}

	if len(issues) > 0 {
		return fail(r.Name(), r.cfg.severity(),
			"incomplete dimension combinations: "+strings.Join(issues, "; "),
			map[string]interface{}{"issues": issues, "total": len(issues)})
	}
	return pass(r.Name(), r.cfg.severity(), "all dimension combinations complete")
}

// totalsMatchRule reconciles raw source totals against the output.
// Unlike the validation report, the source side here uses plain
// coercion, so heavily formatted sheets can legitimately differ.
type totalsMatchRule struct{ cfg RuleConfig }

func (r *totalsMatchRule) Name() string { return "check_totals_match" }

func (r *totalsMatchRule) Validate(ctx *Context) Result {
	if ctx.Source == nil || ctx.Long == nil {
		return pass(r.Name(), r.cfg.severity(), "skipped (missing context)")
	}

	tolerance := r.cfg.Tolerance
	if tolerance == 0 {
		tolerance = 0.01
	}

	var sourceTotal float64
	rows := ctx.Source.RowCount()
	for _, name := range ctx.ValueColumns {
		idx := ctx.Source.ColumnIndex(name)
		if idx < 0 {
			continue
		}
		for row := 0; row < rows; row++ {
			if v, ok := numericValue(ctx.Source.Cell(row, idx)); ok {
				sourceTotal += v
			}
		}
	}

	var processedTotal float64
	for _, rec := range ctx.Long.Records {
		if !domain.IsMissing(rec.Value) {
			processedTotal += rec.Value
		}
	}

	diff := math.Abs(sourceTotal - processedTotal)
	if diff > tolerance {
		return fail(r.Name(), r.cfg.severity(),
			fmt.Sprintf("totals differ by %.2f (source %.2f, processed %.2f)", diff, sourceTotal, processedTotal),
			map[string]interface{}{"source_total": sourceTotal, "processed_total": processedTotal, "difference": diff})
	}
	return pass(r.Name(), r.cfg.severity(),
		fmt.Sprintf("totals match within tolerance: diff=%.2f", diff))
}
