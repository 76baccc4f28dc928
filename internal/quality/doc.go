// Package quality implements configurable data-quality rules and
// workbook template checks that run around the reshape core.
//
// Rules execute in two phases. Pre-processing rules inspect the wide
// table before any reshaping (blank ratios, duplicates, required
// columns, value ranges, column types). Post-processing rules inspect
// the long output against its filtered source (row-count law, numeric
// conversion rate, statistical outliers, dimension completeness,
// totals reconciliation).
//
// Every rule carries a severity. Failures at "warning" or "info" are
// reported and processing continues; a failure at "error" severity
// aborts the sheet with a QUALITY error. Template checks are stricter:
// any violation is a TEMPLATE error.
package quality
