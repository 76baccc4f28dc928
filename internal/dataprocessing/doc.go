// Package dataprocessing implements the wide-to-long reshaping core.
// It consolidates numeric normalization, summary-row filtering, period
// resolution, the unpivot engine and totals validation into a cohesive
// package that handles the complete transform from wide sheet tables to
// long-format records with a per-run validation report.
//
// # Architecture
//
// The package is organized into five main components:
//
// 1. Normalizer: cleans raw cell values into float64 or the missing marker
// 2. Summary filter: drops subtotal and grand-total artifact rows
// 3. Period resolver: release dates, fiscal years and month-to-period mapping
// 4. Engine: the unpivot operation itself
// 5. Validator: recomputes row/sheet/grand totals and reports mismatches
//
// The Pipeline composes all of the above across sheets and files.
//
// # Data Flow
//
// The typical data flow through this package:
//
//	WideTable → summary filter → Engine → LongRecords → Validator → ValidationRecords
//
// # Error Handling
//
// Structural problems (missing identifier columns) fail fast with a
// SCHEMA error before any row is processed. Data-quality problems
// (unparseable months, bad release dates) recover locally to null values
// and are surfaced through SheetStats rather than raised. A totals
// mismatch is never an error: it is returned as data for the caller to
// inspect or escalate.
//
// # Concurrency
//
// Every component is pure and stateless between calls. The Pipeline may
// process units concurrently; combined output is always reassembled into
// canonical unit-then-sheet-then-row order, so concurrency is never
// observable in results.
package dataprocessing
