// Package exporter writes reshaped data and validation reports to
// Excel workbooks and CSV files. The Excel writer is the primary
// output path; CSV exists for downstream tools that want plain text.
// Missing values are written as empty cells in both formats.
package exporter
