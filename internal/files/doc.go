// Package files locates workbook inputs and derives output paths for
// their transformed counterparts. Discovery is non-recursive by
// default and skips files that already carry the output suffix so a
// second run over the same directory does not re-process its own
// results.
package files
