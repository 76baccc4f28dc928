package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputPath derives the output workbook path for an input file by
// appending suffix to the file stem. The extension is always .xlsx
// regardless of the input format.
func OutputPath(inputPath, suffix string) string {
	dir := filepath.Dir(inputPath)
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(dir, stem+suffix+".xlsx")
}

// CheckWritable verifies the output path can be written. When
// overwrite is false an existing file is an error; callers surface it
// before any transform work is done.
func CheckWritable(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s (use overwrite to replace)", path)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
