package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	apperrors "depivot/internal/errors"
	"depivot/pkg/contracts/domain"
)

// ExcelOptions names the output sheets. Empty fields fall back to the
// conventional names.
type ExcelOptions struct {
	DataSheetName       string
	ValidationSheetName string
}

func (o ExcelOptions) dataSheet() string {
	if o.DataSheetName == "" {
		return "Data"
	}
	return o.DataSheetName
}

func (o ExcelOptions) validationSheet() string {
	if o.ValidationSheetName == "" {
		return "Validation"
	}
	return o.ValidationSheetName
}

// ExcelWriter writes long tables and validation reports to workbooks.
type ExcelWriter struct {
	logger *slog.Logger
}

// NewExcelWriter creates a workbook writer. A nil logger falls back to
// the process default.
func NewExcelWriter(logger *slog.Logger) *ExcelWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelWriter{logger: logger}
}

// Write saves the long table to the data sheet and, when validation
// records are present, the report to the validation sheet.
func (w *ExcelWriter) Write(path string, long *domain.LongTable, validation []domain.ValidationRecord, opts ExcelOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create output directory", err).
			WithContext("path", path)
	}

	f := excelize.NewFile()
	defer f.Close()

	dataSheet := opts.dataSheet()
	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return apperrors.NewStorageError("failed to name data sheet", err)
	}

	if err := writeSheet(f, dataSheet, DataHeader(long), len(long.Records), func(i int) []interface{} {
		return dataRow(long.Records[i])
	}); err != nil {
		return err
	}

	if len(validation) > 0 {
		sheet := opts.validationSheet()
		if _, err := f.NewSheet(sheet); err != nil {
			return apperrors.NewStorageError("failed to create validation sheet", err)
		}
		if err := writeSheet(f, sheet, ValidationHeader(), len(validation), func(i int) []interface{} {
			return validationRow(validation[i])
		}); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return apperrors.NewStorageError("failed to save workbook", err).
			WithContext("path", path)
	}

	w.logger.Info("workbook written",
		slog.String("path", path),
		slog.Int("records", len(long.Records)),
		slog.Int("validation_records", len(validation)))

	return nil
}

// writeSheet streams header and rows through excelize's stream writer,
// which keeps memory flat for large outputs.
func writeSheet(f *excelize.File, sheet string, header []string, rows int, row func(int) []interface{}) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to open stream writer for sheet %q", sheet), err)
	}

	headerRow := make([]interface{}, len(header))
	for i, name := range header {
		headerRow[i] = name
	}
	if err := sw.SetRow("A1", headerRow); err != nil {
		return apperrors.NewStorageError("failed to write header row", err)
	}

	for i := 0; i < rows; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperrors.NewStorageError("failed to compute cell coordinates", err)
		}
		if err := sw.SetRow(cell, row(i)); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to write row %d", i+2), err)
		}
	}

	return sw.Flush()
}
