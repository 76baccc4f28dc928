package quality

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"depivot/internal/errors"
	"depivot/pkg/contracts/domain"
)

// TemplateConfig configures workbook template validation. Workbook
// checks run against the file before data loads; table checks run on
// each parsed sheet.
type TemplateConfig struct {
	Enabled bool `yaml:"enabled"`

	RequiredSheets   []string `yaml:"required_sheets"`
	AllowExtraSheets *bool    `yaml:"allow_extra_sheets"`
	MinSheets        int      `yaml:"min_sheets"`
	MaxSheets        int      `yaml:"max_sheets"`
	AllowMergedCells *bool    `yaml:"allow_merged_cells"`

	RequiredColumns []string `yaml:"required_columns"`
	ExpectedOrder   []string `yaml:"expected_order"`
	StrictOrder     bool     `yaml:"strict_order"`
}

// TemplateValidator checks workbook and sheet structure against a
// configured template. Every violation is a TEMPLATE error.
type TemplateValidator struct {
	cfg TemplateConfig
}

// NewTemplateValidator builds a validator, or nil when template
// validation is disabled.
func NewTemplateValidator(cfg TemplateConfig) *TemplateValidator {
	if !cfg.Enabled {
		return nil
	}
	return &TemplateValidator{cfg: cfg}
}

// ValidateWorkbook checks file-level structure: required sheets, sheet
// count bounds and merged cells. It opens the workbook read-only and
// loads no cell data beyond merge ranges.
func (v *TemplateValidator) ValidateWorkbook(path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return errors.NewTemplateError(
			fmt.Sprintf("cannot open workbook %s for template validation", path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()

	if missing := missingNames(v.cfg.RequiredSheets, sheets); len(missing) > 0 {
		return errors.NewTemplateError(
			fmt.Sprintf("missing sheets in %s: %s (found: %s)",
				path, strings.Join(missing, ", "), strings.Join(sheets, ", ")),
			nil)
	}

	if v.cfg.AllowExtraSheets != nil && !*v.cfg.AllowExtraSheets {
		if extra := missingNames(sheets, v.cfg.RequiredSheets); len(extra) > 0 {
			return errors.NewTemplateError(
				fmt.Sprintf("extra sheets in %s: %s", path, strings.Join(extra, ", ")), nil)
		}
	}

	if v.cfg.MinSheets > 0 && len(sheets) < v.cfg.MinSheets {
		return errors.NewTemplateError(
			fmt.Sprintf("sheet count too low in %s: %d (minimum %d)", path, len(sheets), v.cfg.MinSheets), nil)
	}
	if v.cfg.MaxSheets > 0 && len(sheets) > v.cfg.MaxSheets {
		return errors.NewTemplateError(
			fmt.Sprintf("sheet count too high in %s: %d (maximum %d)", path, len(sheets), v.cfg.MaxSheets), nil)
	}

	if v.cfg.AllowMergedCells != nil && !*v.cfg.AllowMergedCells {
		for _, sheet := range sheets {
			merged, err := f.GetMergeCells(sheet)
			if err != nil {
				return errors.NewTemplateError(
					fmt.Sprintf("cannot inspect merged cells in sheet %q", sheet), err)
			}
			if len(merged) > 0 {
				ranges := make([]string, 0, len(merged))
				for i, m := range merged {
					if i == 5 {
						ranges = append(ranges, fmt.Sprintf("and %d more", len(merged)-5))
						break
					}
					ranges = append(ranges, m.GetStartAxis()+":"+m.GetEndAxis())
				}
				return errors.NewTemplateError(
					fmt.Sprintf("merged cells in sheet %q: %s", sheet, strings.Join(ranges, ", ")), nil)
			}
		}
	}

	return nil
}

// ValidateTable checks a parsed sheet's columns: required columns are
// present and expected columns appear in order. With StrictOrder the
// whole header must equal the expected list.
func (v *TemplateValidator) ValidateTable(table *domain.WideTable) error {
	actual := table.ColumnNames()

	if missing := missingNames(v.cfg.RequiredColumns, actual); len(missing) > 0 {
		return errors.NewTemplateError(
			fmt.Sprintf("required columns missing in sheet %q: %s (found: %s)",
				table.Sheet, strings.Join(missing, ", "), strings.Join(actual, ", ")),
			nil)
	}

	if len(v.cfg.ExpectedOrder) == 0 {
		return nil
	}

	if v.cfg.StrictOrder {
		if !equalNames(actual, v.cfg.ExpectedOrder) {
			return errors.NewTemplateError(
				fmt.Sprintf("column order mismatch in sheet %q: expected %s, found %s",
					table.Sheet, strings.Join(v.cfg.ExpectedOrder, ", "), strings.Join(actual, ", ")),
				nil)
		}
		return nil
	}

	// Expected columns must keep their relative order; others may sit
	// anywhere between them.
	expectedSet := make(map[string]struct{}, len(v.cfg.ExpectedOrder))
	for _, name := range v.cfg.ExpectedOrder {
		expectedSet[name] = struct{}{}
	}
	var inActual []string
	for _, name := range actual {
		if _, ok := expectedSet[name]; ok {
			inActual = append(inActual, name)
		}
	}
	if !equalNames(inActual, v.cfg.ExpectedOrder) {
		return errors.NewTemplateError(
			fmt.Sprintf("column order mismatch in sheet %q: expected order %s, found %s",
				table.Sheet, strings.Join(v.cfg.ExpectedOrder, ", "), strings.Join(inActual, ", ")),
			nil)
	}
	return nil
}

func missingNames(wanted, available []string) []string {
	set := make(map[string]struct{}, len(available))
	for _, name := range available {
		set[name] = struct{}{}
	}
	var missing []string
	for _, name := range wanted {
		if _, ok := set[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
