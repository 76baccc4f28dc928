// Command depivot reshapes wide spreadsheets into long format.
//
// Single file:
//
//	depivot -in 2025_02_sites.xlsx -id Site,Category -exclude-totals
//
// Directory batch, one output per input:
//
//	depivot -in ./reports -id Site -drop-na -concurrency 4
//
// Directory batch combined into one workbook:
//
//	depivot -in ./reports -id Site -combine -out combined.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"depivot/internal/config"
	"depivot/internal/dataprocessing"
	"depivot/internal/exporter"
	"depivot/internal/files"
	"depivot/internal/infrastructure"
	"depivot/internal/quality"
	"depivot/internal/reader"
	"depivot/internal/upload"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	in := flag.String("in", "", "input workbook or directory (required)")
	out := flag.String("out", "", "output path; defaults to <input>_unpivoted.xlsx, or the input directory in batch mode")
	pattern := flag.String("pattern", "", "glob to select files in directory mode (default all Excel files)")
	recursive := flag.Bool("recursive", false, "recurse into subdirectories in directory mode")
	combine := flag.Bool("combine", false, "merge all inputs into one output workbook")
	csvOut := flag.Bool("csv", false, "write CSV files alongside the workbook")

	idCols := flag.String("id", "", "comma-separated identifier columns")
	valueCols := flag.String("value-columns", "", "comma-separated value columns (default: all non-identifier columns)")
	includeCols := flag.String("include", "", "comma-separated columns to include as value candidates")
	excludeCols := flag.String("exclude", "", "comma-separated columns to exclude from value candidates")
	sheets := flag.String("sheets", "", "comma-separated sheet names to process (default all)")
	skipSheets := flag.String("skip-sheets", "", "comma-separated sheet names to skip")
	headerRow := flag.Int("header-row", -1, "zero-based header row (default from config)")

	dropNA := flag.Bool("drop-na", false, "drop records with missing values")
	excludeTotals := flag.Bool("exclude-totals", false, "filter summary rows before reshaping")
	patterns := flag.String("summary-patterns", "", "comma-separated summary patterns (replaces the default set)")
	releaseDate := flag.String("release-date", "", "release date override (used verbatim)")
	dataType := flag.String("data-type", "", "data type override: Actual, Budget or Forecast")
	forecastStart := flag.String("forecast-start", "", "first forecast month for Actual sheets")
	stopOnError := flag.Bool("stop-on-error", false, "abort the run on the first sheet failure")
	skipValidation := flag.Bool("skip-validation", false, "skip the totals validation report")
	skipQuality := flag.Bool("skip-quality", false, "skip data-quality rules and template validation")
	concurrency := flag.Int("concurrency", 0, "files processed in parallel (default from config)")
	overwrite := flag.Bool("overwrite", false, "overwrite existing output files")
	verbose := flag.Bool("verbose", false, "debug logging")
	saveConfig := flag.String("save-config", "", "write the effective configuration to a YAML file and exit")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(2)
	}

	// Flags override file and environment configuration.
	applyFlagOverrides(cfg, map[string]func(){
		"id":               func() { cfg.Pipeline.IDColumns = splitList(*idCols) },
		"value-columns":    func() { cfg.Pipeline.ValueColumns = splitList(*valueCols) },
		"include":          func() { cfg.Pipeline.IncludeColumns = splitList(*includeCols) },
		"exclude":          func() { cfg.Pipeline.ExcludeColumns = splitList(*excludeCols) },
		"sheets":           func() { cfg.Pipeline.SheetNames = splitList(*sheets) },
		"skip-sheets":      func() { cfg.Pipeline.SkipSheets = splitList(*skipSheets) },
		"header-row":       func() { cfg.Pipeline.HeaderRow = *headerRow },
		"drop-na":          func() { cfg.Pipeline.DropNA = *dropNA },
		"exclude-totals":   func() { cfg.Pipeline.ExcludeTotals = *excludeTotals },
		"summary-patterns": func() { cfg.Pipeline.SummaryPatterns = splitList(*patterns) },
		"release-date":     func() { cfg.Pipeline.ReleaseDate = *releaseDate },
		"data-type":        func() { cfg.Pipeline.DataTypeOverride = *dataType },
		"forecast-start":   func() { cfg.Pipeline.ForecastStart = *forecastStart },
		"stop-on-error":    func() { cfg.Pipeline.StopOnError = *stopOnError },
		"skip-validation":  func() { cfg.Pipeline.SkipValidation = *skipValidation },
		"skip-quality": func() {
			if *skipQuality {
				cfg.Quality.Enabled = false
				cfg.Template.Enabled = false
			}
		},
		"concurrency":      func() { cfg.Pipeline.Concurrency = *concurrency },
		"overwrite":        func() { cfg.Output.Overwrite = *overwrite },
		"combine":          func() { cfg.Output.CombineSheets = *combine },
	})
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}

	if *saveConfig != "" {
		if err := cfg.Save(*saveConfig); err != nil {
			slog.Error("Failed to save configuration", "error", err)
			os.Exit(1)
		}
		fmt.Println("configuration written to", *saveConfig)
		return
	}

	if *in == "" {
		fmt.Fprintln(os.Stderr, "missing required -in flag")
		flag.Usage()
		os.Exit(2)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	if err := run(context.Background(), cfg, logger, *in, *out, *pattern, *recursive, *csvOut); err != nil {
		logger.Error("run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// applyFlagOverrides runs the override for every flag explicitly set on
// the command line.
func applyFlagOverrides(cfg *config.Config, overrides map[string]func()) {
	flag.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, in, out, pattern string, recursive, csvOut bool) error {
	inputs, err := collectInputs(cfg, in, pattern, recursive)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no Excel files found under %s", in)
	}

	logger.Info("starting depivot run",
		slog.Int("files", len(inputs)),
		slog.Bool("combine", cfg.Output.CombineSheets))

	r := reader.NewReader(logger)
	readOpts := reader.Options{
		SheetNames: cfg.Pipeline.SheetNames,
		SkipSheets: cfg.Pipeline.SkipSheets,
		HeaderRow:  cfg.Pipeline.HeaderRow,
	}

	qualityEngine := quality.NewEngine(cfg.Quality, logger)
	templateValidator := quality.NewTemplateValidator(cfg.Template)

	units := make([]dataprocessing.Unit, 0, len(inputs))
	unitPaths := make([]string, 0, len(inputs))
	for _, input := range inputs {
		if templateValidator != nil {
			if err := templateValidator.ValidateWorkbook(input); err != nil {
				if cfg.Pipeline.StopOnError {
					return err
				}
				logger.Error("skipping file failing template validation",
					slog.String("path", input),
					slog.String("error", err.Error()))
				continue
			}
		}
		sheets, err := r.ReadFile(input, readOpts)
		if err != nil {
			if cfg.Pipeline.StopOnError {
				return err
			}
			logger.Error("skipping unreadable file",
				slog.String("path", input),
				slog.String("error", err.Error()))
			continue
		}
		units = append(units, dataprocessing.Unit{Label: filepath.Base(input), Sheets: sheets})
		unitPaths = append(unitPaths, input)
	}
	if len(units) == 0 {
		return fmt.Errorf("no readable input files")
	}

	pipeline := dataprocessing.NewPipeline(logger)
	pipelineOpts := dataprocessing.PipelineOptions{
		Unpivot:        unpivotOptions(cfg),
		SkipValidation: cfg.Pipeline.SkipValidation,
		StopOnError:    cfg.Pipeline.StopOnError,
		Concurrency:    cfg.Pipeline.Concurrency,
		Quality:        qualityEngine,
		Template:       templateValidator,
	}

	excelWriter := exporter.NewExcelWriter(logger)
	csvWriter := exporter.NewCSVWriter(logger)
	excelOpts := exporter.ExcelOptions{
		DataSheetName:       cfg.Output.DataSheetName,
		ValidationSheetName: cfg.Output.ValidationSheetName,
	}

	writeRun := func(run *dataprocessing.RunResult, outputPath string) error {
		if err := files.CheckWritable(outputPath, cfg.Output.Overwrite); err != nil {
			return err
		}
		if err := excelWriter.Write(outputPath, run.Data, run.Validation, excelOpts); err != nil {
			return err
		}
		if csvOut {
			stem := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
			if err := csvWriter.WriteDataCSV(stem+".csv", run.Data); err != nil {
				return err
			}
			if len(run.Validation) > 0 {
				if err := csvWriter.WriteValidationCSV(stem+"_validation.csv", run.Validation); err != nil {
					return err
				}
			}
		}
		for _, stats := range run.Stats {
			logger.Info("sheet processed",
				slog.String("file", stats.SourceFile),
				slog.String("sheet", stats.Sheet),
				slog.Int("source_rows", stats.SourceRows),
				slog.Int("filtered_rows", stats.FilteredRows),
				slog.Int("records", stats.OutputRecords),
				slog.Int("missing", stats.MissingValues),
				slog.Int("dropped_na", stats.DroppedNA))
		}
		for _, failure := range run.Failures {
			logger.Warn("sheet skipped",
				slog.String("file", failure.Unit),
				slog.String("sheet", failure.Sheet),
				slog.String("error", failure.Err))
		}
		for _, report := range run.Quality {
			for _, res := range report.Results {
				if res.Passed {
					continue
				}
				logger.Warn("quality rule failed",
					slog.String("file", report.Unit),
					slog.String("sheet", report.Sheet),
					slog.String("phase", report.Phase),
					slog.String("rule", res.Rule),
					slog.String("severity", string(res.Severity)),
					slog.String("message", res.Message))
			}
		}
		return nil
	}

	if cfg.Output.CombineSheets || len(units) == 1 {
		run, err := pipeline.Process(ctx, units, pipelineOpts)
		if err != nil {
			return err
		}
		outputPath := out
		if outputPath == "" {
			outputPath = files.OutputPath(unitPaths[0], cfg.Output.Suffix)
		}
		if err := writeRun(run, outputPath); err != nil {
			return err
		}
		return uploadRun(ctx, cfg, logger, run)
	}

	// One output per input; the output directory may be redirected
	// with -out.
	for i, unit := range units {
		run, err := pipeline.Process(ctx, []dataprocessing.Unit{unit}, pipelineOpts)
		if err != nil {
			return err
		}
		outputPath := files.OutputPath(unitPaths[i], cfg.Output.Suffix)
		if out != "" {
			outputPath = filepath.Join(out, filepath.Base(outputPath))
		}
		if err := writeRun(run, outputPath); err != nil {
			return err
		}
		if err := uploadRun(ctx, cfg, logger, run); err != nil {
			return err
		}
	}
	return nil
}

func collectInputs(cfg *config.Config, in, pattern string, recursive bool) ([]string, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, fmt.Errorf("cannot access input %s: %w", in, err)
	}
	if !info.IsDir() {
		return []string{in}, nil
	}

	discovery := files.NewDiscovery("", cfg.Output.Suffix)
	var found []files.FileInfo
	switch {
	case pattern != "":
		found, err = discovery.FindFilesByPattern(in, pattern)
	case recursive:
		found, err = discovery.FindExcelFilesRecursive(in)
	default:
		found, err = discovery.FindExcelFiles(in)
	}
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.Path
	}
	return paths, nil
}

func unpivotOptions(cfg *config.Config) dataprocessing.UnpivotOptions {
	return dataprocessing.UnpivotOptions{
		IDColumns:        cfg.Pipeline.IDColumns,
		ValueColumns:     cfg.Pipeline.ValueColumns,
		IncludeColumns:   cfg.Pipeline.IncludeColumns,
		ExcludeColumns:   cfg.Pipeline.ExcludeColumns,
		VariableName:     cfg.Pipeline.VariableName,
		ValueName:        cfg.Pipeline.ValueName,
		IndexColumnName:  cfg.Pipeline.IndexColumnName,
		ExcludeTotals:    cfg.Pipeline.ExcludeTotals,
		SummaryPatterns:  cfg.Pipeline.SummaryPatterns,
		DropNA:           cfg.Pipeline.DropNA,
		DataTypeOverride: cfg.Pipeline.DataTypeOverride,
		ForecastStart:    cfg.Pipeline.ForecastStart,
		ReleaseDate:      cfg.Pipeline.ReleaseDate,
	}
}

// uploadRun pushes the run's records to the database when SQL upload
// is enabled. Unmapped sites are a warning, not a failure.
func uploadRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, run *dataprocessing.RunResult) error {
	if !cfg.SQL.Enabled {
		return nil
	}

	uploader, err := upload.NewUploader(ctx, cfg.SQL.DSN, logger)
	if err != nil {
		return err
	}
	defer uploader.Close()

	mapping, err := uploader.FetchSiteMapping(ctx, cfg.SQL.LookupTable)
	if err != nil {
		return err
	}

	result, err := upload.Transform(run.Data.Records, run.Data.IDColumns, mapping)
	if err != nil {
		return err
	}
	if len(result.UnmappedSites) > 0 {
		logger.Warn("sites without project mapping were skipped",
			slog.Any("sites", result.UnmappedSites))
	}

	copied, err := uploader.Upload(ctx, cfg.SQL.Table, cfg.SQL.Mode, result.Rows)
	if err != nil {
		return err
	}

	logger.Info("database upload finished",
		slog.Int64("rows", copied),
		slog.Int("skipped_missing", result.SkippedMissing),
		slog.Int("skipped_period", result.SkippedPeriod))
	return nil
}
