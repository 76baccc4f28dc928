package dataprocessing

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"depivot/internal/quality"
	"depivot/pkg/contracts/domain"
)

// AllFilesLabel marks the grand-total record of a multi-file run.
const AllFilesLabel = "ALL_FILES"

// Unit is one source file: its label (the filename, used for release-date
// extraction and traceability) and its sheets in reading order.
type Unit struct {
	Label  string
	Sheets []*domain.WideTable
}

// PipelineOptions configures a whole run.
type PipelineOptions struct {
	// Unpivot holds the per-sheet reshape options. Its ReleaseDate field
	// acts as an override; when empty, each unit's release date is
	// extracted from its label.
	Unpivot UnpivotOptions

	// SkipValidation disables the totals report.
	SkipValidation bool

	// StopOnError aborts the run on the first sheet failure instead of
	// recording it and continuing.
	StopOnError bool

	// Quality runs configured data-quality rules around each sheet's
	// reshape. Nil disables quality checking.
	Quality *quality.Engine

	// Template checks each sheet's column structure before reshaping.
	// Nil disables template checking.
	Template *quality.TemplateValidator

	// Concurrency bounds how many units process in flight. Values below
	// two mean serial. Output order is canonical either way.
	Concurrency int
}

// SheetFailure records a sheet that could not be processed.
type SheetFailure struct {
	Unit  string `json:"unit"`
	Sheet string `json:"sheet"`
	Err   string `json:"error"`
}

// QualityReport attaches one sheet's quality rule results to its unit.
type QualityReport struct {
	Unit    string           `json:"unit"`
	Sheet   string           `json:"sheet"`
	Phase   string           `json:"phase"`
	Results []quality.Result `json:"results"`
}

// RunResult is the combined outcome of one run: a single logical data
// table, the validation report with exactly one GRAND_TOTAL record, and
// per-sheet statistics. Duplicate identifier/period combinations from
// multiple files are preserved as separate rows.
type RunResult struct {
	RunID      string                    `json:"run_id"`
	Data       *domain.LongTable         `json:"data"`
	Validation []domain.ValidationRecord `json:"validation,omitempty"`
	Stats      []domain.SheetStats       `json:"stats"`
	Failures   []SheetFailure            `json:"failures,omitempty"`
	Quality    []QualityReport           `json:"quality,omitempty"`
}

// Pipeline composes filtering, unpivoting and validation across sheets
// and files. It owns no state between runs.
type Pipeline struct {
	engine    *Engine
	validator *Validator
	logger    *slog.Logger
}

// NewPipeline creates a new multi-unit pipeline.
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		engine:    NewEngine(logger),
		validator: NewValidator(),
		logger:    logger,
	}
}

// unitResult holds one unit's output before deterministic reassembly.
type unitResult struct {
	idColumns  []string
	records    []domain.LongRecord
	validation []domain.ValidationRecord
	stats      []domain.SheetStats
	failures   []SheetFailure
	quality    []QualityReport
}

// Process runs every unit and merges results in canonical
// unit-then-sheet-then-row order. Units are independent, so they may be
// processed concurrently; the combined sequences are always reassembled
// into caller-supplied order before returning.
func (p *Pipeline) Process(ctx context.Context, units []Unit, opts PipelineOptions) (*RunResult, error) {
	results := make([]*unitResult, len(units))

	if opts.Concurrency > 1 && len(units) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for i := range units {
			g.Go(func() error {
				res, err := p.processUnit(gctx, units[i], opts)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range units {
			res, err := p.processUnit(ctx, units[i], opts)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
	}

	run := &RunResult{
		RunID: uuid.New().String(),
		Data: &domain.LongTable{
			VariableName: opts.Unpivot.variableName(),
			ValueName:    opts.Unpivot.valueName(),
		},
	}

	for _, res := range results {
		if run.Data.IDColumns == nil && res.idColumns != nil {
			run.Data.IDColumns = res.idColumns
		}
		run.Data.Records = append(run.Data.Records, res.records...)
		run.Validation = append(run.Validation, res.validation...)
		run.Stats = append(run.Stats, res.stats...)
		run.Failures = append(run.Failures, res.failures...)
		run.Quality = append(run.Quality, res.quality...)
	}

	if !opts.SkipValidation {
		grandLabel := AllFilesLabel
		if len(units) == 1 {
			grandLabel = units[0].Label
		}
		run.Validation = append(run.Validation, p.validator.GrandTotal(run.Validation, grandLabel))
	}

	p.logger.Info("pipeline run complete",
		slog.String("run_id", run.RunID),
		slog.Int("units", len(units)),
		slog.Int("records", len(run.Data.Records)),
		slog.Int("failures", len(run.Failures)))

	return run, nil
}

// processUnit runs every sheet of one unit. Sheet errors abort the unit
// only under StopOnError; otherwise the sheet is skipped and recorded.
func (p *Pipeline) processUnit(ctx context.Context, unit Unit, opts PipelineOptions) (*unitResult, error) {
	releaseDate := ResolveReleaseDate(unit.Label, opts.Unpivot.ReleaseDate)
	if releaseDate == "" {
		p.logger.Warn("could not extract release date from filename; records will carry none",
			slog.String("unit", unit.Label))
	}

	res := &unitResult{}
	// recordFailure returns err under StopOnError; otherwise it logs,
	// records the failure and returns nil so the loop can continue.
	recordFailure := func(sheet string, err error) error {
		if opts.StopOnError {
			return err
		}
		p.logger.Error("sheet processing failed",
			slog.String("unit", unit.Label),
			slog.String("sheet", sheet),
			slog.String("error", err.Error()))
		res.failures = append(res.failures, SheetFailure{
			Unit:  unit.Label,
			Sheet: sheet,
			Err:   err.Error(),
		})
		return nil
	}

	for _, sheet := range unit.Sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if opts.Template != nil {
			if err := opts.Template.ValidateTable(sheet); err != nil {
				if err := recordFailure(sheet.Sheet, err); err != nil {
					return nil, err
				}
				continue
			}
		}

		sheetOpts := opts.Unpivot
		sheetOpts.ReleaseDate = releaseDate
		// Validation must see NA records; dropping runs afterwards.
		dropNA := sheetOpts.DropNA
		sheetOpts.DropNA = false

		if opts.Quality != nil {
			preResults := opts.Quality.RunPre(&quality.Context{
				Wide:         sheet,
				VariableName: sheetOpts.variableName(),
				ValueName:    sheetOpts.valueName(),
			})
			if len(preResults) > 0 {
				res.quality = append(res.quality, QualityReport{
					Unit: unit.Label, Sheet: sheet.Sheet, Phase: "pre", Results: preResults,
				})
			}
			if err := quality.ErrorsIn(preResults); err != nil {
				if err := recordFailure(sheet.Sheet, err); err != nil {
					return nil, err
				}
				continue
			}
		}

		out, err := p.engine.Unpivot(sheet, sheetOpts)
		if err != nil {
			if err := recordFailure(sheet.Sheet, err); err != nil {
				return nil, err
			}
			continue
		}

		if opts.Quality != nil {
			postResults := opts.Quality.RunPost(&quality.Context{
				Source:       out.FilteredSource,
				Long:         out.Long,
				ValueColumns: out.ValueColumns,
				VariableName: sheetOpts.variableName(),
				ValueName:    sheetOpts.valueName(),
			})
			if len(postResults) > 0 {
				res.quality = append(res.quality, QualityReport{
					Unit: unit.Label, Sheet: sheet.Sheet, Phase: "post", Results: postResults,
				})
			}
			// An error-severity failure excludes the sheet's records.
			if err := quality.ErrorsIn(postResults); err != nil {
				if err := recordFailure(sheet.Sheet, err); err != nil {
					return nil, err
				}
				continue
			}
		}

		if !opts.SkipValidation {
			sheetRecords := p.validator.ValidateSheet(out.FilteredSource, out)
			// Stamp the unit label for traceability back to the source file.
			for i := range sheetRecords {
				sheetRecords[i].SourceFile = unit.Label
			}
			res.validation = append(res.validation, sheetRecords...)
		}
		if dropNA {
			out.DropNA()
		}
		out.Stats.SourceFile = unit.Label

		if res.idColumns == nil {
			res.idColumns = out.Long.IDColumns
		}
		res.records = append(res.records, out.Long.Records...)
		res.stats = append(res.stats, out.Stats)
	}
	return res, nil
}
