package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"depivot/internal/dataprocessing"
	apperrors "depivot/internal/errors"
	"depivot/internal/quality"
	"depivot/pkg/contracts/domain"
)

// UnpivotRequest is the POST /api/v1/unpivot payload.
type UnpivotRequest struct {
	Units   []UnitPayload  `json:"units" validate:"required,min=1,dive"`
	Options OptionsPayload `json:"options"`
}

// UnitPayload is one source file's worth of sheets.
type UnitPayload struct {
	Label  string         `json:"label" validate:"required"`
	Sheets []SheetPayload `json:"sheets" validate:"required,min=1,dive"`
}

// SheetPayload is one wide table in column-oriented form.
type SheetPayload struct {
	Name    string          `json:"name" validate:"required"`
	Columns []ColumnPayload `json:"columns" validate:"required,min=1,dive"`
}

// ColumnPayload is a named column of cells.
type ColumnPayload struct {
	Name  string        `json:"name" validate:"required"`
	Cells []domain.Cell `json:"cells"`
}

// OptionsPayload mirrors the pipeline options clients may set.
type OptionsPayload struct {
	IDColumns        []string `json:"id_columns"`
	ValueColumns     []string `json:"value_columns"`
	IncludeColumns   []string `json:"include_columns"`
	ExcludeColumns   []string `json:"exclude_columns"`
	VariableName     string   `json:"variable_name"`
	ValueName        string   `json:"value_name"`
	IndexColumnName  string   `json:"index_column_name"`
	ExcludeTotals    bool     `json:"exclude_totals"`
	SummaryPatterns  []string `json:"summary_patterns"`
	DropNA           bool     `json:"drop_na"`
	DataTypeOverride string   `json:"data_type_override" validate:"omitempty,oneof=Actual Budget Forecast"`
	ForecastStart    string   `json:"forecast_start"`
	ReleaseDate      string   `json:"release_date"`
	SkipValidation   bool     `json:"skip_validation"`
	StopOnError      bool     `json:"stop_on_error"`
	Concurrency      int      `json:"concurrency" validate:"min=0,max=64"`
}

// UnpivotResponse is the success payload.
type UnpivotResponse struct {
	RunID      string                         `json:"run_id"`
	Data       *domain.LongTable              `json:"data"`
	Validation []domain.ValidationRecord      `json:"validation,omitempty"`
	Stats      []domain.SheetStats            `json:"stats"`
	Failures   []dataprocessing.SheetFailure  `json:"failures,omitempty"`
	Quality    []dataprocessing.QualityReport `json:"quality,omitempty"`
}

// UnpivotHandler handles reshape requests.
type UnpivotHandler struct {
	pipeline *dataprocessing.Pipeline
	metrics  *Metrics
	validate *validator.Validate
	quality  *quality.Engine
	logger   *slog.Logger
}

// NewUnpivotHandler creates a new unpivot handler.
func NewUnpivotHandler(pipeline *dataprocessing.Pipeline, metrics *Metrics, logger *slog.Logger) *UnpivotHandler {
	return &UnpivotHandler{
		pipeline: pipeline,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger.With(slog.String("handler", "unpivot")),
	}
}

// Unpivot handles POST /api/v1/unpivot.
func (h *UnpivotHandler) Unpivot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req UnpivotRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.renderError(w, r, apperrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.renderError(w, r, apperrors.NewWithDetails(
			http.StatusBadRequest, "VALIDATION_FAILED", "request validation failed", err.Error()))
		return
	}

	units := make([]dataprocessing.Unit, len(req.Units))
	for i, unit := range req.Units {
		sheets := make([]*domain.WideTable, len(unit.Sheets))
		for j, sheet := range unit.Sheets {
			table := &domain.WideTable{
				SourceFile: unit.Label,
				Sheet:      sheet.Name,
				Columns:    make([]domain.Column, len(sheet.Columns)),
			}
			for k, col := range sheet.Columns {
				table.Columns[k] = domain.Column{Name: col.Name, Cells: col.Cells}
			}
			sheets[j] = table
		}
		units[i] = dataprocessing.Unit{Label: unit.Label, Sheets: sheets}
	}

	run, err := h.pipeline.Process(ctx, units, dataprocessing.PipelineOptions{
		Unpivot: dataprocessing.UnpivotOptions{
			IDColumns:        req.Options.IDColumns,
			ValueColumns:     req.Options.ValueColumns,
			IncludeColumns:   req.Options.IncludeColumns,
			ExcludeColumns:   req.Options.ExcludeColumns,
			VariableName:     req.Options.VariableName,
			ValueName:        req.Options.ValueName,
			IndexColumnName:  req.Options.IndexColumnName,
			ExcludeTotals:    req.Options.ExcludeTotals,
			SummaryPatterns:  req.Options.SummaryPatterns,
			DropNA:           req.Options.DropNA,
			DataTypeOverride: req.Options.DataTypeOverride,
			ForecastStart:    req.Options.ForecastStart,
			ReleaseDate:      req.Options.ReleaseDate,
		},
		SkipValidation: req.Options.SkipValidation,
		StopOnError:    req.Options.StopOnError,
		Concurrency:    req.Options.Concurrency,
		Quality:        h.quality,
	})
	if err != nil {
		h.metrics.SheetsFailed.Inc()
		h.logger.ErrorContext(ctx, "unpivot run failed",
			slog.String("error", err.Error()))
		h.renderError(w, r, apperrors.FromAppError(err))
		return
	}

	h.metrics.SheetsProcessed.Add(float64(len(run.Stats)))
	h.metrics.SheetsFailed.Add(float64(len(run.Failures)))
	h.metrics.RecordsEmitted.Add(float64(len(run.Data.Records)))
	for _, rec := range run.Validation {
		if rec.Match == domain.MatchMismatch {
			h.metrics.TotalMismatches.Inc()
		}
	}
	h.metrics.UnpivotDuration.Observe(time.Since(start).Seconds())
	h.metrics.RequestsTotal.WithLabelValues("unpivot", "2xx").Inc()

	h.logger.InfoContext(ctx, "unpivot run complete",
		slog.String("run_id", run.RunID),
		slog.Int("units", len(units)),
		slog.Int("records", len(run.Data.Records)),
		slog.Int("failures", len(run.Failures)))

	render.JSON(w, r, UnpivotResponse{
		RunID:      run.RunID,
		Data:       run.Data,
		Validation: run.Validation,
		Stats:      run.Stats,
		Failures:   run.Failures,
		Quality:    run.Quality,
	})
}

func (h *UnpivotHandler) renderError(w http.ResponseWriter, r *http.Request, apiErr *apperrors.APIError) {
	h.metrics.RequestsTotal.WithLabelValues("unpivot", statusClass(apiErr.StatusCode)).Inc()
	render.Status(r, apiErr.StatusCode)
	render.JSON(w, r, apperrors.NewErrorResponse(apiErr))
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
