// Package upload pushes reshaped records into a Postgres actuals
// table. Site names are mapped to project codes through a lookup
// table fetched once per run; records whose site has no mapping are
// reported back to the caller instead of silently dropped.
package upload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "depivot/internal/errors"
	"depivot/pkg/contracts/domain"
)

// Upload modes. Append adds to the existing table, replace truncates
// it first inside the same transaction.
const (
	ModeAppend  = "append"
	ModeReplace = "replace"
)

// Columns of the target actuals table, in insert order.
var tableColumns = []string{
	"l2_proj", "site", "category", "fiscal_year", "period", "actuals", "status",
}

// Row is one insert-ready record.
type Row struct {
	L2Proj     string
	Site       string
	Category   string
	FiscalYear int
	Period     int
	Actuals    float64
	Status     string
}

// TransformResult carries the insertable rows plus what was left out.
type TransformResult struct {
	Rows           []Row
	SkippedMissing int
	SkippedPeriod  int
	UnmappedSites  []string
}

// Transform converts long records to insert-ready rows.
//
// idColumns locates the Site and Category fields inside each record's
// identifier values. Records with a missing value or without a
// resolvable period are counted and skipped; sites absent from
// siteMap are collected so the caller can fail or warn.
func Transform(records []domain.LongRecord, idColumns []string, siteMap map[string]string) (*TransformResult, error) {
	siteIdx, catIdx := -1, -1
	for i, name := range idColumns {
		switch name {
		case "Site":
			siteIdx = i
		case "Category":
			catIdx = i
		}
	}
	if siteIdx < 0 {
		return nil, apperrors.NewSchemaError(
			fmt.Sprintf("upload requires a Site identifier column (have: %v)", idColumns), nil)
	}

	result := &TransformResult{}
	unmapped := make(map[string]bool)

	for _, rec := range records {
		if domain.IsMissing(rec.Value) {
			result.SkippedMissing++
			continue
		}
		if rec.Period == 0 {
			result.SkippedPeriod++
			continue
		}

		site := rec.IDValues[siteIdx].String()
		category := ""
		if catIdx >= 0 {
			category = rec.IDValues[catIdx].String()
		}

		proj, ok := siteMap[site]
		if !ok {
			if !unmapped[site] {
				unmapped[site] = true
				result.UnmappedSites = append(result.UnmappedSites, site)
			}
			continue
		}

		result.Rows = append(result.Rows, Row{
			L2Proj:     proj,
			Site:       site,
			Category:   category,
			FiscalYear: rec.FiscalYear,
			Period:     rec.Period,
			Actuals:    rec.Value,
			Status:     rec.DataType,
		})
	}

	return result, nil
}

// Uploader owns the connection pool for one upload session.
type Uploader struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewUploader connects to the database and verifies the connection.
func NewUploader(ctx context.Context, dsn string, logger *slog.Logger) (*Uploader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to create connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.NewDatabaseError("failed to connect to database", err)
	}

	return &Uploader{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (u *Uploader) Close() {
	u.pool.Close()
}

// FetchSiteMapping loads the site-to-project lookup table.
func (u *Uploader) FetchSiteMapping(ctx context.Context, lookupTable string) (map[string]string, error) {
	query := fmt.Sprintf("SELECT site, l2_proj FROM %s", pgx.Identifier{lookupTable}.Sanitize())

	rows, err := u.pool.Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to query site mapping", err).
			WithContext("table", lookupTable)
	}
	defer rows.Close()

	mapping := make(map[string]string)
	for rows.Next() {
		var site, proj string
		if err := rows.Scan(&site, &proj); err != nil {
			return nil, apperrors.NewDatabaseError("failed to scan site mapping row", err)
		}
		mapping[site] = proj
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("failed to read site mapping", err)
	}

	u.logger.Debug("site mapping loaded",
		slog.String("table", lookupTable),
		slog.Int("entries", len(mapping)))

	return mapping, nil
}

// Upload bulk-inserts rows into table. In replace mode the table is
// truncated first; truncate and insert share one transaction, so a
// failed upload never leaves the table empty.
func (u *Uploader) Upload(ctx context.Context, table, mode string, rows []Row) (int64, error) {
	if mode != ModeAppend && mode != ModeReplace {
		return 0, apperrors.NewConfigError(fmt.Sprintf("unknown upload mode: %q", mode), nil)
	}

	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return 0, apperrors.NewDatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if mode == ModeReplace {
		truncate := fmt.Sprintf("TRUNCATE TABLE %s", pgx.Identifier{table}.Sanitize())
		if _, err := tx.Exec(ctx, truncate); err != nil {
			return 0, apperrors.NewDatabaseError("failed to truncate table", err).
				WithContext("table", table)
		}
	}

	source := make([][]interface{}, len(rows))
	for i, row := range rows {
		source[i] = []interface{}{
			row.L2Proj, row.Site, row.Category,
			row.FiscalYear, row.Period, row.Actuals, row.Status,
		}
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{table}, tableColumns, pgx.CopyFromRows(source))
	if err != nil {
		return 0, apperrors.NewDatabaseError("failed to copy rows", err).
			WithContext("table", table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, apperrors.NewDatabaseError("failed to commit upload", err)
	}

	u.logger.Info("upload complete",
		slog.String("table", table),
		slog.String("mode", mode),
		slog.Int64("rows", copied))

	return copied, nil
}
