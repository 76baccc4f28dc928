package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "variable", cfg.Pipeline.VariableName)
	assert.Equal(t, "value", cfg.Pipeline.ValueName)
	assert.Equal(t, "Row", cfg.Pipeline.IndexColumnName)
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
	assert.Equal(t, "Data", cfg.Output.DataSheetName)
	assert.Equal(t, "Validation", cfg.Output.ValidationSheetName)
	assert.Equal(t, "_unpivoted", cfg.Output.Suffix)
	assert.Equal(t, "append", cfg.SQL.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DEPIVOT_PIPELINE_ID_COLUMNS", "Site,Category")
	t.Setenv("DEPIVOT_PIPELINE_DROP_NA", "true")
	t.Setenv("DEPIVOT_PIPELINE_CONCURRENCY", "8")
	t.Setenv("DEPIVOT_OUTPUT_SUFFIX", "_long")
	t.Setenv("DEPIVOT_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"Site", "Category"}, cfg.Pipeline.IDColumns)
	assert.True(t, cfg.Pipeline.DropNA)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, "_long", cfg.Output.Suffix)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_FromFile(t *testing.T) {
	content := `
pipeline:
  id_columns:
    - Site
    - Category
  exclude_totals: true
  summary_patterns:
    - total
    - summary
sql:
  enabled: true
  dsn: postgres://localhost/depivot
  table: actuals
  mode: replace
`
	path := filepath.Join(t.TempDir(), "depivot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Site", "Category"}, cfg.Pipeline.IDColumns)
	assert.True(t, cfg.Pipeline.ExcludeTotals)
	assert.Equal(t, []string{"total", "summary"}, cfg.Pipeline.SummaryPatterns)
	assert.True(t, cfg.SQL.Enabled)
	assert.Equal(t, "replace", cfg.SQL.Mode)
}

func TestLoad_QualitySections(t *testing.T) {
	content := `
quality:
  enabled: true
  stop_on_error: false
  pre:
    - rule: check_required_columns
      severity: error
      columns:
        - Site
  post:
    - rule: check_totals_match
      tolerance: 0.5
template:
  enabled: true
  required_sheets:
    - Actuals
  min_sheets: 1
  required_columns:
    - Site
`
	path := filepath.Join(t.TempDir(), "depivot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Quality.Enabled)
	require.NotNil(t, cfg.Quality.StopOnError)
	assert.False(t, *cfg.Quality.StopOnError)
	require.Len(t, cfg.Quality.Pre, 1)
	assert.Equal(t, "check_required_columns", cfg.Quality.Pre[0].Rule)
	assert.Equal(t, []string{"Site"}, cfg.Quality.Pre[0].Columns)
	require.Len(t, cfg.Quality.Post, 1)
	assert.Equal(t, 0.5, cfg.Quality.Post[0].Tolerance)

	assert.True(t, cfg.Template.Enabled)
	assert.Equal(t, []string{"Actuals"}, cfg.Template.RequiredSheets)
	assert.Equal(t, 1, cfg.Template.MinSheets)
	assert.Equal(t, []string{"Site"}, cfg.Template.RequiredColumns)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "invalid sql mode",
			mutate:  func(c *Config) { c.SQL.Mode = "upsert" },
			wantErr: "oneof",
		},
		{
			name:    "invalid data type override",
			mutate:  func(c *Config) { c.Pipeline.DataTypeOverride = "Estimate" },
			wantErr: "oneof",
		},
		{
			name: "identifier and value overlap",
			mutate: func(c *Config) {
				c.Pipeline.IDColumns = []string{"Site"}
				c.Pipeline.ValueColumns = []string{"Site", "Jan"}
			},
			wantErr: "cannot be both",
		},
		{
			name: "sql enabled without dsn",
			mutate: func(c *Config) {
				c.SQL.Enabled = true
				c.SQL.Table = "actuals"
			},
			wantErr: "dsn is required",
		},
		{
			name: "sql enabled without table",
			mutate: func(c *Config) {
				c.SQL.Enabled = true
				c.SQL.DSN = "postgres://localhost/depivot"
			},
			wantErr: "table is required",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: "oneof",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Pipeline.Concurrency = -1 },
			wantErr: "min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Pipeline.IDColumns = []string{"Site"}
	cfg.Pipeline.ExcludeTotals = true

	path := filepath.Join(t.TempDir(), "nested", "depivot.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Pipeline.IDColumns, loaded.Pipeline.IDColumns)
	assert.True(t, loaded.Pipeline.ExcludeTotals)
}
