package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"depivot/internal/quality"
)

// Config represents the complete application configuration.
// Precedence: the YAML config file over environment variables
// (DEPIVOT_*) over struct defaults.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Output   OutputConfig   `yaml:"output" envconfig:"OUTPUT"`
	SQL      SQLConfig      `yaml:"sql" envconfig:"SQL"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`

	// Rule lists and template shapes are structured configuration, so
	// they come from the YAML file only.
	Quality  quality.Config         `yaml:"quality" ignored:"true"`
	Template quality.TemplateConfig `yaml:"template" ignored:"true"`
}

// PipelineConfig enumerates every transform knob the core recognizes.
type PipelineConfig struct {
	IDColumns       []string `yaml:"id_columns" envconfig:"ID_COLUMNS"`
	ValueColumns    []string `yaml:"value_columns" envconfig:"VALUE_COLUMNS"`
	IncludeColumns  []string `yaml:"include_columns" envconfig:"INCLUDE_COLUMNS"`
	ExcludeColumns  []string `yaml:"exclude_columns" envconfig:"EXCLUDE_COLUMNS"`
	VariableName    string   `yaml:"variable_name" envconfig:"VARIABLE_NAME" default:"variable"`
	ValueName       string   `yaml:"value_name" envconfig:"VALUE_NAME" default:"value"`
	IndexColumnName string   `yaml:"index_column_name" envconfig:"INDEX_COLUMN_NAME" default:"Row"`
	HeaderRow       int      `yaml:"header_row" envconfig:"HEADER_ROW" validate:"min=0"`
	SheetNames      []string `yaml:"sheet_names" envconfig:"SHEET_NAMES"`
	SkipSheets      []string `yaml:"skip_sheets" envconfig:"SKIP_SHEETS"`
	DropNA          bool     `yaml:"drop_na" envconfig:"DROP_NA"`
	ExcludeTotals   bool     `yaml:"exclude_totals" envconfig:"EXCLUDE_TOTALS"`
	SummaryPatterns []string `yaml:"summary_patterns" envconfig:"SUMMARY_PATTERNS"`
	DataTypeOverride string  `yaml:"data_type_override" envconfig:"DATA_TYPE_OVERRIDE" validate:"omitempty,oneof=Actual Budget Forecast"`
	ForecastStart   string   `yaml:"forecast_start" envconfig:"FORECAST_START"`
	ReleaseDate     string   `yaml:"release_date" envconfig:"RELEASE_DATE"`
	StopOnError     bool     `yaml:"stop_on_error" envconfig:"STOP_ON_ERROR"`
	SkipValidation  bool     `yaml:"skip_validation" envconfig:"SKIP_VALIDATION"`
	Concurrency     int      `yaml:"concurrency" envconfig:"CONCURRENCY" default:"1" validate:"min=0,max=64"`
}

// OutputConfig controls how results are written.
type OutputConfig struct {
	CombineSheets       bool   `yaml:"combine_sheets" envconfig:"COMBINE_SHEETS"`
	DataSheetName       string `yaml:"data_sheet_name" envconfig:"DATA_SHEET_NAME" default:"Data"`
	ValidationSheetName string `yaml:"validation_sheet_name" envconfig:"VALIDATION_SHEET_NAME" default:"Validation"`
	Suffix              string `yaml:"suffix" envconfig:"SUFFIX" default:"_unpivoted"`
	Overwrite           bool   `yaml:"overwrite" envconfig:"OVERWRITE"`
}

// SQLConfig configures the optional database upload.
type SQLConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	DSN         string `yaml:"dsn" envconfig:"DSN"`
	Table       string `yaml:"table" envconfig:"TABLE"`
	Mode        string `yaml:"mode" envconfig:"MODE" default:"append" validate:"oneof=append replace"`
	LookupTable string `yaml:"lookup_table" envconfig:"LOOKUP_TABLE" default:"site_names"`
}

// ServerConfig contains HTTP server configuration for serve mode.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"50"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/depivot.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// Load loads configuration from the optional YAML file and environment
// variables. Pass "" to skip the file.
func Load(configFile string) (*Config, error) {
	var cfg Config

	// Environment variables and tag defaults form the base.
	if err := envconfig.Process("DEPIVOT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// File values are unmarshaled on top, so keys present in the file
	// win over the base.
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file not found: %s", configFile)
		}
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to a YAML file, creating parent
// directories as needed.
func (c *Config) Save(filePath string) error {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks struct tags plus the cross-field rules tags cannot
// express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	for _, id := range c.Pipeline.IDColumns {
		for _, val := range c.Pipeline.ValueColumns {
			if id == val {
				return fmt.Errorf("column %q cannot be both identifier and value column", id)
			}
		}
	}

	if c.SQL.Enabled {
		if c.SQL.DSN == "" {
			return fmt.Errorf("sql.dsn is required when sql upload is enabled")
		}
		if c.SQL.Table == "" {
			return fmt.Errorf("sql.table is required when sql upload is enabled")
		}
	}

	return nil
}
