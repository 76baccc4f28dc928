package quality

import (
	"fmt"
	"log/slog"
	"strings"

	"depivot/internal/errors"
	"depivot/pkg/contracts/domain"
)

// Severity grades a rule outcome.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Result is the outcome of one rule execution.
type Result struct {
	Rule     string                 `json:"rule"`
	Severity Severity               `json:"severity"`
	Passed   bool                   `json:"passed"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Context carries the data a rule inspects. Pre-processing rules read
// Wide; post-processing rules read Source, Long and ValueColumns.
type Context struct {
	Wide *domain.WideTable

	Source       *domain.WideTable
	Long         *domain.LongTable
	ValueColumns []string

	VariableName string
	ValueName    string
}

// Rule is one executable quality check.
type Rule interface {
	Name() string
	Validate(ctx *Context) Result
}

// Range bounds a numeric column. Nil means unbounded on that side.
type Range struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

// RuleConfig configures one rule instance. Rule selects the check by
// name; the remaining fields are per-rule parameters and each rule
// reads only the ones it understands.
type RuleConfig struct {
	Rule     string   `yaml:"rule"`
	Enabled  *bool    `yaml:"enabled"`
	Severity Severity `yaml:"severity"`

	Columns        []string          `yaml:"columns"`
	KeyColumns     []string          `yaml:"key_columns"`
	Threshold      float64           `yaml:"threshold"`
	AllowAllBlank  bool              `yaml:"allow_all_blank"`
	Types          map[string]string `yaml:"types"`
	Ranges         map[string]Range  `yaml:"ranges"`
	MinRatio       float64           `yaml:"min_ratio"`
	MaxRatio       float64           `yaml:"max_ratio"`
	MaxNullRatio   float64           `yaml:"max_null_ratio"`
	Method         string            `yaml:"method"`
	Dimensions     []string          `yaml:"dimensions"`
	ExpectedValues []string          `yaml:"expected_values"`
	Tolerance      float64           `yaml:"tolerance"`
}

func (c RuleConfig) enabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c RuleConfig) severity() Severity {
	switch c.Severity {
	case SeverityError, SeverityWarning, SeverityInfo:
		return c.Severity
	default:
		return SeverityWarning
	}
}

// Config configures the rule engine.
type Config struct {
	Enabled     bool         `yaml:"enabled"`
	StopOnError *bool        `yaml:"stop_on_error"`
	Pre         []RuleConfig `yaml:"pre"`
	Post        []RuleConfig `yaml:"post"`
}

// Engine executes configured rules in sequence and collects results.
type Engine struct {
	pre         []Rule
	post        []Rule
	stopOnError bool
	logger      *slog.Logger
}

// NewEngine builds an engine from configuration. Unknown rule names
// are logged and skipped rather than failing the run. A disabled or
// empty configuration yields nil, which callers treat as a no-op.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		stopOnError: cfg.StopOnError == nil || *cfg.StopOnError,
		logger:      logger,
	}
	e.pre = loadRules(cfg.Pre, logger)
	e.post = loadRules(cfg.Post, logger)
	if len(e.pre) == 0 && len(e.post) == 0 {
		return nil
	}
	return e
}

func loadRules(configs []RuleConfig, logger *slog.Logger) []Rule {
	var rules []Rule
	for _, rc := range configs {
		if !rc.enabled() {
			continue
		}
		factory, ok := ruleRegistry[rc.Rule]
		if !ok {
			logger.Warn("unknown quality rule skipped", slog.String("rule", rc.Rule))
			continue
		}
		rules = append(rules, factory(rc))
	}
	return rules
}

// RunPre executes the pre-processing rules against ctx.Wide.
func (e *Engine) RunPre(ctx *Context) []Result {
	return e.run(e.pre, ctx)
}

// RunPost executes the post-processing rules against the long output.
func (e *Engine) RunPost(ctx *Context) []Result {
	return e.run(e.post, ctx)
}

func (e *Engine) run(rules []Rule, ctx *Context) []Result {
	results := make([]Result, 0, len(rules))
	for _, rule := range rules {
		res := rule.Validate(ctx)
		results = append(results, res)
		if !res.Passed && res.Severity == SeverityError && e.stopOnError {
			break
		}
	}
	return results
}

// ErrorsIn returns a QUALITY error summarizing every error-severity
// failure in results, or nil when none failed at that level.
func ErrorsIn(results []Result) error {
	var failed []string
	for _, res := range results {
		if !res.Passed && res.Severity == SeverityError {
			failed = append(failed, fmt.Sprintf("%s: %s", res.Rule, res.Message))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.NewQualityError(
		fmt.Sprintf("data quality failed with %d error(s): %s",
			len(failed), strings.Join(failed, "; ")),
		nil)
}
