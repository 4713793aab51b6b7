package privacy

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonyguard/pkg/constants"
	"github.com/inferloop/anonyguard/pkg/errors"
	"github.com/inferloop/anonyguard/pkg/models"
)

// NoiseConfig configures the noise injector.
type NoiseConfig struct {
	Source          string  `json:"source" yaml:"source" mapstructure:"source"`
	Seed            int64   `json:"seed" yaml:"seed" mapstructure:"seed"`
	KeepProbability float64 `json:"keep_probability" yaml:"keep_probability" mapstructure:"keep_probability"`
	BudgetEpsilon   float64 `json:"budget_epsilon" yaml:"budget_epsilon" mapstructure:"budget_epsilon"`
}

// EngineConfig holds the defaults applied when a request leaves a setting
// unspecified.
type EngineConfig struct {
	Thresholds         Thresholds  `json:"thresholds" yaml:"thresholds"`
	Weights            Weights     `json:"weights" yaml:"weights"`
	MaxIterations      int         `json:"max_iterations" yaml:"max_iterations"`
	Noise              NoiseConfig `json:"noise" yaml:"noise"`
	MaxViolationsShown int         `json:"max_violations_shown" yaml:"max_violations_shown"`
}

func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Thresholds: DefaultThresholds(),
		Weights:    DefaultWeights(),
		Noise: NoiseConfig{
			Source:          constants.NoiseSourceSeeded,
			KeepProbability: constants.DefaultKeepProbability,
			BudgetEpsilon:   constants.DefaultBudgetEpsilon,
		},
		MaxViolationsShown: constants.DefaultMaxViolationsShown,
	}
}

// Recorder receives the outcome of every engine operation.
type Recorder interface {
	ObserveEvaluation(eval *PrivacyEvaluation, duration time.Duration)
	ObserveEnforcement(result *EnforcementResult, duration time.Duration)
	ObserveNoise(result *NoiseResult)
}

type noopRecorder struct{}

func (noopRecorder) ObserveEvaluation(*PrivacyEvaluation, time.Duration)  {}
func (noopRecorder) ObserveEnforcement(*EnforcementResult, time.Duration) {}
func (noopRecorder) ObserveNoise(*NoiseResult)                            {}

// EvaluateRequest names the columns to assess. Nil thresholds or weights
// fall back to the engine configuration.
type EvaluateRequest struct {
	QuasiIdentifiers    []string    `json:"quasi_identifiers" yaml:"quasi_identifiers"`
	SensitiveAttributes []string    `json:"sensitive_attributes" yaml:"sensitive_attributes"`
	Thresholds          *Thresholds `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Weights             *Weights    `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// EnforceRequest is an EvaluateRequest plus an optional pass cap.
type EnforceRequest struct {
	EvaluateRequest `yaml:",inline"`
	MaxIterations   int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
}

// Engine is the entry point for evaluate, enforce and add_noise. It holds
// no dataset state, so concurrent calls on different datasets are safe.
type Engine struct {
	config    *EngineConfig
	validator *PrivacyValidator
	enforcer  *Enforcer
	injector  *NoiseInjector
	recorder  Recorder
	logger    *logrus.Logger
}

// NewEngine creates a new privacy engine
func NewEngine(config *EngineConfig, logger *logrus.Logger, recorder Recorder) (*Engine, error) {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	if err := config.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if err := config.Weights.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateKeepProbability(config.Noise.KeepProbability); err != nil {
		return nil, err
	}

	source, err := NewNoiseSource(config.Noise.Source, config.Noise.Seed)
	if err != nil {
		return nil, err
	}
	ledger, err := NewBudgetLedger(config.Noise.BudgetEpsilon)
	if err != nil {
		return nil, err
	}

	validator := NewPrivacyValidator(logger)
	return &Engine{
		config:    config,
		validator: validator,
		enforcer:  NewEnforcer(validator, logger),
		injector:  NewNoiseInjector(source, ledger, config.Noise.KeepProbability, logger),
		recorder:  recorder,
		logger:    logger,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *EngineConfig {
	return e.config
}

// Evaluate scores a dataset without modifying it.
func (e *Engine) Evaluate(ctx context.Context, dataset *models.Dataset, req EvaluateRequest) (*PrivacyEvaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	thresholds, weights, err := e.resolve(dataset, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	assessment, err := e.validator.Assess(dataset, req.QuasiIdentifiers, req.SensitiveAttributes, thresholds, weights)
	if err != nil {
		return nil, err
	}
	eval := assessment.Evaluation
	duration := time.Since(start)
	e.recorder.ObserveEvaluation(eval, duration)

	e.logger.WithFields(logrus.Fields{
		"evaluation_id": eval.ID,
		"rows":          eval.Rows,
		"partitions":    eval.Partitions,
		"score":         eval.Score,
		"violations":    len(eval.Violations),
		"duration":      duration,
	}).Info("Evaluated dataset privacy")

	return eval, nil
}

// Enforce filters a dataset until every equivalence class passes.
func (e *Engine) Enforce(ctx context.Context, dataset *models.Dataset, req EnforceRequest) (*EnforcementResult, error) {
	thresholds, weights, err := e.resolve(dataset, req.EvaluateRequest)
	if err != nil {
		return nil, err
	}

	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = e.config.MaxIterations
	}

	start := time.Now()
	result, err := e.enforcer.Enforce(ctx, dataset, req.QuasiIdentifiers, req.SensitiveAttributes, thresholds, EnforceOptions{
		MaxIterations: maxIterations,
		Weights:       weights,
	})
	if err != nil {
		return nil, err
	}
	e.recorder.ObserveEnforcement(result, time.Since(start))

	return result, nil
}

// AddNoise returns a noised copy of the dataset.
func (e *Engine) AddNoise(ctx context.Context, dataset *models.Dataset, req NoiseRequest) (*NoiseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := e.injector.AddNoise(ctx, dataset, req)
	if err != nil {
		return nil, err
	}
	e.recorder.ObserveNoise(result)
	return result, nil
}

// Budget reports the epsilon accounted so far.
func (e *Engine) Budget() BudgetStatus {
	return e.injector.Ledger().Status()
}

func (e *Engine) resolve(dataset *models.Dataset, req EvaluateRequest) (Thresholds, Weights, error) {
	thresholds := e.config.Thresholds
	if req.Thresholds != nil {
		thresholds = *req.Thresholds
	}
	weights := e.config.Weights
	if req.Weights != nil {
		weights = *req.Weights
	}

	if dataset == nil {
		return thresholds, weights, errors.NewParameterError(errors.CodeInvalidInput, "dataset is required")
	}
	if err := ValidateRoles(dataset, req.QuasiIdentifiers, req.SensitiveAttributes); err != nil {
		return thresholds, weights, err
	}
	if err := thresholds.Validate(); err != nil {
		return thresholds, weights, err
	}
	if err := weights.Validate(); err != nil {
		return thresholds, weights, err
	}
	return thresholds, weights, nil
}

// ValidateRoles checks the quasi-identifier and sensitive selections: both
// non-empty, free of duplicates, present in the dataset and disjoint.
func ValidateRoles(dataset *models.Dataset, quasiIdentifiers, sensitive []string) error {
	ve := errors.NewValidationErrors()

	if len(quasiIdentifiers) == 0 {
		ve.Add("quasi_identifiers", errors.CodeInvalidConfiguration, "at least one quasi-identifier is required", nil)
	}
	if len(sensitive) == 0 {
		ve.Add("sensitive_attributes", errors.CodeInvalidConfiguration, "at least one sensitive attribute is required", nil)
	}

	qiSet := make(map[string]struct{}, len(quasiIdentifiers))
	for _, col := range quasiIdentifiers {
		if _, dup := qiSet[col]; dup {
			ve.Add("quasi_identifiers", errors.CodeOverlappingColumns, "duplicate column "+col, col)
		}
		qiSet[col] = struct{}{}
		if !dataset.HasColumn(col) {
			ve.Add("quasi_identifiers", errors.CodeUnknownColumn, "unknown column "+col, col)
		}
	}

	sensSet := make(map[string]struct{}, len(sensitive))
	for _, col := range sensitive {
		if _, dup := sensSet[col]; dup {
			ve.Add("sensitive_attributes", errors.CodeOverlappingColumns, "duplicate column "+col, col)
		}
		sensSet[col] = struct{}{}
		if !dataset.HasColumn(col) {
			ve.Add("sensitive_attributes", errors.CodeUnknownColumn, "unknown column "+col, col)
		}
		if _, both := qiSet[col]; both {
			ve.Add("sensitive_attributes", errors.CodeOverlappingColumns, "column "+col+" is also a quasi-identifier", col)
		}
	}

	return ve.AsConfigurationError()
}
