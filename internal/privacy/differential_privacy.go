package privacy

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonyguard/pkg/constants"
	"github.com/inferloop/anonyguard/pkg/errors"
	"github.com/inferloop/anonyguard/pkg/models"
)

// NoiseRequest selects the columns to perturb and the privacy parameters.
type NoiseRequest struct {
	CategoricalColumns []string `json:"categorical_columns" yaml:"categorical_columns"`
	NumericColumns     []string `json:"numeric_columns" yaml:"numeric_columns"`
	// OtherColumns are left untouched. When nil they are every column not
	// listed above; when non-nil the three lists must cover the dataset
	// exactly.
	OtherColumns []string `json:"other_columns,omitempty" yaml:"other_columns,omitempty"`
	Epsilon      float64  `json:"epsilon" yaml:"epsilon"`
	// KeepProbability overrides the configured randomized-response p.
	KeepProbability *float64 `json:"keep_probability,omitempty" yaml:"keep_probability,omitempty"`
}

// ColumnNoise describes what was done to one column.
type ColumnNoise struct {
	Mechanism       string  `json:"mechanism" yaml:"mechanism"`
	Sensitivity     float64 `json:"sensitivity,omitempty" yaml:"sensitivity,omitempty"`
	Scale           float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	KeepProbability float64 `json:"keep_probability,omitempty" yaml:"keep_probability,omitempty"`
	Changed         int     `json:"changed" yaml:"changed"`
}

// NoiseResult is the noised copy plus per-column details.
type NoiseResult struct {
	ID          string                 `json:"id" yaml:"id"`
	Dataset     *models.Dataset        `json:"-" yaml:"-"`
	Epsilon     float64                `json:"epsilon" yaml:"epsilon"`
	Source      string                 `json:"source" yaml:"source"`
	Columns     map[string]ColumnNoise `json:"columns" yaml:"columns"`
	Transaction *BudgetTransaction     `json:"transaction,omitempty" yaml:"transaction,omitempty"`
	ProcessedAt time.Time              `json:"processed_at" yaml:"processed_at"`
}

// NoiseInjector applies local differential privacy to selected columns. It
// does not look at equivalence classes and may run before or after
// enforcement.
type NoiseInjector struct {
	source          NoiseSource
	laplace         *LaplaceMechanism
	randomized      *RandomizedResponseMechanism
	ledger          *BudgetLedger
	keepProbability float64
	logger          *logrus.Logger
}

// NewNoiseInjector wires both mechanisms to one source. A nil ledger means
// releases are not accounted.
func NewNoiseInjector(source NoiseSource, ledger *BudgetLedger, keepProbability float64, logger *logrus.Logger) *NoiseInjector {
	if logger == nil {
		logger = logrus.New()
	}
	if source == nil {
		source, _ = NewNoiseSource(constants.NoiseSourceSeeded, 0)
	}
	return &NoiseInjector{
		source:          source,
		laplace:         NewLaplaceMechanism(source),
		randomized:      NewRandomizedResponseMechanism(source),
		ledger:          ledger,
		keepProbability: keepProbability,
		logger:          logger,
	}
}

// Ledger returns the budget ledger, which may be nil.
func (n *NoiseInjector) Ledger() *BudgetLedger {
	return n.ledger
}

// AddNoise returns a new dataset with Laplace noise on the numeric columns
// and randomized response on the categorical ones. Every precondition is
// checked, and budget is charged, before any noise is drawn. A release
// that fails after the charge is refunded.
func (n *NoiseInjector) AddNoise(ctx context.Context, dataset *models.Dataset, req NoiseRequest) (*NoiseResult, error) {
	if dataset == nil {
		return nil, errors.NewParameterError(errors.CodeInvalidInput, "dataset is required")
	}
	if err := ValidateEpsilon(req.Epsilon); err != nil {
		return nil, err
	}

	keep := n.keepProbability
	if req.KeepProbability != nil {
		keep = *req.KeepProbability
	}
	if err := ValidateKeepProbability(keep); err != nil {
		return nil, err
	}

	if _, err := ValidateColumnSelection(dataset.Columns, req.CategoricalColumns, req.NumericColumns, req.OtherColumns); err != nil {
		return nil, err
	}

	for _, col := range req.NumericColumns {
		if _, err := NumericObservations(dataset.ColumnValues(col)); err != nil {
			return nil, withColumn(err, col)
		}
	}

	result := &NoiseResult{
		ID:          uuid.New().String(),
		Epsilon:     req.Epsilon,
		Source:      n.source.Name(),
		Columns:     make(map[string]ColumnNoise),
		ProcessedAt: time.Now(),
	}

	if n.ledger != nil {
		touched := append(append([]string{}, req.NumericColumns...), req.CategoricalColumns...)
		tx, err := n.ledger.Spend(req.Epsilon, "add_noise", touched, dataset.Len())
		if err != nil {
			return nil, err
		}
		result.Transaction = tx
	}

	out, err := n.apply(ctx, dataset, req, keep, result)
	if err != nil {
		if result.Transaction != nil {
			n.ledger.Refund(result.Transaction.ID)
		}
		return nil, err
	}
	result.Dataset = out

	n.logger.WithFields(logrus.Fields{
		"noise_id":    result.ID,
		"epsilon":     req.Epsilon,
		"source":      result.Source,
		"numeric":     req.NumericColumns,
		"categorical": req.CategoricalColumns,
		"rows":        dataset.Len(),
	}).Info("Applied local differential privacy noise")

	return result, nil
}

func (n *NoiseInjector) apply(ctx context.Context, dataset *models.Dataset, req NoiseRequest, keep float64, result *NoiseResult) (*models.Dataset, error) {
	out := dataset.Clone()

	for _, col := range req.NumericColumns {
		noisy, info, err := n.laplace.AddNoiseToColumn(ctx, dataset.ColumnValues(col), req.Epsilon)
		if err != nil {
			return nil, withColumn(err, col)
		}
		setColumn(out, col, noisy)
		result.Columns[col] = info
	}

	for _, col := range req.CategoricalColumns {
		noisy, info, err := n.randomized.Respond(ctx, dataset.ColumnValues(col), keep)
		if err != nil {
			return nil, err
		}
		setColumn(out, col, noisy)
		result.Columns[col] = info
	}

	return out, nil
}

func withColumn(err error, col string) error {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr.WithContext("column", col)
	}
	return err
}

func setColumn(ds *models.Dataset, col string, values []interface{}) {
	for i := range ds.Rows {
		ds.Rows[i][col] = values[i]
	}
}

// ValidateEpsilon requires a finite, strictly positive epsilon.
func ValidateEpsilon(epsilon float64) error {
	if math.IsNaN(epsilon) || math.IsInf(epsilon, 0) || epsilon <= 0 {
		return errors.NewParameterError(errors.CodeInvalidParameter,
			"epsilon must be a finite positive number").WithContext("epsilon", epsilon)
	}
	return nil
}

// ValidateKeepProbability requires p in [0, 1].
func ValidateKeepProbability(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return errors.NewParameterError(errors.CodeInvalidParameter,
			"keep probability must be within [0, 1]").WithContext("keep_probability", p)
	}
	return nil
}

// ValidateColumnSelection checks that the categorical, numeric and other
// lists reference known columns, do not overlap and, when other is given,
// cover every column. It returns the resolved other columns.
func ValidateColumnSelection(columns, categorical, numeric, other []string) ([]string, error) {
	known := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		known[col] = struct{}{}
	}

	assigned := make(map[string]string, len(columns))
	for _, group := range []struct {
		name string
		cols []string
	}{
		{"categorical", categorical},
		{"numeric", numeric},
		{"other", other},
	} {
		for _, col := range group.cols {
			if _, ok := known[col]; !ok {
				return nil, errors.NewConfigurationError(errors.CodeUnknownColumn,
					"selected column is not a dataset column").
					WithContext("column", col).
					WithContext("selection", group.name)
			}
			if prev, dup := assigned[col]; dup {
				return nil, errors.NewConfigurationError(errors.CodeOverlappingColumns,
					"column is selected more than once").
					WithContext("column", col).
					WithContext("selections", prev+","+group.name)
			}
			assigned[col] = group.name
		}
	}

	var missing []string
	for _, col := range columns {
		if _, ok := assigned[col]; !ok {
			missing = append(missing, col)
		}
	}

	if other == nil {
		return missing, nil
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.NewConfigurationError(errors.CodeColumnCoverage,
			"categorical, numeric and other columns must cover every dataset column").
			WithContext("missing", strings.Join(missing, ","))
	}
	return other, nil
}
