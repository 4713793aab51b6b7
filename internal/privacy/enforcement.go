package privacy

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonyguard/pkg/errors"
	"github.com/inferloop/anonyguard/pkg/models"
)

// EnforcementStatus is the terminal state of an enforcement run.
type EnforcementStatus string

const (
	// StatusConverged means a non-empty dataset with no violations remains.
	StatusConverged EnforcementStatus = "converged"
	// StatusExhausted means every row of a non-empty input was removed.
	StatusExhausted EnforcementStatus = "exhausted"
	// StatusEmptyInput means there was nothing to enforce.
	StatusEmptyInput EnforcementStatus = "empty_input"
	// StatusIterationLimit means the pass cap was hit before a fixed point.
	StatusIterationLimit EnforcementStatus = "iteration_limit"
)

// EnforceOptions tunes a single enforcement run.
type EnforceOptions struct {
	// MaxIterations caps evaluation passes. Zero means rows+1, which can
	// only be reached if a pass fails to remove anything.
	MaxIterations int
	Weights       Weights
}

// EnforcementResult is the filtered dataset plus a summary of the run.
type EnforcementResult struct {
	Dataset       *models.Dataset    `json:"-" yaml:"-"`
	Status        EnforcementStatus  `json:"status" yaml:"status"`
	Iterations    int                `json:"iterations" yaml:"iterations"`
	RowsRemoved   int                `json:"rows_removed" yaml:"rows_removed"`
	RemovedGroups []string           `json:"removed_groups" yaml:"removed_groups"`
	Final         *PrivacyEvaluation `json:"final" yaml:"final"`
}

// Exhausted reports whether enforcement emptied a non-empty dataset.
func (r *EnforcementResult) Exhausted() bool {
	return r.Status == StatusExhausted
}

// Enforcer drops rows of violating equivalence classes until none remain.
type Enforcer struct {
	validator *PrivacyValidator
	logger    *logrus.Logger
}

func NewEnforcer(validator *PrivacyValidator, logger *logrus.Logger) *Enforcer {
	if logger == nil {
		logger = logrus.New()
	}
	if validator == nil {
		validator = NewPrivacyValidator(logger)
	}
	return &Enforcer{validator: validator, logger: logger}
}

// Enforce re-partitions and re-evaluates the current dataset on each pass
// and removes every row of every violating class. The input is never
// modified; the returned dataset is always a fresh copy.
func (e *Enforcer) Enforce(ctx context.Context, dataset *models.Dataset, quasiIdentifiers, sensitive []string, thresholds Thresholds, opts EnforceOptions) (*EnforcementResult, error) {
	if dataset == nil {
		return nil, errors.NewParameterError(errors.CodeInvalidInput, "dataset is required")
	}

	initialRows := dataset.Len()
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = initialRows + 1
	}

	result := &EnforcementResult{
		RemovedGroups: make([]string, 0),
	}
	current := dataset.Clone()

	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
				"enforcement cancelled").WithContext("iterations", result.Iterations)
		}

		assessment, err := e.validator.Assess(current, quasiIdentifiers, sensitive, thresholds, opts.Weights)
		if err != nil {
			return nil, err
		}
		result.Final = assessment.Evaluation

		violating := assessment.Evaluation.ViolatingGroups()
		if len(violating) == 0 {
			result.Status = terminalStatus(initialRows, current.Len())
			break
		}

		if result.Iterations >= maxIterations {
			result.Status = StatusIterationLimit
			e.logger.WithFields(logrus.Fields{
				"max_iterations": maxIterations,
				"rows":           current.Len(),
				"violations":     len(assessment.Evaluation.Violations),
			}).Warn("Enforcement stopped at iteration limit")
			break
		}
		result.Iterations++

		keep := make([]int, 0, current.Len())
		for _, class := range assessment.Classes {
			if _, bad := violating[class.Key.Identity()]; bad {
				result.RemovedGroups = append(result.RemovedGroups, class.Key.String())
				continue
			}
			keep = append(keep, class.Rows...)
		}
		sort.Ints(keep)

		e.logger.WithFields(logrus.Fields{
			"iteration":      result.Iterations,
			"groups_removed": len(violating),
			"rows_before":    current.Len(),
			"rows_after":     len(keep),
		}).Debug("Enforcement pass")

		current = current.Select(keep)
	}

	result.Dataset = current
	result.RowsRemoved = initialRows - current.Len()

	entry := e.logger.WithFields(logrus.Fields{
		"status":       result.Status,
		"iterations":   result.Iterations,
		"rows_removed": result.RowsRemoved,
		"rows_left":    current.Len(),
	})
	if result.Status == StatusExhausted {
		entry.Warn("Enforcement removed every row")
	} else {
		entry.Info("Enforcement finished")
	}

	return result, nil
}

func terminalStatus(initialRows, remaining int) EnforcementStatus {
	switch {
	case initialRows == 0:
		return StatusEmptyInput
	case remaining == 0:
		return StatusExhausted
	default:
		return StatusConverged
	}
}
