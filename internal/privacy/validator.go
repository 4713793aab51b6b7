package privacy

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/anonyguard/pkg/constants"
	"github.com/inferloop/anonyguard/pkg/errors"
	"github.com/inferloop/anonyguard/pkg/models"
)

// Thresholds decide when an equivalence class violates a metric.
type Thresholds struct {
	K int     `json:"k" yaml:"k" mapstructure:"k_threshold"`
	L float64 `json:"l" yaml:"l" mapstructure:"l_threshold"`
	T float64 `json:"t" yaml:"t" mapstructure:"t_threshold"`
}

// DefaultThresholds flags unique rows, zero diversity and t above 0.5.
func DefaultThresholds() Thresholds {
	return Thresholds{
		K: constants.DefaultKThreshold,
		L: constants.DefaultLThreshold,
		T: constants.DefaultTThreshold,
	}
}

func (t Thresholds) Validate() error {
	ve := errors.NewValidationErrors()
	if t.K < 1 {
		ve.Add("k_threshold", errors.CodeInvalidParameter, "must be at least 1", t.K)
	}
	if math.IsNaN(t.L) || t.L < 0 || t.L > 1 {
		ve.Add("l_threshold", errors.CodeInvalidParameter, "must be within [0, 1]", t.L)
	}
	if math.IsNaN(t.T) || t.T < 0 || t.T > 1 {
		ve.Add("t_threshold", errors.CodeInvalidParameter, "must be within [0, 1]", t.T)
	}
	if ve.HasErrors() {
		return errors.NewParameterError(errors.CodeInvalidParameter, ve.Error())
	}
	return nil
}

// Weights combine the three metrics into the composite score.
type Weights struct {
	K float64 `json:"k" yaml:"k" mapstructure:"k"`
	L float64 `json:"l" yaml:"l" mapstructure:"l"`
	T float64 `json:"t" yaml:"t" mapstructure:"t"`
}

func DefaultWeights() Weights {
	return Weights{
		K: constants.DefaultWeightK,
		L: constants.DefaultWeightL,
		T: constants.DefaultWeightT,
	}
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{"w_k": w.K, "w_l": w.L, "w_t": w.T} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return errors.NewParameterError(errors.CodeInvalidParameter,
				"score weights must be finite and non-negative").WithContext(name, v)
		}
	}
	return nil
}

// Metric names the privacy model a violation belongs to.
type Metric string

const (
	MetricKAnonymity Metric = "k-anonymity"
	MetricLDiversity Metric = "l-diversity"
	MetricTCloseness Metric = "t-closeness"
)

// Violation is one offending (class, reason) pair.
type Violation struct {
	GroupKey  string `json:"group_key" yaml:"group_key"`
	GroupID   string `json:"group_id" yaml:"group_id"`
	Reason    string `json:"reason" yaml:"reason"`
	Metric    Metric `json:"metric" yaml:"metric"`
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
}

// PrivacyEvaluation is the report of one evaluation. It is built once and
// never modified afterwards.
type PrivacyEvaluation struct {
	ID          string      `json:"id" yaml:"id"`
	Score       float64     `json:"score" yaml:"score"`
	Violations  []Violation `json:"violations" yaml:"violations"`
	Reasons     []string    `json:"reasons" yaml:"reasons"`
	MinK        int         `json:"min_k" yaml:"min_k"`
	MinL        float64     `json:"min_l" yaml:"min_l"`
	MaxT        float64     `json:"max_t" yaml:"max_t"`
	Partitions  int         `json:"partitions" yaml:"partitions"`
	Rows        int         `json:"rows" yaml:"rows"`
	Thresholds  Thresholds  `json:"thresholds" yaml:"thresholds"`
	Weights     Weights     `json:"weights" yaml:"weights"`
	EvaluatedAt time.Time   `json:"evaluated_at" yaml:"evaluated_at"`
}

// HasViolations reports whether any class failed a check.
func (e *PrivacyEvaluation) HasViolations() bool {
	return len(e.Violations) > 0
}

// TopViolations returns at most n violations for display.
func (e *PrivacyEvaluation) TopViolations(n int) []Violation {
	if n < 0 || n >= len(e.Violations) {
		return e.Violations
	}
	return e.Violations[:n]
}

// ViolatingGroups returns the identities of every class with at least one
// violation.
func (e *PrivacyEvaluation) ViolatingGroups() map[string]string {
	groups := make(map[string]string)
	for _, v := range e.Violations {
		groups[v.GroupID] = v.GroupKey
	}
	return groups
}

// Assessment bundles the intermediate tables of one evaluation pass.
type Assessment struct {
	Classes    []*EquivalenceClass
	K          KTable
	L          *AttributeTable
	T          *AttributeTable
	Evaluation *PrivacyEvaluation
}

// PrivacyValidator runs the partitioner and the three evaluators and scores
// the result.
type PrivacyValidator struct {
	partitioner *Partitioner
	kAnonymity  *KAnonymityEvaluator
	lDiversity  *LDiversityEvaluator
	tCloseness  *TClosenessEvaluator
	logger      *logrus.Logger
}

func NewPrivacyValidator(logger *logrus.Logger) *PrivacyValidator {
	if logger == nil {
		logger = logrus.New()
	}
	return &PrivacyValidator{
		partitioner: NewPartitioner(logger),
		kAnonymity:  NewKAnonymityEvaluator(logger),
		lDiversity:  NewLDiversityEvaluator(logger),
		tCloseness:  NewTClosenessEvaluator(logger),
		logger:      logger,
	}
}

// Assess partitions the dataset, evaluates all metrics and validates them.
func (v *PrivacyValidator) Assess(dataset *models.Dataset, quasiIdentifiers, sensitive []string, thresholds Thresholds, weights Weights) (*Assessment, error) {
	classes, err := v.partitioner.Partition(dataset, quasiIdentifiers)
	if err != nil {
		return nil, err
	}

	kTable := v.kAnonymity.Evaluate(classes)

	lTable, err := v.lDiversity.Evaluate(dataset, classes, sensitive)
	if err != nil {
		return nil, err
	}

	tTable, err := v.tCloseness.Evaluate(dataset, classes, sensitive)
	if err != nil {
		return nil, err
	}

	eval := v.Validate(classes, kTable, lTable, tTable, thresholds, weights)
	eval.Rows = dataset.Len()

	return &Assessment{
		Classes:    classes,
		K:          kTable,
		L:          lTable,
		T:          tTable,
		Evaluation: eval,
	}, nil
}

// Validate runs the three checks independently, collects every violation
// and computes the composite score. Any violation forces the score to 0.
func (v *PrivacyValidator) Validate(classes []*EquivalenceClass, kTable KTable, lTable, tTable *AttributeTable, thresholds Thresholds, weights Weights) *PrivacyEvaluation {
	eval := &PrivacyEvaluation{
		ID:          uuid.New().String(),
		Violations:  make([]Violation, 0),
		Reasons:     make([]string, 0),
		Partitions:  len(classes),
		Thresholds:  thresholds,
		Weights:     weights,
		EvaluatedAt: time.Now(),
	}

	eval.Violations = append(eval.Violations, checkKAnonymity(classes, kTable, thresholds.K)...)
	eval.Violations = append(eval.Violations, checkLDiversity(classes, lTable, thresholds.L)...)
	eval.Violations = append(eval.Violations, checkTCloseness(classes, tTable, thresholds.T)...)

	seen := make(map[string]struct{})
	for _, viol := range eval.Violations {
		if _, ok := seen[viol.Reason]; ok {
			continue
		}
		seen[viol.Reason] = struct{}{}
		eval.Reasons = append(eval.Reasons, viol.Reason)
	}

	eval.MinK = kTable.Min()
	eval.MinL, _ = tableExtremes(classes, lTable)
	_, eval.MaxT = tableExtremes(classes, tTable)

	switch {
	case len(classes) == 0:
		eval.Score = 0
	case eval.HasViolations():
		eval.Score = 0
	default:
		eval.Score = compositeScore(classes, eval.MinK, lTable, tTable, weights)
	}

	v.logger.WithFields(logrus.Fields{
		"evaluation_id": eval.ID,
		"partitions":    eval.Partitions,
		"violations":    len(eval.Violations),
		"score":         eval.Score,
		"min_k":         eval.MinK,
		"min_l":         eval.MinL,
		"max_t":         eval.MaxT,
	}).Debug("Validated privacy metrics")

	return eval
}

func checkKAnonymity(classes []*EquivalenceClass, kTable KTable, threshold int) []Violation {
	var violations []Violation
	for _, class := range classes {
		k := kTable[class.Key.Identity()]
		if k > threshold {
			continue
		}
		reason := fmt.Sprintf("k-anonymity is at most %d", threshold)
		if k == 1 {
			reason = "k-anonymity is 1"
		}
		violations = append(violations, Violation{
			GroupKey: class.Key.String(),
			GroupID:  class.Key.Identity(),
			Reason:   reason,
			Metric:   MetricKAnonymity,
		})
	}
	return violations
}

func checkLDiversity(classes []*EquivalenceClass, lTable *AttributeTable, threshold float64) []Violation {
	var violations []Violation
	for _, attr := range lTable.Attributes {
		for _, class := range classes {
			l, ok := lTable.Get(class.Key.Identity(), attr)
			if !ok || l > threshold {
				continue
			}
			reason := fmt.Sprintf("normalized entropy l-value is at most %s for %s", formatFloat(threshold), attr)
			if l == 0 {
				reason = fmt.Sprintf("normalized entropy l-value is 0 for %s", attr)
			}
			violations = append(violations, Violation{
				GroupKey:  class.Key.String(),
				GroupID:   class.Key.Identity(),
				Reason:    reason,
				Metric:    MetricLDiversity,
				Attribute: attr,
			})
		}
	}
	return violations
}

func checkTCloseness(classes []*EquivalenceClass, tTable *AttributeTable, threshold float64) []Violation {
	var violations []Violation
	for _, attr := range tTable.Attributes {
		for _, class := range classes {
			t, ok := tTable.Get(class.Key.Identity(), attr)
			if !ok || t <= threshold {
				continue
			}
			violations = append(violations, Violation{
				GroupKey:  class.Key.String(),
				GroupID:   class.Key.Identity(),
				Reason:    fmt.Sprintf("t-value exceeds %s for %s", formatFloat(threshold), attr),
				Metric:    MetricTCloseness,
				Attribute: attr,
			})
		}
	}
	return violations
}

// compositeScore is w_k·(1−1/k_min) + w_l·mean(l) + w_t·(1−mean(t')), where
// t' is min-max rescaled per attribute across classes.
func compositeScore(classes []*EquivalenceClass, minK int, lTable, tTable *AttributeTable, weights Weights) float64 {
	kTerm := 0.0
	if minK > 0 {
		kTerm = 1 - 1/float64(minK)
	}

	lMeans := make([]float64, 0, len(lTable.Attributes))
	for _, attr := range lTable.Attributes {
		lMeans = append(lMeans, stat.Mean(attributeColumn(classes, lTable, attr), nil))
	}

	tMeans := make([]float64, 0, len(tTable.Attributes))
	for _, attr := range tTable.Attributes {
		tMeans = append(tMeans, stat.Mean(minMaxNormalize(attributeColumn(classes, tTable, attr)), nil))
	}

	lTerm := 0.0
	if len(lMeans) > 0 {
		lTerm = stat.Mean(lMeans, nil)
	}
	tTerm := 0.0
	if len(tMeans) > 0 {
		tTerm = stat.Mean(tMeans, nil)
	}

	return weights.K*kTerm + weights.L*lTerm + weights.T*(1-tTerm)
}

func attributeColumn(classes []*EquivalenceClass, table *AttributeTable, attr string) []float64 {
	values := make([]float64, 0, len(classes))
	for _, class := range classes {
		if v, ok := table.Get(class.Key.Identity(), attr); ok {
			values = append(values, v)
		}
	}
	return values
}

// minMaxNormalize rescales values to [0, 1]; a constant column maps to 0.
func minMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := floats.Min(values), floats.Max(values)
	if hi <= lo {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

func tableExtremes(classes []*EquivalenceClass, table *AttributeTable) (float64, float64) {
	var all []float64
	for _, attr := range table.Attributes {
		all = append(all, attributeColumn(classes, table, attr)...)
	}
	if len(all) == 0 {
		return 0, 0
	}
	return floats.Min(all), floats.Max(all)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
