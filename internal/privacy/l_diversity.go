package privacy

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonyguard/pkg/errors"
	"github.com/inferloop/anonyguard/pkg/models"
)

// AttributeTable holds one metric value per equivalence class and sensitive
// attribute. Values is keyed by group identity, then attribute.
type AttributeTable struct {
	Attributes []string                      `json:"attributes"`
	Values     map[string]map[string]float64 `json:"values"`
}

func newAttributeTable(attributes []string) *AttributeTable {
	attrs := make([]string, len(attributes))
	copy(attrs, attributes)
	return &AttributeTable{
		Attributes: attrs,
		Values:     make(map[string]map[string]float64),
	}
}

func (t *AttributeTable) set(identity, attribute string, value float64) {
	row, ok := t.Values[identity]
	if !ok {
		row = make(map[string]float64, len(t.Attributes))
		t.Values[identity] = row
	}
	row[attribute] = value
}

// Get returns the metric for one class and attribute.
func (t *AttributeTable) Get(identity, attribute string) (float64, bool) {
	row, ok := t.Values[identity]
	if !ok {
		return 0, false
	}
	v, ok := row[attribute]
	return v, ok
}

// LDiversityEvaluator computes l-diversity in its normalized-entropy form.
type LDiversityEvaluator struct {
	logger *logrus.Logger
}

func NewLDiversityEvaluator(logger *logrus.Logger) *LDiversityEvaluator {
	if logger == nil {
		logger = logrus.New()
	}
	return &LDiversityEvaluator{logger: logger}
}

// Evaluate returns, per class and sensitive attribute, the Shannon entropy
// of the in-class values divided by log(distinct values in the dataset).
// A column with at most one distinct value in the whole dataset has no
// diversity anywhere and scores 0 in every class.
func (l *LDiversityEvaluator) Evaluate(dataset *models.Dataset, classes []*EquivalenceClass, sensitive []string) (*AttributeTable, error) {
	table := newAttributeTable(sensitive)

	for _, attr := range sensitive {
		if !dataset.HasColumn(attr) {
			return nil, errors.NewConfigurationError(errors.CodeUnknownColumn,
				"sensitive attribute is not a dataset column").WithContext("column", attr)
		}

		column := dataset.ColumnValues(attr)
		distinct := NewDistribution(column).Len()

		if distinct <= 1 {
			for _, class := range classes {
				table.set(class.Key.Identity(), attr, 0)
			}
			l.logger.WithField("attribute", attr).Debug("Sensitive attribute has a single distinct value; entropy is 0")
			continue
		}

		// Natural-log entropy over natural-log support size equals the
		// base-2 ratio.
		maxEntropy := math.Log(float64(distinct))
		for _, class := range classes {
			local := NewDistribution(pick(column, class.Rows))
			table.set(class.Key.Identity(), attr, clampUnit(local.Entropy()/maxEntropy))
		}
	}

	return table, nil
}

func pick(column []interface{}, rows []int) []interface{} {
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = column[r]
	}
	return out
}
