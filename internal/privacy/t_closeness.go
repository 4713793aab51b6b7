package privacy

import (
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonyguard/pkg/errors"
	"github.com/inferloop/anonyguard/pkg/models"
)

type TClosenessEvaluator struct {
	logger *logrus.Logger
}

func NewTClosenessEvaluator(logger *logrus.Logger) *TClosenessEvaluator {
	if logger == nil {
		logger = logrus.New()
	}
	return &TClosenessEvaluator{logger: logger}
}

// Evaluate returns the total variation distance between each class's value
// distribution and the dataset-wide distribution, per sensitive attribute.
func (t *TClosenessEvaluator) Evaluate(dataset *models.Dataset, classes []*EquivalenceClass, sensitive []string) (*AttributeTable, error) {
	table := newAttributeTable(sensitive)

	for _, attr := range sensitive {
		if !dataset.HasColumn(attr) {
			return nil, errors.NewConfigurationError(errors.CodeUnknownColumn,
				"sensitive attribute is not a dataset column").WithContext("column", attr)
		}

		column := dataset.ColumnValues(attr)
		global := t.GlobalDistribution(column)

		for _, class := range classes {
			local := NewDistribution(pick(column, class.Rows))
			table.set(class.Key.Identity(), attr, local.TotalVariation(global))
		}

		t.logger.WithFields(logrus.Fields{
			"attribute":       attr,
			"distinct_values": global.Len(),
			"classes":         len(classes),
		}).Debug("Computed t-closeness")
	}

	return table, nil
}

// GlobalDistribution is computed once per attribute and shared by every
// class of that evaluation.
func (t *TClosenessEvaluator) GlobalDistribution(column []interface{}) *Distribution {
	return NewDistribution(column)
}
