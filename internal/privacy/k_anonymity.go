package privacy

import (
	"github.com/sirupsen/logrus"
)

// KTable maps a group identity to the size of its equivalence class.
type KTable map[string]int

// Min returns the global k-anonymity, or 0 for an empty table.
func (t KTable) Min() int {
	min := 0
	for _, k := range t {
		if min == 0 || k < min {
			min = k
		}
	}
	return min
}

type KAnonymityEvaluator struct {
	logger *logrus.Logger
}

func NewKAnonymityEvaluator(logger *logrus.Logger) *KAnonymityEvaluator {
	if logger == nil {
		logger = logrus.New()
	}
	return &KAnonymityEvaluator{logger: logger}
}

// Evaluate records k for every class. A singleton class has k = 1, the worst
// case.
func (k *KAnonymityEvaluator) Evaluate(classes []*EquivalenceClass) KTable {
	table := make(KTable, len(classes))
	for _, class := range classes {
		table[class.Key.Identity()] = class.Size()
	}

	k.logger.WithFields(logrus.Fields{
		"classes": len(classes),
		"min_k":   table.Min(),
	}).Debug("Computed k-anonymity")

	return table
}
