package privacy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonyguard/pkg/errors"
	"github.com/inferloop/anonyguard/pkg/models"
)

// GroupKey identifies an equivalence class by its ordered quasi-identifier
// values.
type GroupKey struct {
	Columns  []string      `json:"columns"`
	Values   []interface{} `json:"values"`
	identity string
}

// String renders the key the way reports show it: "age: 30, gender: M".
func (k GroupKey) String() string {
	parts := make([]string, len(k.Columns))
	for i, col := range k.Columns {
		parts[i] = fmt.Sprintf("%s: %s", col, displayValue(k.Values[i]))
	}
	return strings.Join(parts, ", ")
}

// Identity is a type-aware canonical form of the key. Unlike String it
// never conflates the number 30 with the text "30".
func (k GroupKey) Identity() string {
	return k.identity
}

// EquivalenceClass is the set of row indices sharing one GroupKey.
type EquivalenceClass struct {
	Key  GroupKey `json:"key"`
	Rows []int    `json:"rows"`
}

// Size is the number of rows in the class, i.e. its k.
func (c *EquivalenceClass) Size() int {
	return len(c.Rows)
}

type Partitioner struct {
	logger *logrus.Logger
}

func NewPartitioner(logger *logrus.Logger) *Partitioner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Partitioner{logger: logger}
}

// Partition groups row indices by their quasi-identifier tuple. Classes are
// returned in order of first appearance, so repeated calls on the same
// dataset yield identical output.
func (p *Partitioner) Partition(dataset *models.Dataset, quasiIdentifiers []string) ([]*EquivalenceClass, error) {
	if len(quasiIdentifiers) == 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfiguration,
			"at least one quasi-identifier is required")
	}
	for _, qi := range quasiIdentifiers {
		if !dataset.HasColumn(qi) {
			return nil, errors.NewConfigurationError(errors.CodeUnknownColumn,
				"quasi-identifier is not a dataset column").WithContext("column", qi)
		}
	}

	index := make(map[string]*EquivalenceClass)
	classes := make([]*EquivalenceClass, 0)

	for i, row := range dataset.Rows {
		key := newGroupKey(row, quasiIdentifiers)
		if class, exists := index[key.identity]; exists {
			class.Rows = append(class.Rows, i)
			continue
		}
		class := &EquivalenceClass{Key: key, Rows: []int{i}}
		index[key.identity] = class
		classes = append(classes, class)
	}

	p.logger.WithFields(logrus.Fields{
		"rows":              dataset.Len(),
		"quasi_identifiers": quasiIdentifiers,
		"classes":           len(classes),
	}).Debug("Partitioned dataset into equivalence classes")

	return classes, nil
}

func newGroupKey(row models.Row, quasiIdentifiers []string) GroupKey {
	values := make([]interface{}, len(quasiIdentifiers))
	ids := make([]string, len(quasiIdentifiers))
	for i, qi := range quasiIdentifiers {
		values[i] = row[qi]
		ids[i] = valueIdentity(row[qi])
	}
	cols := make([]string, len(quasiIdentifiers))
	copy(cols, quasiIdentifiers)

	return GroupKey{
		Columns:  cols,
		Values:   values,
		identity: strings.Join(ids, "\x1f"),
	}
}

// valueIdentity returns a comparable, type-tagged form of a normalised cell.
// NaN is handled here because it cannot be used as a map key directly.
func valueIdentity(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "n:"
	case float64:
		if val == 0 {
			// -0 and 0 are the same value.
			val = 0
		}
		return "f:" + strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return "b:" + strconv.FormatBool(val)
	case string:
		return "s:" + val
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}

func displayValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
