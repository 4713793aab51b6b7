package privacy

import (
	"math"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonyguard/pkg/errors"
	"github.com/inferloop/anonyguard/pkg/models"
)

func newTestDataset(t *testing.T, columns []string, records ...[]interface{}) *models.Dataset {
	t.Helper()
	rows := make([]models.Row, len(records))
	for i, rec := range records {
		require.Len(t, rec, len(columns))
		row := make(models.Row, len(columns))
		for j, col := range columns {
			row[col] = rec[j]
		}
		rows[i] = row
	}
	ds, err := models.NewDataset(columns, rows)
	require.NoError(t, err)
	return ds
}

// patientsDataset has one homogeneous class, (30, M), and two diverse ones.
func patientsDataset(t *testing.T) *models.Dataset {
	return newTestDataset(t, []string{"age", "gender", "diagnosis"},
		[]interface{}{30, "M", "A"},
		[]interface{}{30, "M", "A"},
		[]interface{}{40, "F", "A"},
		[]interface{}{40, "F", "B"},
		[]interface{}{50, "M", "A"},
		[]interface{}{50, "M", "C"},
	)
}

func TestPartitionGroupsRowsByQuasiIdentifiers(t *testing.T) {
	ds := patientsDataset(t)

	classes, err := NewPartitioner(logrus.New()).Partition(ds, []string{"age", "gender"})
	require.NoError(t, err)
	require.Len(t, classes, 3)

	assert.Equal(t, []int{0, 1}, classes[0].Rows)
	assert.Equal(t, []int{2, 3}, classes[1].Rows)
	assert.Equal(t, []int{4, 5}, classes[2].Rows)
	assert.Equal(t, "age: 30, gender: M", classes[0].Key.String())
	assert.Equal(t, "age: 40, gender: F", classes[1].Key.String())
}

func TestPartitionIsStrictPartition(t *testing.T) {
	ds := newTestDataset(t, []string{"zip", "sex", "disease"},
		[]interface{}{"1000", "M", "flu"},
		[]interface{}{"1001", "F", "cold"},
		[]interface{}{"1000", "M", "cold"},
		[]interface{}{"1002", "F", "flu"},
		[]interface{}{"1001", "F", "flu"},
		[]interface{}{"1000", "F", "flu"},
		[]interface{}{"1002", "F", "cold"},
	)

	classes, err := NewPartitioner(nil).Partition(ds, []string{"zip", "sex"})
	require.NoError(t, err)

	var all []int
	total := 0
	for _, class := range classes {
		assert.GreaterOrEqual(t, class.Size(), 1)
		all = append(all, class.Rows...)
		total += class.Size()
	}
	sort.Ints(all)

	assert.Equal(t, ds.Len(), total)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, all)
}

func TestPartitionDistinguishesValueTypes(t *testing.T) {
	ds := newTestDataset(t, []string{"age", "diagnosis"},
		[]interface{}{30, "A"},
		[]interface{}{"30", "B"},
		[]interface{}{30.0, "C"},
		[]interface{}{nil, "A"},
		[]interface{}{math.NaN(), "B"},
		[]interface{}{math.NaN(), "C"},
	)

	classes, err := NewPartitioner(nil).Partition(ds, []string{"age"})
	require.NoError(t, err)
	require.Len(t, classes, 4)

	assert.Equal(t, []int{0, 2}, classes[0].Rows)
	assert.Equal(t, []int{1}, classes[1].Rows)
	assert.Equal(t, "age: null", classes[2].Key.String())
	assert.Equal(t, []int{4, 5}, classes[3].Rows)
	assert.NotEqual(t, classes[0].Key.Identity(), classes[1].Key.Identity())
}

func TestPartitionFoldsNegativeZero(t *testing.T) {
	ds := newTestDataset(t, []string{"x", "diagnosis"},
		[]interface{}{0, "A"},
		[]interface{}{math.Copysign(0, -1), "B"},
	)

	classes, err := NewPartitioner(nil).Partition(ds, []string{"x"})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, []int{0, 1}, classes[0].Rows)
}

func TestPartitionEmptyDataset(t *testing.T) {
	ds := newTestDataset(t, []string{"age", "diagnosis"})

	classes, err := NewPartitioner(nil).Partition(ds, []string{"age"})
	require.NoError(t, err)
	assert.Empty(t, classes)
}

func TestPartitionRejectsBadColumns(t *testing.T) {
	ds := patientsDataset(t)
	p := NewPartitioner(nil)

	_, err := p.Partition(ds, nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))

	_, err = p.Partition(ds, []string{"age", "zip"})
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "column=zip")
}
