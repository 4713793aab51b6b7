package privacy

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonyguard/pkg/errors"
)

func TestKAnonymityEvaluator(t *testing.T) {
	ds := patientsDataset(t)
	classes, err := NewPartitioner(nil).Partition(ds, []string{"age"})
	require.NoError(t, err)

	table := NewKAnonymityEvaluator(logrus.New()).Evaluate(classes)

	sum := 0
	for _, class := range classes {
		k := table[class.Key.Identity()]
		assert.Equal(t, class.Size(), k)
		sum += k
	}
	assert.Equal(t, ds.Len(), sum)
	assert.Equal(t, 2, table.Min())

	assert.Equal(t, 0, NewKAnonymityEvaluator(nil).Evaluate(nil).Min())
}

func TestLDiversityNormalizedEntropy(t *testing.T) {
	ds := patientsDataset(t)
	classes, err := NewPartitioner(nil).Partition(ds, []string{"age", "gender"})
	require.NoError(t, err)

	table, err := NewLDiversityEvaluator(nil).Evaluate(ds, classes, []string{"diagnosis"})
	require.NoError(t, err)

	homogeneous, ok := table.Get(classes[0].Key.Identity(), "diagnosis")
	require.True(t, ok)
	assert.Equal(t, 0.0, homogeneous)

	// Two equally likely values out of three distinct in the dataset.
	mixed, ok := table.Get(classes[1].Key.Identity(), "diagnosis")
	require.True(t, ok)
	assert.InDelta(t, math.Log(2)/math.Log(3), mixed, 1e-12)
}

func TestLDiversityUniformClassIsOne(t *testing.T) {
	ds := newTestDataset(t, []string{"zip", "disease"},
		[]interface{}{"1000", "flu"},
		[]interface{}{"1000", "cold"},
		[]interface{}{"1000", "covid"},
		[]interface{}{"2000", "flu"},
	)
	classes, err := NewPartitioner(nil).Partition(ds, []string{"zip"})
	require.NoError(t, err)

	table, err := NewLDiversityEvaluator(nil).Evaluate(ds, classes, []string{"disease"})
	require.NoError(t, err)

	l, _ := table.Get(classes[0].Key.Identity(), "disease")
	assert.InDelta(t, 1.0, l, 1e-12)
	for _, byAttr := range table.Values {
		assert.GreaterOrEqual(t, byAttr["disease"], 0.0)
		assert.LessOrEqual(t, byAttr["disease"], 1.0)
	}
}

func TestLDiversityConstantColumnIsZero(t *testing.T) {
	ds := newTestDataset(t, []string{"zip", "disease"},
		[]interface{}{"1000", "flu"},
		[]interface{}{"1000", "flu"},
		[]interface{}{"2000", "flu"},
	)
	classes, err := NewPartitioner(nil).Partition(ds, []string{"zip"})
	require.NoError(t, err)

	table, err := NewLDiversityEvaluator(nil).Evaluate(ds, classes, []string{"disease"})
	require.NoError(t, err)

	for _, class := range classes {
		l, ok := table.Get(class.Key.Identity(), "disease")
		require.True(t, ok)
		assert.Equal(t, 0.0, l)
	}
}

func TestLDiversityUnknownColumn(t *testing.T) {
	ds := patientsDataset(t)
	classes, err := NewPartitioner(nil).Partition(ds, []string{"age"})
	require.NoError(t, err)

	_, err = NewLDiversityEvaluator(nil).Evaluate(ds, classes, []string{"income"})
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))
}

func TestTClosenessTotalVariation(t *testing.T) {
	ds := patientsDataset(t)
	classes, err := NewPartitioner(nil).Partition(ds, []string{"age", "gender"})
	require.NoError(t, err)

	table, err := NewTClosenessEvaluator(nil).Evaluate(ds, classes, []string{"diagnosis"})
	require.NoError(t, err)

	// Global distribution is A: 4/6, B: 1/6, C: 1/6.
	homogeneous, _ := table.Get(classes[0].Key.Identity(), "diagnosis")
	assert.InDelta(t, 1.0/3.0, homogeneous, 1e-12)

	mixed, _ := table.Get(classes[1].Key.Identity(), "diagnosis")
	assert.InDelta(t, 1.0/3.0, mixed, 1e-12)
}

func TestTClosenessZeroWhenDistributionMatchesGlobal(t *testing.T) {
	ds := newTestDataset(t, []string{"zip", "disease"},
		[]interface{}{"1000", "flu"},
		[]interface{}{"1000", "cold"},
		[]interface{}{"2000", "cold"},
		[]interface{}{"2000", "flu"},
	)
	classes, err := NewPartitioner(nil).Partition(ds, []string{"zip"})
	require.NoError(t, err)

	table, err := NewTClosenessEvaluator(nil).Evaluate(ds, classes, []string{"disease"})
	require.NoError(t, err)

	for _, class := range classes {
		v, ok := table.Get(class.Key.Identity(), "disease")
		require.True(t, ok)
		assert.InDelta(t, 0.0, v, 1e-12)
	}
}

func TestDistribution(t *testing.T) {
	d := NewDistribution([]interface{}{"a", "b", "a", nil})

	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 4, d.Total())
	assert.InDelta(t, 0.5, d.Probability("a"), 1e-12)
	assert.InDelta(t, 0.25, d.Probability(nil), 1e-12)
	assert.Equal(t, 0.0, d.Probability("z"))
	assert.InDelta(t, 1.0, sum(d.Probabilities()), 1e-12)

	expected := -(0.5*math.Log(0.5) + 2*0.25*math.Log(0.25))
	assert.InDelta(t, expected, d.Entropy(), 1e-12)

	other := NewDistribution([]interface{}{"c"})
	assert.InDelta(t, 1.0, d.TotalVariation(other), 1e-12)
	assert.InDelta(t, 0.0, d.TotalVariation(d), 1e-12)

	empty := NewDistribution(nil)
	assert.Equal(t, 0.0, empty.Entropy())
	assert.Equal(t, 0.0, empty.TotalVariation(empty))
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}
