package privacy

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Distribution is the relative frequency of each distinct value of a column,
// computed over either the whole dataset or one equivalence class.
type Distribution struct {
	support []string
	values  map[string]interface{}
	counts  map[string]int
	total   int
}

// NewDistribution counts values. The support is ordered by value identity so
// probability vectors line up between distributions.
func NewDistribution(values []interface{}) *Distribution {
	d := &Distribution{
		values: make(map[string]interface{}),
		counts: make(map[string]int),
	}
	for _, v := range values {
		id := valueIdentity(v)
		if _, ok := d.counts[id]; !ok {
			d.values[id] = v
			d.support = append(d.support, id)
		}
		d.counts[id]++
		d.total++
	}
	sort.Strings(d.support)
	return d
}

// Len returns the number of distinct values.
func (d *Distribution) Len() int {
	return len(d.support)
}

// Total returns the number of observations.
func (d *Distribution) Total() int {
	return d.total
}

// Values returns the distinct values in support order.
func (d *Distribution) Values() []interface{} {
	out := make([]interface{}, len(d.support))
	for i, id := range d.support {
		out[i] = d.values[id]
	}
	return out
}

// Probability returns the relative frequency of v, or 0 when v is absent.
func (d *Distribution) Probability(v interface{}) float64 {
	return d.probabilityOf(valueIdentity(v))
}

func (d *Distribution) probabilityOf(id string) float64 {
	if d.total == 0 {
		return 0
	}
	return float64(d.counts[id]) / float64(d.total)
}

// Probabilities returns the frequency vector in support order.
func (d *Distribution) Probabilities() []float64 {
	return d.project(d.support)
}

func (d *Distribution) project(support []string) []float64 {
	p := make([]float64, len(support))
	for i, id := range support {
		p[i] = d.probabilityOf(id)
	}
	return p
}

// Entropy is the Shannon entropy in nats.
func (d *Distribution) Entropy() float64 {
	if d.total == 0 {
		return 0
	}
	return stat.Entropy(d.Probabilities())
}

// TotalVariation is 0.5·Σ|p−q| over the union of both supports. Values
// absent from one side count with probability 0 there.
func (d *Distribution) TotalVariation(other *Distribution) float64 {
	support := unionSupport(d.support, other.support)
	if len(support) == 0 {
		return 0
	}
	tv := 0.5 * floats.Distance(d.project(support), other.project(support), 1)
	return clampUnit(tv)
}

func unionSupport(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, ids := range [][]string{a, b} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// clampUnit folds floating-point drift back into [0, 1].
func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
