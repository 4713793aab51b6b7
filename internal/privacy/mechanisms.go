package privacy

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	dpnoise "github.com/google/differential-privacy/go/v3/noise"
	dprand "github.com/google/differential-privacy/go/v3/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inferloop/anonyguard/pkg/constants"
	"github.com/inferloop/anonyguard/pkg/errors"
)

// NoiseSource supplies the randomness behind both mechanisms.
type NoiseSource interface {
	Name() string
	// Laplace returns x plus Laplace(0, sensitivity/epsilon) noise.
	Laplace(x, sensitivity, epsilon float64) (float64, error)
	// Uniform returns a value in [0, 1).
	Uniform() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// NewNoiseSource builds the named source. A zero seed seeds the
// reproducible source from the clock.
func NewNoiseSource(name string, seed int64) (NoiseSource, error) {
	switch name {
	case "", constants.NoiseSourceSeeded:
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return &seededSource{rng: rand.New(rand.NewSource(seed))}, nil
	case constants.NoiseSourceSecure:
		return secureSource{}, nil
	default:
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfiguration,
			"unknown noise source").WithContext("source", name)
	}
}

// seededSource draws from math/rand so runs can be replayed from a seed.
type seededSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *seededSource) Name() string { return constants.NoiseSourceSeeded }

func (s *seededSource) Laplace(x, sensitivity, epsilon float64) (float64, error) {
	s.mu.Lock()
	u := s.rng.Float64()
	for u == 0 {
		u = s.rng.Float64()
	}
	s.mu.Unlock()

	dist := distuv.Laplace{Mu: 0, Scale: sensitivity / epsilon}
	return x + dist.Quantile(u), nil
}

func (s *seededSource) Uniform() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *seededSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// secureSource uses the floating-point-safe samplers from the
// differential-privacy library.
type secureSource struct{}

func (secureSource) Name() string { return constants.NoiseSourceSecure }

func (secureSource) Laplace(x, sensitivity, epsilon float64) (float64, error) {
	noisy, err := dpnoise.Laplace().AddNoiseFloat64(x, 1, sensitivity, epsilon, 0)
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
			"secure laplace sampling failed")
	}
	return noisy, nil
}

// Uniform folds the library's (0, 1] draw onto [0, 1).
func (secureSource) Uniform() float64 {
	return 1 - dprand.Uniform()
}

func (secureSource) Intn(n int) int {
	return int(dprand.I63n(int64(n)))
}

// LaplaceMechanism perturbs a numeric column with noise calibrated to its
// observed range.
type LaplaceMechanism struct {
	source NoiseSource
}

func NewLaplaceMechanism(source NoiseSource) *LaplaceMechanism {
	if source == nil {
		source = &seededSource{rng: rand.New(rand.NewSource(42))}
	}
	return &LaplaceMechanism{source: source}
}

// GetName returns the mechanism name
func (lm *LaplaceMechanism) GetName() string {
	return "laplace"
}

// CalculateSensitivity is max − min of the column.
func (lm *LaplaceMechanism) CalculateSensitivity(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return floats.Max(data) - floats.Min(data)
}

// CalculateNoiseScale returns b = sensitivity / epsilon.
func (lm *LaplaceMechanism) CalculateNoiseScale(sensitivity, epsilon float64) float64 {
	return sensitivity / epsilon
}

// NumericObservations returns the non-nil, non-NaN cells of a numeric
// column, or an error naming the first cell that is not a number.
func NumericObservations(values []interface{}) ([]float64, error) {
	observed := make([]float64, 0, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case nil:
		case float64:
			if !math.IsNaN(val) {
				observed = append(observed, val)
			}
		default:
			return nil, errors.NewConfigurationError(errors.CodeInvalidInput,
				"numeric column holds a non-numeric value").
				WithContext("row", i).
				WithContext("value", fmt.Sprintf("%v", v))
		}
	}
	return observed, nil
}

// AddNoiseToColumn returns a new column with noise added to every numeric
// cell. Nil and NaN cells are passed through and ignored for sensitivity.
func (lm *LaplaceMechanism) AddNoiseToColumn(ctx context.Context, values []interface{}, epsilon float64) ([]interface{}, ColumnNoise, error) {
	info := ColumnNoise{Mechanism: lm.GetName()}

	observed, err := NumericObservations(values)
	if err != nil {
		return nil, info, err
	}

	info.Sensitivity = lm.CalculateSensitivity(observed)
	info.Scale = lm.CalculateNoiseScale(info.Sensitivity, epsilon)

	out := make([]interface{}, len(values))
	copy(out, values)

	// A constant column has nothing to protect; lInf must be positive for
	// the secure sampler anyway.
	if info.Sensitivity == 0 {
		return out, info, nil
	}

	for i, v := range values {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, info, err
			}
		}
		val, ok := v.(float64)
		if !ok || math.IsNaN(val) {
			continue
		}
		noisy, err := lm.source.Laplace(val, info.Sensitivity, epsilon)
		if err != nil {
			return nil, info, err
		}
		out[i] = noisy
		if noisy != val {
			info.Changed++
		}
	}

	return out, info, nil
}

// RandomizedResponseMechanism keeps each categorical value with probability
// p and otherwise replaces it with a uniform draw from the column's
// distinct values.
type RandomizedResponseMechanism struct {
	source NoiseSource
}

func NewRandomizedResponseMechanism(source NoiseSource) *RandomizedResponseMechanism {
	if source == nil {
		source = &seededSource{rng: rand.New(rand.NewSource(42))}
	}
	return &RandomizedResponseMechanism{source: source}
}

// GetName returns the mechanism name
func (rr *RandomizedResponseMechanism) GetName() string {
	return "randomized_response"
}

// Respond perturbs a column. The replacement draw may return the original
// value.
func (rr *RandomizedResponseMechanism) Respond(ctx context.Context, values []interface{}, keepProbability float64) ([]interface{}, ColumnNoise, error) {
	info := ColumnNoise{Mechanism: rr.GetName(), KeepProbability: keepProbability}

	categories := NewDistribution(values).Values()
	out := make([]interface{}, len(values))

	for i, v := range values {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, info, err
			}
		}
		if rr.source.Uniform() < keepProbability {
			out[i] = v
			continue
		}
		out[i] = categories[rr.source.Intn(len(categories))]
		if valueIdentity(out[i]) != valueIdentity(v) {
			info.Changed++
		}
	}

	return out, info, nil
}
