package gmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// LikelihoodFloor bounds pdf values from below before taking the log, so a
// point the mixture assigns zero density contributes ln(1e-300) instead of -Inf.
const LikelihoodFloor = 1e-300

// weightTolerance is how far the weight sum may drift from 1.
const weightTolerance = 1e-9

// Mixture is an immutable weighted set of Gaussian components. The fitter
// builds a fresh Mixture every iteration instead of mutating one in place.
type Mixture struct {
	components []Component
	weights    []float64
	logWeights []float64
}

// NewMixture validates components and weights and returns a Mixture.
// Both slices are copied.
func NewMixture(components []Component, weights []float64) (*Mixture, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: mixture needs at least one component", ErrInvalidComponentCount)
	}
	if len(components) != len(weights) {
		return nil, fmt.Errorf("%w: %d components but %d weights", ErrInvalidParameter, len(components), len(weights))
	}

	m := &Mixture{
		components: make([]Component, len(components)),
		weights:    make([]float64, len(weights)),
		logWeights: make([]float64, len(weights)),
	}
	for k, c := range components {
		valid, err := NewComponent(c.Mean, c.Variance)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", k, err)
		}
		m.components[k] = valid
	}
	for k, w := range weights {
		if !(w >= 0 && w <= 1+weightTolerance) {
			return nil, fmt.Errorf("%w: weight %d is %v, want [0,1]", ErrInvalidParameter, k, w)
		}
		m.weights[k] = w
		m.logWeights[k] = math.Log(w)
	}
	if sum := floats.Sum(m.weights); math.Abs(sum-1) > weightTolerance {
		return nil, fmt.Errorf("%w: weights sum to %v", ErrInvalidParameter, sum)
	}
	return m, nil
}

// Len returns the number of components.
func (m *Mixture) Len() int { return len(m.components) }

// Components returns a copy of the components.
func (m *Mixture) Components() []Component {
	return append([]Component(nil), m.components...)
}

// Weights returns a copy of the mixing weights.
func (m *Mixture) Weights() []float64 {
	return append([]float64(nil), m.weights...)
}

// Means returns the component means.
func (m *Mixture) Means() []float64 {
	out := make([]float64, len(m.components))
	for k, c := range m.components {
		out[k] = c.Mean
	}
	return out
}

// Variances returns the component variances.
func (m *Mixture) Variances() []float64 {
	out := make([]float64, len(m.components))
	for k, c := range m.components {
		out[k] = c.Variance
	}
	return out
}

// StdDevs returns the component standard deviations.
func (m *Mixture) StdDevs() []float64 {
	out := make([]float64, len(m.components))
	for k, c := range m.components {
		out[k] = c.StdDev()
	}
	return out
}

// PDF evaluates the mixture density at x.
func (m *Mixture) PDF(x float64) float64 {
	var p float64
	for k, c := range m.components {
		p += m.weights[k] * density(x, c.Mean, c.Variance)
	}
	return p
}

// LogLikelihood sums ln(pdf(x)) over the sample, clamping pdf at LikelihoodFloor.
func (m *Mixture) LogLikelihood(sample []float64) float64 {
	var ll float64
	for _, x := range sample {
		ll += math.Log(math.Max(m.PDF(x), LikelihoodFloor))
	}
	return ll
}

// Responsibilities returns the posterior probability of each component
// having generated x. The result sums to 1.
func (m *Mixture) Responsibilities(x float64) []float64 {
	out := make([]float64, len(m.components))
	m.responsibilitiesInto(x, out)
	return out
}

// responsibilitiesInto normalizes in log space: the largest weighted log
// density is subtracted before exponentiating, so the denominator is at
// least 1 and never underflows.
func (m *Mixture) responsibilitiesInto(x float64, dst []float64) {
	top := math.Inf(-1)
	for k, c := range m.components {
		dst[k] = m.logWeights[k] + c.logDensity(x)
		if dst[k] > top {
			top = dst[k]
		}
	}
	var sum float64
	for k := range dst {
		dst[k] = math.Exp(dst[k] - top)
		sum += dst[k]
	}
	floats.Scale(1/sum, dst)
}
