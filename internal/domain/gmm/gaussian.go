// Package gmm fits one-dimensional Gaussian mixture models with
// Expectation-Maximization and selects the component count by AIC.
package gmm

import (
	"fmt"
	"math"
)

// logSqrt2Pi is ln(sqrt(2π)).
var logSqrt2Pi = 0.5 * math.Log(2*math.Pi) //nolint:gochecknoglobals // derived constant

// Component is a single normal distribution.
type Component struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// NewComponent validates and returns a component.
func NewComponent(mean, variance float64) (Component, error) {
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return Component{}, fmt.Errorf("%w: mean %v", ErrInvalidParameter, mean)
	}
	if err := checkVariance(variance); err != nil {
		return Component{}, err
	}
	return Component{Mean: mean, Variance: variance}, nil
}

// Density evaluates the normal density with the given mean and variance at x.
func Density(x, mean, variance float64) (float64, error) {
	if err := checkVariance(variance); err != nil {
		return 0, err
	}
	return density(x, mean, variance), nil
}

// Density evaluates the component density at x. A zero or otherwise
// invalid variance is reported as ErrInvalidParameter.
func (c Component) Density(x float64) (float64, error) {
	return Density(x, c.Mean, c.Variance)
}

// StdDev returns the standard deviation.
func (c Component) StdDev() float64 {
	return math.Sqrt(c.Variance)
}

// logDensity is ln(density) without the exp/log round trip, so points far
// in the tails keep a finite value instead of underflowing to -Inf.
func (c Component) logDensity(x float64) float64 {
	z := (x - c.Mean) / math.Sqrt(c.Variance)
	return -0.5*z*z - logSqrt2Pi - 0.5*math.Log(c.Variance)
}

func density(x, mean, variance float64) float64 {
	coefficient := 1 / math.Sqrt(2*math.Pi*variance)
	z := (x - mean) / math.Sqrt(variance)
	return coefficient * math.Exp(-0.5*z*z)
}

func checkVariance(variance float64) error {
	if !(variance > 0) || math.IsInf(variance, 1) {
		return fmt.Errorf("%w: variance must be positive and finite, got %v", ErrInvalidParameter, variance)
	}
	return nil
}
