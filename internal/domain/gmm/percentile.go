package gmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultGridStep is the spacing of the discretized density.
const DefaultGridStep = 0.1

// maxGridPoints bounds the grid so a tiny step over a wide range cannot
// allocate without limit.
const maxGridPoints = 1_000_000

// GridStepFor returns step, widened when needed so a grid over [lo, hi]
// stays within the point limit.
func GridStepFor(lo, hi, step float64) float64 {
	if minStep := (hi - lo) / (maxGridPoints - 1); minStep > step {
		return math.Nextafter(minStep, math.Inf(1))
	}
	return step
}

// DefaultPercentiles are the markers drawn on the density chart.
var DefaultPercentiles = []int{4, 11, 23, 40, 60, 77, 89, 96} //nolint:gochecknoglobals // read-only defaults

// Marker is a percentile and the grid value at which it is reached.
type Marker struct {
	Percentile int     `json:"percentile"`
	Value      float64 `json:"value"`
}

// Grid is a mixture density discretized over [lo, hi].
type Grid struct {
	X          []float64
	Density    []float64
	Cumulative []float64
}

// DensityGrid evaluates model at lo + i·step for every point up to hi and
// accumulates pdf·step. The cumulative curve is divided by max(1, total),
// so it reaches 1 when the grid covers the mixture and stays below 1 when
// the range truncates it.
func DensityGrid(model *Mixture, lo, hi, step float64) (Grid, error) {
	if model == nil {
		return Grid{}, fmt.Errorf("%w: nil model", ErrInvalidParameter)
	}
	if !(step > 0) || math.IsInf(step, 0) {
		return Grid{}, fmt.Errorf("%w: step must be positive, got %v", ErrInvalidParameter, step)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) || hi < lo {
		return Grid{}, fmt.Errorf("%w: range [%v, %v]", ErrInvalidParameter, lo, hi)
	}

	// The span is checked as a float; converting an out-of-range value to
	// int is implementation defined.
	span := math.Floor((hi-lo)/step + 1e-9)
	if math.IsInf(span, 0) || math.IsNaN(span) || span >= maxGridPoints {
		return Grid{}, fmt.Errorf("%w: step %v over [%v, %v] exceeds %d grid points", ErrInvalidParameter, step, lo, hi, maxGridPoints)
	}
	count := int(span) + 1

	g := Grid{
		X:          make([]float64, count),
		Density:    make([]float64, count),
		Cumulative: make([]float64, count),
	}
	for i := range g.X {
		x := lo + float64(i)*step
		g.X[i] = x
		g.Density[i] = model.PDF(x)
		g.Cumulative[i] = g.Density[i] * step
	}
	floats.CumSum(g.Cumulative, g.Cumulative)
	if total := g.Cumulative[count-1]; total > 1 {
		floats.Scale(1/total, g.Cumulative)
	}
	return g, nil
}

// Mass returns the cumulative probability captured by the grid.
func (g Grid) Mass() float64 {
	if len(g.Cumulative) == 0 {
		return 0
	}
	return g.Cumulative[len(g.Cumulative)-1]
}

// Percentile returns the smallest grid value whose cumulative mass is at
// least p/100.
func (g Grid) Percentile(p int) (float64, error) {
	if p <= 0 || p >= 100 {
		return 0, fmt.Errorf("%w: percentile %d outside (0,100)", ErrInvalidParameter, p)
	}
	return g.quantile(float64(p) / 100)
}

// Quantile is Percentile for a fractional level q in (0,1), such as 0.9999.
func (g Grid) Quantile(q float64) (float64, error) {
	if !(q > 0 && q < 1) {
		return 0, fmt.Errorf("%w: quantile %v outside (0,1)", ErrInvalidParameter, q)
	}
	return g.quantile(q)
}

func (g Grid) quantile(q float64) (float64, error) {
	for i, c := range g.Cumulative {
		if c >= q {
			return g.X[i], nil
		}
	}
	return 0, fmt.Errorf("%w: level %v exceeds grid mass %v", ErrPercentileOutOfRange, q, g.Mass())
}

// Percentiles builds the grid over [lo, hi] and extracts every requested
// percentile. The first unreachable percentile fails the whole call.
func Percentiles(model *Mixture, lo, hi, step float64, ps []int) ([]Marker, error) {
	g, err := DensityGrid(model, lo, hi, step)
	if err != nil {
		return nil, err
	}
	out := make([]Marker, 0, len(ps))
	for _, p := range ps {
		v, err := g.Percentile(p)
		if err != nil {
			return nil, fmt.Errorf("percentile %d: %w", p, err)
		}
		out = append(out, Marker{Percentile: p, Value: v})
	}
	return out, nil
}
