package gmm

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/scoredist/pkg/logger"
)

// Default fitting configuration constants.
const (
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-6
	DefaultVarianceFloor = 1e-6

	// minComponentMass is the effective number of observations below which
	// a component is considered empty.
	minComponentMass = 1e-10
)

// State is the fitter's lifecycle position.
type State int

// Fitter states. A returned Fit is always Converged or Exhausted.
const (
	StateInitialized State = iota
	StateIterating
	StateConverged
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CollapsePolicy decides what happens when a component's mass or variance degenerates.
type CollapsePolicy int

const (
	// CollapseReseed moves the component to a random observation with the
	// sample's variance and an even share of weight.
	CollapseReseed CollapsePolicy = iota
	// CollapseFail aborts the fit with ErrComponentCollapse.
	CollapseFail
)

func (p CollapsePolicy) String() string {
	if p == CollapseFail {
		return "fail"
	}
	return "reseed"
}

// ParseCollapsePolicy accepts "reseed" or "fail" (case-insensitive).
func ParseCollapsePolicy(s string) (CollapsePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reseed":
		return CollapseReseed, nil
	case "fail":
		return CollapseFail, nil
	default:
		return CollapseReseed, fmt.Errorf("%w: unknown collapse policy %q", ErrInvalidParameter, s)
	}
}

// Iteration is passed to the iteration hook after each M-step.
type Iteration struct {
	Restart       int
	Number        int
	Model         *Mixture
	LogLikelihood float64
	Reseeded      int
}

// Fit is the outcome of fitting a fixed number of components.
type Fit struct {
	Model         *Mixture
	State         State
	Iterations    int
	LogLikelihood float64
	// Trace holds the log-likelihood of the initial model followed by the
	// value after every iteration.
	Trace   []float64
	Reseeds int
}

// Fitter runs EM for a fixed component count. It holds configuration only
// and is safe for concurrent use; each call owns its own working model.
type Fitter struct {
	maxIterations int
	tolerance     float64
	varianceFloor float64
	policy        CollapsePolicy
	restarts      int
	logger        logger.Logger
	hook          func(Iteration)
}

// NewFitter creates a fitter with configuration options.
func NewFitter(opts ...Option) *Fitter {
	f := &Fitter{
		maxIterations: DefaultMaxIterations,
		tolerance:     DefaultTolerance,
		varianceFloor: DefaultVarianceFloor,
		policy:        CollapseReseed,
		restarts:      1,
		logger:        logger.Nop(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Policy returns the configured collapse policy.
func (f *Fitter) Policy() CollapsePolicy { return f.policy }

// Settings renders the configuration that influences fit results.
func (f *Fitter) Settings() string {
	return fmt.Sprintf("iter=%d tol=%g floor=%g policy=%s restarts=%d",
		f.maxIterations, f.tolerance, f.varianceFloor, f.policy, f.restarts)
}

// Fit estimates an n-component mixture for sample. All randomness comes
// from rng, so the same sample, n and source state give the same result.
func (f *Fitter) Fit(ctx context.Context, sample []float64, n int, rng *rand.Rand) (Fit, error) {
	if err := ValidateSample(sample); err != nil {
		return Fit{}, err
	}
	if n < 1 {
		return Fit{}, fmt.Errorf("%w: %d", ErrInvalidComponentCount, n)
	}
	if rng == nil {
		return Fit{}, fmt.Errorf("%w: nil random source", ErrInvalidParameter)
	}
	if f.policy == CollapseFail {
		if distinct := distinctCount(sample); distinct < n {
			return Fit{}, fmt.Errorf("%w: %d components over %d distinct values", ErrComponentCollapse, n, distinct)
		}
	}

	var best Fit
	for r := 0; r < f.restarts; r++ {
		fit, err := f.fitOnce(ctx, sample, n, rng, r)
		if err != nil {
			return Fit{}, err
		}
		if r == 0 || fit.LogLikelihood > best.LogLikelihood {
			best = fit
		}
	}

	f.logger.Debug(ctx, "mixture fitted",
		logger.Int("components", n),
		logger.String("state", best.State.String()),
		logger.Int("iterations", best.Iterations),
		logger.Int("reseeds", best.Reseeds),
		logger.Float64("logLikelihood", best.LogLikelihood),
	)
	return best, nil
}

func (f *Fitter) fitOnce(ctx context.Context, sample []float64, n int, rng *rand.Rand, restart int) (Fit, error) {
	model, err := f.initialize(sample, n, rng)
	if err != nil {
		return Fit{}, err
	}

	fit := Fit{State: StateInitialized}
	ll := model.LogLikelihood(sample)
	fit.Trace = append(make([]float64, 0, f.maxIterations+1), ll)

	reseedVariance := math.Max(f.varianceFloor, stat.PopVariance(sample, nil))
	resp := make([]float64, len(sample)*n)

	fit.State = StateIterating
	for it := 1; it <= f.maxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return Fit{}, fmt.Errorf("fit interrupted at iteration %d: %w", it, err)
		}

		next, reseeded, err := f.step(sample, model, resp, rng, reseedVariance)
		if err != nil {
			return Fit{}, fmt.Errorf("iteration %d: %w", it, err)
		}

		ll = next.LogLikelihood(sample)
		fit.Trace = append(fit.Trace, ll)
		fit.Iterations = it
		fit.Reseeds += reseeded

		done := reseeded == 0 && converged(model, next, f.tolerance)
		model = next

		if f.hook != nil {
			f.hook(Iteration{Restart: restart, Number: it, Model: model, LogLikelihood: ll, Reseeded: reseeded})
		}
		if done {
			fit.State = StateConverged
			break
		}
	}
	if fit.State != StateConverged {
		fit.State = StateExhausted
	}

	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return Fit{}, fmt.Errorf("%w: log-likelihood %v", ErrComponentCollapse, ll)
	}
	fit.Model = model
	fit.LogLikelihood = ll
	return fit, nil
}

// initialize draws means uniformly from [min, max] and variances from (0, 1].
func (f *Fitter) initialize(sample []float64, n int, rng *rand.Rand) (*Mixture, error) {
	lo, hi := floats.Min(sample), floats.Max(sample)

	components := make([]Component, n)
	weights := make([]float64, n)
	for k := range components {
		components[k] = Component{
			Mean:     lo + rng.Float64()*(hi-lo),
			Variance: 1 - rng.Float64(),
		}
		weights[k] = 1 / float64(n)
	}
	return NewMixture(components, weights)
}

// step runs one E-step and one M-step and returns the next model and the
// number of components that were re-seeded. resp is scratch space of
// len(sample)*n laid out row-major by observation.
//
// The variance update is centred on the previous iteration's mean, not the
// mean computed in the same step.
func (f *Fitter) step(sample []float64, model *Mixture, resp []float64, rng *rand.Rand, reseedVariance float64) (*Mixture, int, error) {
	n := model.Len()
	for i, x := range sample {
		model.responsibilitiesInto(x, resp[i*n:(i+1)*n])
	}

	size := float64(len(sample))
	components := make([]Component, n)
	weights := make([]float64, n)
	reseeded := 0

	for k := 0; k < n; k++ {
		prevMean := model.components[k].Mean

		var mass, weighted float64
		for i, x := range sample {
			r := resp[i*n+k]
			mass += r
			weighted += r * x
		}

		var mean, variance float64
		if mass > minComponentMass {
			mean = weighted / mass
			var ss float64
			for i, x := range sample {
				d := x - prevMean
				ss += resp[i*n+k] * d * d
			}
			variance = ss / mass
		}

		if mass > minComponentMass && variance >= f.varianceFloor && !math.IsInf(variance, 1) {
			components[k] = Component{Mean: mean, Variance: variance}
			weights[k] = mass / size
			continue
		}

		if f.policy == CollapseFail {
			return nil, 0, fmt.Errorf("%w: component %d has mass %g and variance %g", ErrComponentCollapse, k, mass, variance)
		}
		components[k] = Component{Mean: sample[rng.IntN(len(sample))], Variance: reseedVariance}
		weights[k] = 1 / float64(n)
		reseeded++
	}

	floats.Scale(1/floats.Sum(weights), weights)

	next, err := NewMixture(components, weights)
	if err != nil {
		return nil, 0, err
	}
	return next, reseeded, nil
}

// converged reports whether every weight, mean and variance moved by less than tol.
func converged(prev, next *Mixture, tol float64) bool {
	for k := range prev.components {
		if math.Abs(prev.weights[k]-next.weights[k]) >= tol ||
			math.Abs(prev.components[k].Mean-next.components[k].Mean) >= tol ||
			math.Abs(prev.components[k].Variance-next.components[k].Variance) >= tol {
			return false
		}
	}
	return true
}

// ValidateSample reports whether sample is non-empty with only finite values.
func ValidateSample(sample []float64) error {
	if len(sample) == 0 {
		return ErrEmptySample
	}
	for i, x := range sample {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: index %d is %v", ErrNonFiniteSample, i, x)
		}
	}
	return nil
}

func distinctCount(sample []float64) int {
	seen := make(map[float64]struct{}, len(sample))
	for _, x := range sample {
		seen[x] = struct{}{}
	}
	return len(seen)
}

// CandidateSource returns the deterministic random source used for the
// candidate with n components under seed. Sequential and pooled selection
// both draw from it, so they produce identical fits.
func CandidateSource(seed uint64, n int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(n))) //nolint:gosec // reproducible fits, not security
}
