package gmm

import (
	"github.com/okian/scoredist/pkg/logger"
)

// Option applies a configuration option to the Fitter.
type Option func(*Fitter)

// WithMaxIterations caps the number of EM iterations per fit.
func WithMaxIterations(n int) Option {
	return func(f *Fitter) {
		if n > 0 {
			f.maxIterations = n
		}
	}
}

// WithTolerance sets the convergence threshold for weight, mean and variance deltas.
func WithTolerance(tol float64) Option {
	return func(f *Fitter) {
		if tol > 0 {
			f.tolerance = tol
		}
	}
}

// WithVarianceFloor sets the smallest variance a component may keep before
// it is treated as collapsed.
func WithVarianceFloor(floor float64) Option {
	return func(f *Fitter) {
		if floor > 0 {
			f.varianceFloor = floor
		}
	}
}

// WithCollapsePolicy selects how collapsed components are handled.
func WithCollapsePolicy(p CollapsePolicy) Option {
	return func(f *Fitter) {
		if p == CollapseReseed || p == CollapseFail {
			f.policy = p
		}
	}
}

// WithRestarts runs each fit from n independent initializations and keeps
// the one with the highest log-likelihood.
func WithRestarts(n int) Option {
	return func(f *Fitter) {
		if n > 0 {
			f.restarts = n
		}
	}
}

// WithLogger sets a logger for per-fit debug output.
func WithLogger(l logger.Logger) Option {
	return func(f *Fitter) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithIterationHook registers a callback invoked after every M-step.
func WithIterationHook(hook func(Iteration)) Option {
	return func(f *Fitter) {
		f.hook = hook
	}
}
