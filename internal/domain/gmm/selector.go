package gmm

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Default selection constants.
const (
	DefaultMaxComponents = 10
	DefaultSeed          = 42
)

// AIC scores a fitted mixture as 2n - 2·LL where n is the number of
// components. Lower is better.
func AIC(model *Mixture, sample []float64) float64 {
	return aic(model.Len(), model.LogLikelihood(sample))
}

func aic(components int, logLikelihood float64) float64 {
	return 2*float64(components) - 2*logLikelihood
}

// Candidate is the fit for one component count. Err is set when that
// count collapsed and was skipped.
type Candidate struct {
	Components int
	Fit        Fit
	AIC        float64
	Err        error
}

// Usable reports whether the candidate produced a model.
func (c Candidate) Usable() bool {
	return c.Err == nil && c.Fit.Model != nil
}

// NewCandidate scores a completed fit.
func NewCandidate(components int, fit Fit, err error) Candidate {
	c := Candidate{Components: components, Fit: fit, Err: err}
	if c.Usable() {
		c.AIC = aic(components, fit.LogLikelihood)
	}
	return c
}

// Selection is the outcome of a component-count search.
type Selection struct {
	Best       Candidate
	Candidates []Candidate
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithMaxComponents sets the largest component count tried.
func WithMaxComponents(n int) SelectorOption {
	return func(s *Selector) {
		if n > 0 {
			s.maxComponents = n
		}
	}
}

// WithSeed sets the base seed candidate sources derive from.
func WithSeed(seed uint64) SelectorOption {
	return func(s *Selector) {
		s.seed = seed
	}
}

// Selector fits n = 1..maxComponents and keeps the lowest AIC.
type Selector struct {
	fitter        *Fitter
	maxComponents int
	seed          uint64
}

// NewSelector creates a selector around fitter.
func NewSelector(fitter *Fitter, opts ...SelectorOption) *Selector {
	if fitter == nil {
		fitter = NewFitter()
	}
	s := &Selector{
		fitter:        fitter,
		maxComponents: DefaultMaxComponents,
		seed:          DefaultSeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxComponents returns the configured search bound.
func (s *Selector) MaxComponents() int { return s.maxComponents }

// FindOptimal runs every candidate sequentially and returns the selection.
// Candidates that collapse are recorded and skipped; any other error aborts.
func (s *Selector) FindOptimal(ctx context.Context, sample []float64) (Selection, error) {
	if len(sample) == 0 {
		return Selection{}, ErrEmptySample
	}
	if err := ValidateSample(sample); err != nil {
		return Selection{}, err
	}

	candidates := make([]Candidate, 0, s.maxComponents)
	for n := 1; n <= s.maxComponents; n++ {
		fit, err := s.fitter.Fit(ctx, sample, n, CandidateSource(s.seed, n))
		if err != nil && !errors.Is(err, ErrComponentCollapse) {
			return Selection{}, fmt.Errorf("fit %d components: %w", n, err)
		}
		candidates = append(candidates, NewCandidate(n, fit, err))
	}
	return Choose(candidates)
}

// Choose picks the strictly lowest AIC among usable candidates, scanning in
// increasing component order so ties keep the smaller count. The candidates
// slice is sorted in place.
func Choose(candidates []Candidate) (Selection, error) {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Components < candidates[j].Components
	})

	best := -1
	var firstErr error
	for i, c := range candidates {
		if !c.Usable() {
			if firstErr == nil {
				firstErr = c.Err
			}
			continue
		}
		if best < 0 || c.AIC < candidates[best].AIC {
			best = i
		}
	}
	if best < 0 {
		if firstErr == nil {
			firstErr = ErrInvalidComponentCount
		}
		return Selection{Candidates: candidates}, fmt.Errorf("no usable candidate: %w", firstErr)
	}
	return Selection{Best: candidates[best], Candidates: candidates}, nil
}
