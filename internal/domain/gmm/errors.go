package gmm

import "errors"

// Sentinel error kinds for mixture fitting. Callers match them with errors.Is.
var (
	// ErrInvalidParameter reports a precondition violation such as a
	// non-positive variance or an out-of-range percentile.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrEmptySample reports a fit attempted on zero observations.
	ErrEmptySample = errors.New("empty sample")

	// ErrNonFiniteSample reports a NaN or infinite observation.
	ErrNonFiniteSample = errors.New("sample contains non-finite value")

	// ErrInvalidComponentCount reports a component count below one.
	ErrInvalidComponentCount = errors.New("invalid component count")

	// ErrComponentCollapse reports a component whose mass or variance
	// degenerated while the collapse policy forbids re-seeding.
	ErrComponentCollapse = errors.New("mixture component collapsed")

	// ErrPercentileOutOfRange reports a percentile the discretized grid
	// never accumulates enough mass to reach.
	ErrPercentileOutOfRange = errors.New("percentile out of range")
)
