// Package types contains common types used across the application
package types

// ComponentView is one fitted component as reported to clients.
type ComponentView struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"std_dev"`
	Weight   float64 `json:"weight"`
}

// CandidateScore summarizes the fit for one component count.
type CandidateScore struct {
	Components    int     `json:"components"`
	AIC           float64 `json:"aic,omitempty"`
	LogLikelihood float64 `json:"log_likelihood,omitempty"`
	State         string  `json:"state,omitempty"`
	Iterations    int     `json:"iterations,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// PercentileMarker is a percentile and the value at which the fitted
// cumulative density reaches it.
type PercentileMarker struct {
	Percentile int     `json:"percentile"`
	Value      float64 `json:"value"`
}

// DensityPoint is a point on the histogram-scaled density curve.
type DensityPoint struct {
	X       float64 `json:"x"`
	Density float64 `json:"density"`
}

// Summary holds descriptive statistics of a sample.
type Summary struct {
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"std_dev"`
}
