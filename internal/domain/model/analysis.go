// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"time"

	"github.com/okian/scoredist/internal/domain/gmm"
	"github.com/okian/scoredist/internal/domain/types"
)

// Sentinel errors shared by the service and its adapters.
var (
	ErrBackpressure   = errors.New("fit queue is full")
	ErrSampleTooLarge = errors.New("sample exceeds maximum size")
	ErrNotStarted     = errors.New("service not started")
)

// Analysis is the stored result of selecting a mixture for one sample.
type Analysis struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint"`
	Seed        uint64    `json:"seed"`

	Components    int     `json:"components"`
	AIC           float64 `json:"aic"`
	LogLikelihood float64 `json:"log_likelihood"`
	State         string  `json:"state"`
	Iterations    int     `json:"iterations"`

	Mixture                []types.ComponentView    `json:"mixture"`
	Candidates             []types.CandidateScore   `json:"candidates"`
	GridStep               float64                  `json:"grid_step"`
	Percentiles            []types.PercentileMarker `json:"percentiles"`
	UnreachablePercentiles []int                    `json:"unreachable_percentiles,omitempty"`
	Summary                types.Summary            `json:"summary"`

	// Model is the selected mixture; kept for density queries, never serialized.
	Model *gmm.Mixture `json:"-"`
}

// AnalysisRequest is the body of a new analysis.
type AnalysisRequest struct {
	Sample        []float64 `json:"sample"`
	MaxComponents int       `json:"max_components,omitempty"`
	Seed          *uint64   `json:"seed,omitempty"`
}

// FitJob asks a worker to fit one component count for a sample.
// The sample is shared read-only between jobs of the same analysis.
type FitJob struct {
	AnalysisID string
	Sample     []float64
	Components int
	Seed       uint64
	Reply      chan<- FitOutcome
}

// FitOutcome is a worker's answer to a FitJob.
type FitOutcome struct {
	Components int
	Fit        gmm.Fit
	Err        error
	Duration   time.Duration
}
