package samplegen

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/okian/scoredist/internal/domain/model"
)

// Sentinel errors.
var (
	ErrInvalidMixture = errors.New("invalid mixture")
	ErrUnhealthy      = errors.New("service unhealthy")
	ErrRequest        = errors.New("request failed")
)

// Config holds configuration for a generator run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Mixture       []Component   // Mixture the samples are drawn from
	Size          int           // Observations per sample
	Samples       int           // Number of samples to submit
	Seed          uint64        // Seed of the first sample; later samples use Seed+i
	MaxComponents int           // Forwarded as max_components when positive
	Workers       int           // Number of concurrent submitters
	Timeout       time.Duration // HTTP request timeout
	OutputFile    string        // Optional JSON file of generated samples
	Verbose       bool          // Log every analysis at info
}

// Component is one Gaussian of the generating mixture.
type Component struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Weight float64 `json:"weight"`
}

// Result pairs a submitted sample with the analysis the service returned.
type Result struct {
	Index    int             `json:"index"`
	Seed     uint64          `json:"seed"`
	Sample   []float64       `json:"sample"`
	Analysis *model.Analysis `json:"analysis,omitempty"`
	Err      string          `json:"error,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	Submitted  int
	Successful int
	Failed     int
	// Recovered counts analyses whose chosen component count equals the
	// generating mixture's.
	Recovered int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// ParseMixture parses "mean:stddev:weight" triples separated by commas.
// Weights are normalized to sum to one.
func ParseMixture(s string) ([]Component, error) {
	var (
		out   []Component
		total float64
	)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: %q is not mean:stddev:weight", ErrInvalidMixture, part)
		}
		var vals [3]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidMixture, part)
			}
			vals[i] = v
		}
		if vals[1] <= 0 || vals[2] <= 0 {
			return nil, fmt.Errorf("%w: %q needs positive stddev and weight", ErrInvalidMixture, part)
		}
		out = append(out, Component{Mean: vals[0], StdDev: vals[1], Weight: vals[2]})
		total += vals[2]
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no components", ErrInvalidMixture)
	}
	for i := range out {
		out[i].Weight /= total
	}
	return out, nil
}
