// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/okian/scoredist/internal/domain/gmm"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// MaxComponents is the default and upper bound of candidate counts.
	MaxComponents int `koanf:"max_components"`

	// MaxIterations caps EM iterations per restart.
	MaxIterations int `koanf:"max_iterations"`

	// Tolerance is the convergence threshold on per-parameter change.
	Tolerance float64 `koanf:"tolerance"`

	// VarianceFloor is the smallest variance a component may keep.
	VarianceFloor float64 `koanf:"variance_floor"`

	// CollapsePolicy is reseed or fail.
	CollapsePolicy string `koanf:"collapse_policy"`

	// Seed is used when a request does not carry one.
	Seed uint64 `koanf:"seed"`

	// Restarts is the number of EM runs per candidate; the best is kept.
	Restarts int `koanf:"restarts"`

	// GridStep is the spacing of percentile and density grids.
	GridStep float64 `koanf:"grid_step"`

	// Percentiles are reported with every analysis.
	Percentiles []int `koanf:"percentiles"`

	// WorkerCount sets the number of fitting goroutines.
	WorkerCount int `koanf:"worker_count"`

	QueueSize     int `koanf:"queue_size"`
	CacheSize     int `koanf:"cache_size"`
	StoreSize     int `koanf:"store_size"`
	MaxSampleSize int `koanf:"max_sample_size"`

	// RateLimitRPS limits POST /analyses; zero disables the limit.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		MaxComponents:  gmm.DefaultMaxComponents,
		MaxIterations:  gmm.DefaultMaxIterations,
		Tolerance:      gmm.DefaultTolerance,
		VarianceFloor:  gmm.DefaultVarianceFloor,
		CollapsePolicy: gmm.CollapseReseed.String(),
		Seed:           gmm.DefaultSeed,
		Restarts:       1,
		GridStep:       gmm.DefaultGridStep,
		Percentiles:    append([]int(nil), gmm.DefaultPercentiles...),
		WorkerCount:    runtime.NumCPU(),
		QueueSize:      1024,
		CacheSize:      1024,
		StoreSize:      10_000,
		MaxSampleSize:  100_000,
		RateLimitRPS:   50,
		RateLimitBurst: 100,
	}
}

// Validate reports the first impossible setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MaxComponents < 1:
		return fmt.Errorf("%w: max_components must be positive", ErrInvalidConfig)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: max_iterations must be positive", ErrInvalidConfig)
	case !(c.Tolerance > 0):
		return fmt.Errorf("%w: tolerance must be positive", ErrInvalidConfig)
	case !(c.VarianceFloor > 0):
		return fmt.Errorf("%w: variance_floor must be positive", ErrInvalidConfig)
	case c.Restarts < 1:
		return fmt.Errorf("%w: restarts must be positive", ErrInvalidConfig)
	case !(c.GridStep > 0):
		return fmt.Errorf("%w: grid_step must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1, c.QueueSize < 1, c.CacheSize < 1, c.StoreSize < 1, c.MaxSampleSize < 1:
		return fmt.Errorf("%w: worker, queue, cache, store and sample sizes must be positive", ErrInvalidConfig)
	case c.RateLimitRPS < 0, c.RateLimitBurst < 0:
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalidConfig)
	}

	if _, err := gmm.ParseCollapsePolicy(c.CollapsePolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	if len(c.Percentiles) == 0 {
		return fmt.Errorf("%w: percentiles must not be empty", ErrInvalidConfig)
	}
	for _, p := range c.Percentiles {
		if p <= 0 || p >= 100 {
			return fmt.Errorf("%w: percentile %d outside (0, 100)", ErrInvalidConfig, p)
		}
	}
	return nil
}

// FitOptions returns the fitter settings carried by c. The collapse
// policy must already be valid.
func (c *Config) FitOptions() []gmm.Option {
	policy, _ := gmm.ParseCollapsePolicy(c.CollapsePolicy)
	return []gmm.Option{
		gmm.WithMaxIterations(c.MaxIterations),
		gmm.WithTolerance(c.Tolerance),
		gmm.WithVarianceFloor(c.VarianceFloor),
		gmm.WithCollapsePolicy(policy),
		gmm.WithRestarts(c.Restarts),
	}
}
