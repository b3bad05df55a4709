package service

import (
	"github.com/okian/scoredist/internal/domain/gmm"
	"github.com/okian/scoredist/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of fitting goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the fit job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithCacheSize sets the number of analyses kept in the fingerprint cache.
func WithCacheSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.cacheSize = size
		}
	}
}

// WithStoreSize sets how many analyses the store retains.
func WithStoreSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.storeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFitOptions configures the EM fitter shared by all workers.
func WithFitOptions(opts ...gmm.Option) Option {
	return func(s *Service) {
		s.fitOptions = append(s.fitOptions, opts...)
	}
}

// WithMaxComponents sets the default and upper bound of candidate component counts.
func WithMaxComponents(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxComponents = n
		}
	}
}

// WithGridStep sets the spacing of the percentile and density grids.
func WithGridStep(step float64) Option {
	return func(s *Service) {
		if step > 0 {
			s.gridStep = step
		}
	}
}

// WithPercentiles sets the percentiles reported with each analysis.
func WithPercentiles(ps []int) Option {
	return func(s *Service) {
		if len(ps) > 0 {
			s.percentiles = append([]int(nil), ps...)
		}
	}
}

// WithSeed sets the seed used when a request does not carry one.
func WithSeed(seed uint64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithMaxSampleSize rejects samples with more observations than n.
func WithMaxSampleSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSampleSize = n
		}
	}
}
