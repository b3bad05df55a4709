// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	fitqueue "github.com/okian/scoredist/internal/adapters/mq/queue"
	workerpool "github.com/okian/scoredist/internal/adapters/mq/worker"
	"github.com/okian/scoredist/internal/adapters/repository"
	"github.com/okian/scoredist/internal/domain/cache"
	"github.com/okian/scoredist/internal/domain/gmm"
	"github.com/okian/scoredist/internal/domain/model"
	"github.com/okian/scoredist/internal/domain/types"
	"github.com/okian/scoredist/pkg/logger"
	"github.com/okian/scoredist/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize     = 1024
	defaultCacheSize     = 1024
	defaultStoreSize     = 10_000
	defaultMaxSampleSize = 100_000
)

// Service fits and stores mixture analyses. Candidate fits of one analysis
// run concurrently on the worker pool.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	cache    cache.Cache
	jobs     fitqueue.Queue
	fitter   *gmm.Fitter
	workers  *workerpool.Pool
	poolDone context.CancelFunc

	workerCount   int
	queueSize     int
	cacheSize     int
	storeSize     int
	maxComponents int
	maxSampleSize int
	gridStep      float64
	percentiles   []int
	seed          uint64
	fitOptions    []gmm.Option

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU(),
		queueSize:     defaultQueueSize,
		cacheSize:     defaultCacheSize,
		storeSize:     defaultStoreSize,
		maxComponents: gmm.DefaultMaxComponents,
		maxSampleSize: defaultMaxSampleSize,
		gridStep:      gmm.DefaultGridStep,
		percentiles:   append([]int(nil), gmm.DefaultPercentiles...),
		seed:          gmm.DefaultSeed,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	analyses, err := cache.NewLRU(cache.WithCapacity(s.cacheSize))
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	s.cache = analyses

	s.store = repository.NewMemoryStore(ctx, repository.WithCapacity(s.storeSize))
	s.jobs = fitqueue.NewInMemoryQueue(fitqueue.WithCapacity(s.queueSize))
	s.fitter = gmm.NewFitter(append([]gmm.Option{gmm.WithLogger(s.logger.Named("fitter"))}, s.fitOptions...)...)

	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.poolDone = cancel
	s.workers = workerpool.NewPool(s.workerCount, s.jobs, s.fitter)
	s.workers.Start(poolCtx)

	s.started = true
	s.logger.Info(ctx, "mixture service started",
		logger.Int("workers", s.workers.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("maxComponents", s.maxComponents),
		logger.String("fitter", s.fitter.Settings()),
	)
	return nil
}

// Stop drains the worker pool and releases the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()

	if err := s.workers.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.poolDone()

	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(ctx, "mixture service stopped")
}

// Analyze selects a mixture for the request's sample. Identical requests
// are answered from the cache.
func (s *Service) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, model.ErrNotStarted
	}

	sample := req.Sample
	if err := gmm.ValidateSample(sample); err != nil {
		return nil, err
	}
	if len(sample) > s.maxSampleSize {
		return nil, fmt.Errorf("%w: %d > %d", model.ErrSampleTooLarge, len(sample), s.maxSampleSize)
	}

	maxN := s.maxComponents
	if req.MaxComponents != 0 {
		if req.MaxComponents < 1 || req.MaxComponents > s.maxComponents {
			return nil, fmt.Errorf("%w: max_components %d outside [1,%d]", gmm.ErrInvalidComponentCount, req.MaxComponents, s.maxComponents)
		}
		maxN = req.MaxComponents
	}
	seed := s.seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	key := cache.Fingerprint(sample, seed, maxN, s.fitter.Settings())
	if cached, ok := s.cache.Get(ctx, key); ok {
		// The store is bounded independently of the cache; only hand out
		// IDs that can still be fetched.
		if _, err := s.store.Get(ctx, cached.ID); err == nil {
			s.logger.Debug(ctx, "analysis served from cache", logger.String("id", cached.ID))
			return cached, nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("check cached analysis: %w", err)
		}
		s.logger.Debug(ctx, "cached analysis evicted from store", logger.String("id", cached.ID))
	}

	start := time.Now()
	id := uuid.NewString()

	sel, err := s.selectModel(ctx, id, sample, maxN, seed)
	if err != nil {
		return nil, err
	}

	a, err := s.buildAnalysis(id, key, seed, sample, sel)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	s.cache.Add(ctx, key, a)

	elapsed := time.Since(start)
	metrics.RecordSelection(a.Components, a.AIC, float64(elapsed.Microseconds())/1000)
	metrics.UpdateStoredAnalyses(s.store.Count(ctx))
	s.logger.Info(ctx, "analysis completed",
		logger.String("id", a.ID),
		logger.Int("sampleSize", len(sample)),
		logger.Int("components", a.Components),
		logger.Float64("aic", a.AIC),
		logger.String("state", a.State),
		logger.Duration("elapsed", elapsed),
	)
	return a, nil
}

// selectModel fans every candidate out to the worker pool and picks the
// lowest AIC once all have replied.
func (s *Service) selectModel(ctx context.Context, id string, sample []float64, maxN int, seed uint64) (gmm.Selection, error) {
	replies := make(chan model.FitOutcome, maxN)
	for n := 1; n <= maxN; n++ {
		job := model.FitJob{AnalysisID: id, Sample: sample, Components: n, Seed: seed, Reply: replies}
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			if errors.Is(err, fitqueue.ErrFull) || errors.Is(err, fitqueue.ErrClosed) {
				return gmm.Selection{}, fmt.Errorf("%w: %w", model.ErrBackpressure, err)
			}
			return gmm.Selection{}, err
		}
	}

	candidates := make([]gmm.Candidate, 0, maxN)
	for len(candidates) < maxN {
		select {
		case <-ctx.Done():
			return gmm.Selection{}, fmt.Errorf("await candidate fits: %w", ctx.Err())
		case out := <-replies:
			if out.Err != nil && !errors.Is(out.Err, gmm.ErrComponentCollapse) {
				return gmm.Selection{}, fmt.Errorf("fit %d components: %w", out.Components, out.Err)
			}
			candidates = append(candidates, gmm.NewCandidate(out.Components, out.Fit, out.Err))
		}
	}
	return gmm.Choose(candidates)
}

func (s *Service) buildAnalysis(id, key string, seed uint64, sample []float64, sel gmm.Selection) (*model.Analysis, error) {
	best := sel.Best
	m := best.Fit.Model
	lo, hi := floats.Min(sample), floats.Max(sample)

	a := &model.Analysis{
		ID:            id,
		CreatedAt:     time.Now().UTC(),
		Fingerprint:   key,
		Seed:          seed,
		Components:    best.Components,
		AIC:           best.AIC,
		LogLikelihood: best.Fit.LogLikelihood,
		State:         best.Fit.State.String(),
		Iterations:    best.Fit.Iterations,
		Summary:       summarize(sample),
		Model:         m,
	}

	weights, comps := m.Weights(), m.Components()
	for k, c := range comps {
		a.Mixture = append(a.Mixture, types.ComponentView{
			Mean:     c.Mean,
			Variance: c.Variance,
			StdDev:   c.StdDev(),
			Weight:   weights[k],
		})
	}

	for _, c := range sel.Candidates {
		score := types.CandidateScore{Components: c.Components}
		if c.Usable() {
			score.AIC = c.AIC
			score.LogLikelihood = c.Fit.LogLikelihood
			score.State = c.Fit.State.String()
			score.Iterations = c.Fit.Iterations
		} else if c.Err != nil {
			score.Error = c.Err.Error()
		}
		a.Candidates = append(a.Candidates, score)
	}

	// Wide samples get a coarser grid instead of failing the analysis.
	a.GridStep = gmm.GridStepFor(lo, hi, s.gridStep)
	grid, err := gmm.DensityGrid(m, lo, hi, a.GridStep)
	if err != nil {
		return nil, fmt.Errorf("density grid: %w", err)
	}
	for _, p := range s.percentiles {
		v, err := grid.Percentile(p)
		switch {
		case errors.Is(err, gmm.ErrPercentileOutOfRange):
			a.UnreachablePercentiles = append(a.UnreachablePercentiles, p)
		case err != nil:
			return nil, fmt.Errorf("percentile %d: %w", p, err)
		default:
			a.Percentiles = append(a.Percentiles, types.PercentileMarker{Percentile: p, Value: v})
		}
	}
	return a, nil
}

func summarize(sample []float64) types.Summary {
	mean, variance := stat.PopMeanVariance(sample, nil)
	return types.Summary{
		Count:    len(sample),
		Min:      floats.Min(sample),
		Max:      floats.Max(sample),
		Mean:     mean,
		Variance: variance,
		StdDev:   math.Sqrt(variance),
	}
}

// Get returns a stored analysis.
func (s *Service) Get(ctx context.Context, id string) (*model.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, model.ErrNotStarted
	}
	return s.store.Get(ctx, id)
}

// Recent returns up to limit analyses, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]*model.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, model.ErrNotStarted
	}
	return s.store.Recent(ctx, limit)
}

// Density returns the fitted density of an analysis over its sample range,
// scaled by the sample size so it overlays a unit-width histogram. A zero
// step uses the step the analysis was built with.
func (s *Service) Density(ctx context.Context, id string, step float64) ([]types.DensityPoint, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if step == 0 {
		step = a.GridStep
	}

	grid, err := gmm.DensityGrid(a.Model, a.Summary.Min, a.Summary.Max, step)
	if err != nil {
		return nil, err
	}
	scale := float64(a.Summary.Count)
	points := make([]types.DensityPoint, len(grid.X))
	for i, x := range grid.X {
		points[i] = types.DensityPoint{X: x, Density: grid.Density[i] * scale}
	}
	return points, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"maxComponents": s.maxComponents,
		"gridStep":      s.gridStep,
	}

	if s.started {
		ctx := context.Background()
		queueLen := s.jobs.Len(ctx)
		stored := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["storedAnalyses"] = stored
		stats["cachedAnalyses"] = s.cache.Len()
		stats["collapsePolicy"] = s.fitter.Policy().String()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateStoredAnalyses(stored)
	}

	return stats
}
