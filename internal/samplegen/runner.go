package samplegen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/scoredist/internal/domain/model"
	"github.com/okian/scoredist/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run checks the service, submits cfg.Samples generated samples with
// cfg.Workers submitters and logs the selected models.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Named("samplegen")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting sample run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("components", len(cfg.Mixture)),
		logger.Int("size", cfg.Size),
		logger.Int("samples", cfg.Samples),
		logger.Uint64("seed", cfg.Seed),
		logger.Int("workers", cfg.Workers))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	results := submit(ctx, cfg, client)

	for _, r := range results {
		stats.Submitted++
		if r.Analysis == nil {
			stats.Failed++
			log.Warn(ctx, "analysis failed", logger.Int("index", r.Index), logger.String("error", r.Err))
			continue
		}
		stats.Successful++
		if r.Analysis.Components == len(cfg.Mixture) {
			stats.Recovered++
		}
		fields := []logger.Field{
			logger.Int("index", r.Index),
			logger.String("id", r.Analysis.ID),
			logger.Int("components", r.Analysis.Components),
			logger.Float64("aic", r.Analysis.AIC),
			logger.String("state", r.Analysis.State),
		}
		if cfg.Verbose {
			log.Info(ctx, "analysis", append(fields, logger.Any("mixture", r.Analysis.Mixture))...)
		} else {
			log.Debug(ctx, "analysis", fields...)
		}
	}

	if cfg.OutputFile != "" {
		if err := saveResults(cfg.OutputFile, results); err != nil {
			log.Warn(ctx, "failed to save results", logger.Error(err))
		} else {
			log.Info(ctx, "results saved", logger.String("file", cfg.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("run interrupted: %w", err)
	}
	return stats, nil
}

// submit fans samples out to cfg.Workers goroutines. Results keep the
// sample order.
func submit(ctx context.Context, cfg *Config, client *Client) []Result {
	results := make([]Result, cfg.Samples)
	indexes := make(chan int, cfg.Workers*2)

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = submitOne(ctx, cfg, client, i)
			}
		}()
	}

	go func() {
		defer close(indexes)
		for i := 0; i < cfg.Samples; i++ {
			select {
			case <-ctx.Done():
				return
			case indexes <- i:
			}
		}
	}()

	wg.Wait()

	// Samples never handed out are reported as failed.
	for i := range results {
		if results[i].Sample == nil && results[i].Err == "" {
			results[i] = Result{Index: i, Seed: cfg.Seed + uint64(i), Err: context.Canceled.Error()}
		}
	}
	return results
}

func submitOne(ctx context.Context, cfg *Config, client *Client, i int) Result {
	seed := cfg.Seed + uint64(i)
	r := Result{Index: i, Seed: seed, Sample: Generate(cfg.Mixture, cfg.Size, seed)}

	req := model.AnalysisRequest{Sample: r.Sample, MaxComponents: cfg.MaxComponents, Seed: &seed}
	a, err := client.Analyze(ctx, req)
	if err != nil {
		r.Err = err.Error()
		return r
	}
	r.Analysis = a
	return r
}

func saveResults(filename string, results []Result) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var recoveryRate float64
	if stats.Successful > 0 {
		recoveryRate = float64(stats.Recovered) / float64(stats.Successful) * 100
	}
	log.Info(ctx, "final statistics",
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
		logger.Int("recovered", stats.Recovered),
		logger.Float64("recoveryRate", recoveryRate),
		logger.Duration("duration", stats.Duration))
}
