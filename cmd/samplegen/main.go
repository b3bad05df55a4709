package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/scoredist/internal/samplegen"
	"github.com/okian/scoredist/pkg/logger"
)

// Default configuration constants.
const (
	defaultMixture = "30:5:0.6,75:7:0.4"
	defaultSize    = 500
	defaultSamples = 10
	defaultWorkers = 4
	defaultTimeout = 60 * time.Second
	defaultRunTime = 30 * time.Minute
)

func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:9080", "Base URL of the service")
		mixture       = flag.String("mixture", defaultMixture, "Generating mixture as mean:stddev:weight,...")
		size          = flag.Int("size", defaultSize, "Observations per sample")
		samples       = flag.Int("samples", defaultSamples, "Number of samples to submit")
		seed          = flag.Uint64("seed", 1, "Seed of the first sample")
		maxComponents = flag.Int("max-components", 0, "Forwarded as max_components (0 uses the service setting)")
		workers       = flag.Int("workers", defaultWorkers, "Number of concurrent submitters")
		timeout       = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile    = flag.String("output", "", "Write samples and analyses as JSON to this file")
		logFormat     = flag.String("log-format", "text", "Log format: text or json")
		verbose       = flag.Bool("verbose", false, "Log every analysis")
		help          = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		samplegen.ShowHelp(os.Stdout)
		return
	}

	if err := samplegen.SetupLogging(*logFormat, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTime)
	defer cancel()

	mix, err := samplegen.ParseMixture(*mixture)
	if err != nil {
		logger.Get().Fatal(ctx, "invalid mixture", logger.Error(err))
	}

	cfg := &samplegen.Config{
		BaseURL:       *baseURL,
		Mixture:       mix,
		Size:          *size,
		Samples:       *samples,
		Seed:          *seed,
		MaxComponents: *maxComponents,
		Workers:       *workers,
		Timeout:       *timeout,
		OutputFile:    *outputFile,
		Verbose:       *verbose,
	}

	stats, err := samplegen.Run(ctx, cfg)
	if err != nil {
		logger.Get().Error(ctx, "run failed", logger.Error(err))
		os.Exit(1)
	}
	if stats.Failed > 0 {
		os.Exit(1)
	}
}
