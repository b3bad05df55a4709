package samplegen

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/scoredist/pkg/logger"
)

// SetupLogging initializes the global logger. Verbose runs log at debug.
func SetupLogging(format string, verbose bool) error {
	if err := logger.Init(logger.WithFormat(format), logger.WithOutput(os.Stderr)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `scoredist sample generator
==========================

Draws seeded samples from a Gaussian mixture, submits them to a running
scoredist service and reports which component counts were selected.

Usage:
  go run ./cmd/samplegen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -mixture string
        Generating mixture as mean:stddev:weight,... (default "30:5:0.6,75:7:0.4")
  -size int
        Observations per sample (default 500)
  -samples int
        Number of samples to submit (default 10)
  -seed uint
        Seed of the first sample (default 1)
  -max-components int
        Forwarded as max_components (default: service setting)
  -workers int
        Number of concurrent submitters (default 4)
  -timeout duration
        HTTP request timeout (default 60s)
  -output string
        Write samples and analyses as JSON to this file
  -log-format string
        text or json (default "text")
  -verbose
        Log every analysis
  -help
        Show this help message

Examples:
  go run ./cmd/samplegen -mixture "10:2:1,20:2:1,40:5:2" -samples 20
  go run ./cmd/samplegen -size 2000 -output results.json
`)
}
