package loadgen

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/trajguard/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// SetupLogging returns a logger writing to both stdout and logFile, and a
// function closing the file. If logFile is empty, a timestamped filename is
// generated.
func SetupLogging(logFile string, verbose bool) (logger.Logger, func() error, error) {
	if logFile == "" {
		logFile = "replay_load_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log file: %w", err)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	log, err := logger.New(io.MultiWriter(os.Stdout, file), level)
	if err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log.Named("replay_load"), file.Close, nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	os.Stdout.WriteString(`Trajguard Replay Load Tool
==========================

Generates synthetic pointer trajectories, submits them to a running trajguard
service and checks every result against the outcome the trajectory was shaped
for under the default validator configuration.

Usage:
  go run ./cmd/replay-load [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -trials int
        Number of trajectories to generate and submit (default 1000)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        How long to wait for results (default 30s)
  -seed uint
        Seed of the trajectory generator (default 1)
  -output string
        Output file for the generated trajectories (default: none)
  -log string
        Log file for run output (default: replay_load_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run with default settings
  go run ./cmd/replay-load

  # Heavier run against another address
  go run ./cmd/replay-load -trials 20000 -workers 32 -url http://localhost:8080
`)
}
