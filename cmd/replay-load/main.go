package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/trajguard/internal/loadgen"
	"github.com/okian/trajguard/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumTrials = 1000
	defaultWorkers   = 2 // multiplier for runtime.NumCPU()
	defaultTimeout   = 30 * time.Second
	defaultSettle    = 30 * time.Second
	defaultRunLimit  = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numTrials  = flag.Int("trials", defaultNumTrials, "Number of trajectories to generate and submit")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", defaultSettle, "How long to wait for results")
		seed       = flag.Uint64("seed", 1, "Seed of the trajectory generator")
		outputFile = flag.String("output", "", "Output file for the generated trajectories")
		logFile    = flag.String("log", "", "Log file for run output (default: replay_load_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	log, closeLog, err := loadgen.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunLimit)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:    *baseURL,
		NumTrials:  *numTrials,
		Workers:    max(*workers, 1),
		Timeout:    *timeout,
		Settle:     *settle,
		Seed:       *seed,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	stats, err := loadgen.Run(ctx, log, cfg)
	if err != nil {
		log.Error(ctx, "load run failed", logger.Error(err))
		os.Exit(1)
	}
	if stats.ResultsMissing > 0 {
		log.Warn(ctx, "some trials have no result", logger.Int("missing", stats.ResultsMissing))
	}
}
