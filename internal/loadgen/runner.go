package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/trajguard/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
)

// Run executes the complete load run and returns its statistics.
func Run(ctx context.Context, log logger.Logger, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting trajectory load run",
		logger.String("base_url", config.BaseURL),
		logger.Int("trials", config.NumTrials),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("verbose", config.Verbose),
	)

	if err := checkServiceHealth(ctx, log, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	trials, err := generateTrials(ctx, log, config, stats)
	if err != nil {
		return stats, fmt.Errorf("trajectory generation failed: %w", err)
	}

	if err := submitTrials(ctx, log, config, trials, stats); err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}

	results, err := collectResults(ctx, log, config, trials, stats)
	if err != nil {
		return stats, fmt.Errorf("result retrieval failed: %w", err)
	}
	verifyResults(ctx, log, trials, results, stats)

	if config.OutputFile != "" {
		if err := saveTrialsToFile(ctx, log, config.OutputFile, trials); err != nil {
			log.Warn(ctx, "failed to save trajectories to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, log logger.Logger, config *Config) error {
	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return err
	}
	// The health route serves the Prometheus exposition; any 200 is healthy.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	log.Info(ctx, "service is healthy")
	return nil
}

// saveTrialsToFile writes the generated trials as a JSON array.
func saveTrialsToFile(ctx context.Context, log logger.Logger, filename string, trials []Trial) error {
	if len(trials) == 0 {
		return fmt.Errorf("no trajectories to save")
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Error(ctx, "failed to close file", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(trials); err != nil {
		return fmt.Errorf("failed to write trajectories: %w", err)
	}
	log.Info(ctx, "trajectories saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var acceptRate, trialsPerSecond float64
	if stats.TrialsSubmitted > 0 {
		acceptRate = float64(stats.TrialsAccepted) / float64(stats.TrialsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		trialsPerSecond = float64(stats.TrialsSubmitted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.TrialsGenerated),
		logger.Int("submitted", stats.TrialsSubmitted),
		logger.Int("accepted", stats.TrialsAccepted),
		logger.Int("duplicate", stats.TrialsDuplicate),
		logger.Int("rejected", stats.TrialsRejected),
		logger.Int("results", stats.ResultsRetrieved),
		logger.Int("matched", stats.ResultsMatched),
		logger.Int("missing", stats.ResultsMissing),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("accept_rate", acceptRate),
		logger.Float64("trials_per_second", trialsPerSecond),
	)
}
