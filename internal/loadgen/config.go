package loadgen

import (
	"time"

	"github.com/okian/trajguard/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumTrials  int           // Number of trajectories to generate
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Settle     time.Duration // How long to wait for results
	Seed       uint64        // Seed of the trajectory generator
	OutputFile string        // Output file for trajectories
	LogFile    string        // Log file for run output
	Verbose    bool          // Enable verbose logging
}

// Trial is a generated trajectory and the outcome the default service
// configuration should produce for it.
type Trial struct {
	Kind       Kind             `json:"kind"`
	Expected   model.Outcome    `json:"expected"`
	Trajectory model.Trajectory `json:"trajectory"`
}

// AckResponse represents the response from trial submission.
type AckResponse struct {
	Status    string `json:"status"`
	TrialID   string `json:"trial_id"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds run statistics.
type Stats struct {
	TrialsGenerated  int
	TrialsSubmitted  int
	TrialsAccepted   int
	TrialsDuplicate  int
	TrialsRejected   int
	ResultsRetrieved int
	ResultsMatched   int
	ResultsMissing   int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
