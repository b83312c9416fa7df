// Package model contains domain models passed between layers.
package model

import "time"

// Sample is one raw pointer reading in screen units with trial-relative time
// in seconds.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T float64 `json:"t"`
}

// Trajectory is a recorded trial submitted for replay.
type Trajectory struct {
	TrialID string   `json:"trial_id"` // unique id for idempotency
	Subject string   `json:"subject,omitempty"`
	Target  *float64 `json:"target,omitempty"` // expected number-line value, if any
	// T0 is the trial start; nil means the first sample time.
	T0          *float64  `json:"t0,omitempty"`
	Samples     []Sample  `json:"samples"`
	SubmittedAt time.Time `json:"-"`
}

// Start returns the trial start time.
func (t Trajectory) Start() float64 {
	if t.T0 != nil {
		return *t.T0
	}
	if len(t.Samples) > 0 {
		return t.Samples[0].T
	}
	return 0
}

// Outcome of a replayed trial.
type Outcome string

const (
	OutcomeSucceeded  Outcome = "succeeded"
	OutcomeFailed     Outcome = "failed"
	OutcomeIncomplete Outcome = "incomplete" // samples ran out before a verdict
	OutcomeAborted    Outcome = "aborted"    // contract error while replaying
)

// Result is what the replay service stores per trial.
type Result struct {
	TrialID string             `json:"trial_id"`
	Subject string             `json:"subject,omitempty"`
	Outcome Outcome            `json:"outcome"`
	Code    string             `json:"code,omitempty"`
	Message string             `json:"message,omitempty"`
	Source  string             `json:"source,omitempty"`
	Args    map[string]float64 `json:"args,omitempty"`

	Touched    bool     `json:"touched"`
	TouchValue *float64 `json:"touch_value,omitempty"`
	// Endpoint error is TouchValue minus the trajectory target.
	EndpointError *float64 `json:"endpoint_error,omitempty"`

	Frames      int       `json:"frames"`
	EndTime     float64   `json:"end_time"`
	Error       string    `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}
