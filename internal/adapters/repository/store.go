// Package repository keeps replay results in memory.
package repository

import (
	"context"

	"github.com/okian/trajguard/internal/domain/model"
)

// Stats aggregates stored results.
type Stats struct {
	Total     int                   `json:"total"`
	ByOutcome map[model.Outcome]int `json:"by_outcome"`
	// ByCode counts failed trials per verdict code.
	ByCode map[string]int `json:"by_code"`
	// MeanAbsEndpointError is over trials with a target and a touch.
	MeanAbsEndpointError float64 `json:"mean_abs_endpoint_error"`
	WithEndpointError    int     `json:"with_endpoint_error"`
}

// Store provides read/write access to replay results.
type Store interface {
	// Save stores res, replacing any earlier result of the same trial.
	Save(ctx context.Context, res model.Result) error

	// Get returns ErrNotFound if the trial is unknown.
	Get(ctx context.Context, trialID string) (model.Result, error)

	// Recent returns up to n results, newest first.
	Recent(ctx context.Context, n int) ([]model.Result, error)

	// Stats returns the latest published aggregate.
	Stats(ctx context.Context) Stats

	Count(ctx context.Context) int
}
