// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/trajguard/internal/domain/dedupe"
	"github.com/okian/trajguard/internal/domain/model"
)

const (
	defaultMaxSamples  = 20_000
	defaultRecentLimit = 20
	maxRecentLimit     = 500
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes a trajectory for replay. Returns false on backpressure.
	Enqueue(ctx context.Context, traj model.Trajectory) bool

	// Result returns the stored result of a trial.
	Result(ctx context.Context, trialID string) (model.Result, error)

	// Recent returns up to n results, newest first.
	Recent(ctx context.Context, n int) ([]model.Result, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	trialsHandler *TrialsHandler
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxSamples caps the number of samples accepted per trajectory.
func WithMaxSamples(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.trialsHandler.maxSamples = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		trialsHandler: NewTrialsHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/trials", MetricsMiddleware(s.trialsHandler.HandleTrials, "trials"))
	mux.HandleFunc("/trials/", MetricsMiddleware(s.trialsHandler.HandleGetTrial, "trial"))
}

type ackResponse struct {
	Status    string `json:"status"`
	TrialID   string `json:"trial_id"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
