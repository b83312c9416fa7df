package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/trajguard/internal/domain/model"
)

// bytesPerSample bounds the request body: a JSON sample rarely exceeds it.
const bytesPerSample = 128

// TrialsHandler accepts recorded trajectories and serves their results.
type TrialsHandler struct {
	deps       Dependencies
	maxSamples int
}

// NewTrialsHandler creates a new trials handler.
func NewTrialsHandler(deps Dependencies) *TrialsHandler {
	return &TrialsHandler{deps: deps, maxSamples: defaultMaxSamples}
}

// trialRequest is the body of POST /trials.
type trialRequest struct {
	TrialID string         `json:"trial_id"`
	Subject string         `json:"subject"`
	Target  *float64       `json:"target"`
	T0      *float64       `json:"t0"`
	Samples []model.Sample `json:"samples"`
}

func (req *trialRequest) validate(maxSamples int) error {
	switch {
	case strings.TrimSpace(req.TrialID) == "":
		return errors.New("missing trial_id")
	case len(req.Samples) == 0:
		return errors.New("missing samples")
	case len(req.Samples) > maxSamples:
		return fmt.Errorf("%w: %d samples, limit %d", ErrTooLarge, len(req.Samples), maxSamples)
	}
	if req.T0 != nil && !finite(*req.T0) {
		return errors.New("t0 must be finite")
	}
	if req.Target != nil && !finite(*req.Target) {
		return errors.New("target must be finite")
	}
	for i, s := range req.Samples {
		if !finite(s.X) || !finite(s.Y) || !finite(s.T) {
			return fmt.Errorf("sample %d is not finite", i)
		}
		if i > 0 && s.T < req.Samples[i-1].T {
			return fmt.Errorf("sample %d goes back in time (%v < %v)", i, s.T, req.Samples[i-1].T)
		}
	}
	if req.T0 != nil && req.Samples[0].T < *req.T0 {
		return errors.New("first sample precedes t0")
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// HandleTrials handles POST /trials (submit) and GET /trials (recent results).
func (h *TrialsHandler) HandleTrials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleRecent(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *TrialsHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_trial"

	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxSamples)*bytesPerSample+4096)
	var req trialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrTooLarge, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(h.maxSamples); err != nil {
		if errors.Is(err, ErrTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if h.deps.SeenAndRecord(r.Context(), req.TrialID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", TrialID: req.TrialID, Duplicate: true})
		return
	}

	traj := model.Trajectory{
		TrialID: req.TrialID,
		Subject: req.Subject,
		Target:  req.Target,
		T0:      req.T0,
		Samples: req.Samples,
	}
	if ok := h.deps.Enqueue(r.Context(), traj); !ok {
		// Let the client retry the same trial id.
		h.deps.Unrecord(r.Context(), req.TrialID)
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", TrialID: req.TrialID})
}

func (h *TrialsHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	const op = "api.recent_trials"

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRecentLimit {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, fmt.Errorf("limit must be within 1-%d", maxRecentLimit)))
			return
		}
		limit = n
	}
	results, err := h.deps.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// HandleGetTrial handles GET /trials/{trial_id}.
func (h *TrialsHandler) HandleGetTrial(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_trial"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/trials/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	res, err := h.deps.Result(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
