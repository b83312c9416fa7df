package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/okian/trajguard/internal/domain/model"
	"github.com/okian/trajguard/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const maxSubmitAttempts = 5

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

type submitResult int

const (
	submitAccepted submitResult = iota
	submitDuplicate
	submitBackpressure
	submitRejected
)

// submitTrials posts the trials concurrently. Trials refused with 429 are
// retried a few times before they count as rejected.
func submitTrials(ctx context.Context, log logger.Logger, config *Config, trials []Trial, stats *Stats) error {
	log.Info(ctx, "submitting trajectories", logger.Int("trials", len(trials)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/trials"

	var accepted, duplicate, rejected, submitted atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for i := range trials {
		traj := trials[i].Trajectory
		g.Go(func() error {
			res := submitWithRetry(gctx, client, url, traj)
			switch res {
			case submitAccepted:
				accepted.Add(1)
			case submitDuplicate:
				duplicate.Add(1)
			default:
				rejected.Add(1)
			}
			if n := submitted.Add(1); config.Verbose && n%100 == 0 {
				log.Debug(gctx, "progress", logger.Int("submitted", int(n)), logger.Int("total", len(trials)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("submission interrupted: %w", err)
	}

	stats.TrialsSubmitted = int(submitted.Load())
	stats.TrialsAccepted = int(accepted.Load())
	stats.TrialsDuplicate = int(duplicate.Load())
	stats.TrialsRejected = int(rejected.Load())

	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.TrialsAccepted),
		logger.Int("duplicate", stats.TrialsDuplicate),
		logger.Int("rejected", stats.TrialsRejected),
	)
	return nil
}

func submitWithRetry(ctx context.Context, client *HTTPClient, url string, traj model.Trajectory) submitResult { //nolint:gocritic // hugeParam: request body
	for attempt := 1; ; attempt++ {
		res := submitSingleTrial(ctx, client, url, traj)
		if res != submitBackpressure || attempt == maxSubmitAttempts {
			return res
		}
		select {
		case <-ctx.Done():
			return submitRejected
		case <-time.After(time.Duration(attempt) * PollInterval):
		}
	}
}

// submitSingleTrial submits one trajectory and classifies the response.
func submitSingleTrial(ctx context.Context, client *HTTPClient, url string, traj model.Trajectory) submitResult { //nolint:gocritic // hugeParam: request body
	resp, err := client.Post(ctx, url, traj)
	if err != nil {
		return submitRejected
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return submitRejected
	}

	var ack AckResponse
	_ = json.Unmarshal(body, &ack)

	switch {
	case resp.StatusCode == http.StatusAccepted:
		return submitAccepted
	case resp.StatusCode == http.StatusOK && ack.Duplicate:
		return submitDuplicate
	case resp.StatusCode == http.StatusTooManyRequests:
		return submitBackpressure
	default:
		return submitRejected
	}
}

// fetchResult returns the stored result of a trial, false while it is not
// available yet.
func fetchResult(ctx context.Context, client *HTTPClient, baseURL, trialID string) (model.Result, bool, error) {
	resp, err := client.Get(ctx, baseURL+"/trials/"+trialID)
	if err != nil {
		return model.Result{}, false, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return model.Result{}, false, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		var res model.Result
		if err := json.Unmarshal(body, &res); err != nil {
			return model.Result{}, false, fmt.Errorf("decode result of %s: %w", trialID, err)
		}
		return res, true, nil
	case http.StatusNotFound:
		return model.Result{}, false, nil
	default:
		return model.Result{}, false, fmt.Errorf("result of %s: unexpected status %d", trialID, resp.StatusCode)
	}
}
