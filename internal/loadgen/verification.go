package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/trajguard/internal/domain/model"
	"github.com/okian/trajguard/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// ErrNoResults is returned when not a single result could be retrieved.
var ErrNoResults = errors.New("no results retrieved")

// collectResults polls the service until every trial has a result or the
// settle time runs out.
func collectResults(ctx context.Context, log logger.Logger, config *Config, trials []Trial, stats *Stats) (map[string]model.Result, error) {
	log.Info(ctx, "waiting for results", logger.String("settle", config.Settle.String()))

	client := newHTTPClient(config.Timeout)
	deadline := time.Now().Add(config.Settle)

	pending := make([]string, 0, len(trials))
	for i := range trials {
		pending = append(pending, trials[i].Trajectory.TrialID)
	}

	var mu sync.Mutex
	results := make(map[string]model.Result, len(trials))
	for len(pending) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(config.Workers)
		for _, id := range pending {
			g.Go(func() error {
				res, ok, err := fetchResult(gctx, client, config.BaseURL, id)
				if err != nil || !ok {
					return err
				}
				mu.Lock()
				results[id] = res
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return results, fmt.Errorf("fetch results: %w", err)
		}

		next := pending[:0]
		for _, id := range pending {
			if _, ok := results[id]; !ok {
				next = append(next, id)
			}
		}
		pending = next
		if len(pending) == 0 || time.Now().After(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return results, fmt.Errorf("waiting for results: %w", ctx.Err())
		case <-time.After(PollInterval):
		}
	}

	stats.ResultsRetrieved = len(results)
	stats.ResultsMissing = len(pending)
	if len(results) == 0 {
		return results, ErrNoResults
	}
	return results, nil
}

// verifyResults compares each result with the outcome its trajectory was
// shaped for. Mismatches are logged; they are expected when the service runs
// a non-default validator configuration.
func verifyResults(ctx context.Context, log logger.Logger, trials []Trial, results map[string]model.Result, stats *Stats) {
	type tally struct{ total, matched int }
	byKind := make(map[Kind]*tally, len(Kinds()))
	for _, k := range Kinds() {
		byKind[k] = &tally{}
	}

	for i := range trials {
		tr := &trials[i]
		res, ok := results[tr.Trajectory.TrialID]
		if !ok {
			continue
		}
		t := byKind[tr.Kind]
		t.total++
		if res.Outcome == tr.Expected {
			t.matched++
			stats.ResultsMatched++
			continue
		}
		log.Debug(ctx, "unexpected outcome",
			logger.String("trial_id", tr.Trajectory.TrialID),
			logger.String("kind", string(tr.Kind)),
			logger.String("expected", string(tr.Expected)),
			logger.String("outcome", string(res.Outcome)),
			logger.String("code", res.Code),
		)
	}

	for _, k := range Kinds() {
		t := byKind[k]
		log.Info(ctx, "verified kind",
			logger.String("kind", string(k)),
			logger.Int("results", t.total),
			logger.Int("matched", t.matched),
		)
	}
}
