// Package worker replays queued trajectories through trial pipelines and
// stores the results.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/trajguard/internal/domain/model"
	"github.com/okian/trajguard/internal/domain/verdict"
	"github.com/okian/trajguard/pkg/logger"
	"github.com/okian/trajguard/pkg/metrics"
)

const (
	defaultMetricsInterval = 5 * time.Second
	poolShutdownTimeout    = 30 * time.Second
)

// Replayer evaluates one recorded trajectory. Implementations need not be
// safe for concurrent use; every worker owns one.
type Replayer interface {
	Replay(ctx context.Context, traj model.Trajectory) (model.Result, error)
}

// ReplayerFactory builds the replayer a worker uses for its whole life.
type ReplayerFactory func() (Replayer, error)

// Store receives replay results.
type Store interface {
	Save(ctx context.Context, res model.Result) error
}

// Queue defines how workers receive trajectories.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Trajectory
}

// Worker processes trajectories until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker without waiting for the queue to drain.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	factory ReplayerFactory
	store   Store
	name    string

	replayer Replayer
	active   *atomic.Int64 // shared with the pool
	onDone   func()

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker.
func NewInMemoryWorker(queue Queue, factory ReplayerFactory, store Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		factory:  factory,
		store:    store,
		name:     "worker",
		active:   &atomic.Int64{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case traj, ok := <-items:
			if !ok {
				return
			}
			if err := w.process(ctx, traj); err != nil {
				w.logger.Error(ctx, "error replaying trajectory",
					logger.String("trial_id", traj.TrialID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
}

// process replays one trajectory and stores the result, including aborted
// replays so callers can see why a trial has no verdict.
func (w *InMemoryWorker) process(ctx context.Context, traj model.Trajectory) error { //nolint:gocritic // hugeParam: received by value from the channel
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	start := time.Now()
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
		if w.onDone != nil {
			w.onDone()
		}
	}()

	res, replayErr := w.replay(ctx, traj)
	res.ProcessedAt = time.Now()
	metrics.RecordFrames(res.Frames, time.Since(start))
	metrics.RecordTrialOutcome(string(res.Outcome))
	if res.Outcome == model.OutcomeFailed {
		metrics.RecordValidatorFailure(res.Source, res.Code)
	}
	if res.Touched {
		metrics.RecordLineTouch()
	}
	if replayErr != nil {
		metrics.RecordWorkerError()
		if errors.Is(replayErr, verdict.ErrContract) {
			metrics.RecordContractError("trial")
		}
	}

	if err := w.store.Save(ctx, res); err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("store result of %s: %w", traj.TrialID, err)
	}
	if replayErr != nil {
		return fmt.Errorf("replay %s: %w", traj.TrialID, replayErr)
	}
	w.logger.Debug(ctx, "trial replayed",
		logger.String("trial_id", traj.TrialID),
		logger.String("outcome", string(res.Outcome)),
		logger.Int("frames", res.Frames),
	)
	return nil
}

func (w *InMemoryWorker) replay(ctx context.Context, traj model.Trajectory) (model.Result, error) { //nolint:gocritic // hugeParam
	if w.replayer == nil {
		r, err := w.factory()
		if err != nil {
			return model.Result{
				TrialID: traj.TrialID,
				Subject: traj.Subject,
				Outcome: model.OutcomeAborted,
				Error:   err.Error(),
			}, fmt.Errorf("build pipeline: %w", err)
		}
		w.replayer = r
	}
	return w.replayer.Replay(ctx, traj)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers         []*InMemoryWorker
	queue           Queue
	active          atomic.Int64
	processed       atomic.Int64
	metricsInterval time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once

	logger logger.Logger
}

// NewPool creates a worker pool. A non-positive workerCount means one worker
// per CPU.
func NewPool(workerCount int, queue Queue, factory ReplayerFactory, store Store, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers:         make([]*InMemoryWorker, workerCount),
		queue:           queue,
		metricsInterval: defaultMetricsInterval,
		shutdown:        make(chan struct{}),
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := range p.workers {
		w := NewInMemoryWorker(queue, factory, store,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
		w.active = &p.active
		w.onDone = func() { p.processed.Add(1) }
		p.workers[i] = w
	}
	p.logger = p.logger.Named("worker-pool")

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateReplayThroughput(0)

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many trajectories were handled since start.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(p.metricsInterval)
	defer ticker.Stop()

	last := p.processed.Load()
	lastAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case now := <-ticker.C:
			cur := p.processed.Load()
			if dt := now.Sub(lastAt).Seconds(); dt > 0 {
				metrics.UpdateReplayThroughput(float64(cur-last) / dt)
			}
			last, lastAt = cur, now
		}
	}
}

// Shutdown closes the queue, lets the workers drain it and waits for them.
// Workers still busy when ctx or the pool timeout expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			w.stop()
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
