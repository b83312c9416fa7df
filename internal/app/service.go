// Package service wires the trajectory replay components together and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/trajguard/internal/adapters/http/api"
	trialqueue "github.com/okian/trajguard/internal/adapters/mq/queue"
	workerpool "github.com/okian/trajguard/internal/adapters/mq/worker"
	"github.com/okian/trajguard/internal/adapters/repository"
	"github.com/okian/trajguard/internal/config"
	"github.com/okian/trajguard/internal/domain/dedupe"
	"github.com/okian/trajguard/internal/domain/model"
	"github.com/okian/trajguard/pkg/logger"
	"github.com/okian/trajguard/pkg/metrics"
)

const defaultShutdownTimeout = 10 * time.Second

// ErrNotStarted is returned by operations that need the running components.
var ErrNotStarted = errors.New("service not started")

// Service owns the deduper, queue, worker pool and result store.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	store      *repository.MemoryStore
	deduper    dedupe.Deduper
	trialQueue *trialqueue.InMemoryQueue
	workerPool *workerpool.Pool
	builder    *PipelineBuilder

	workerCount int
	queueSize   int
	dedupeSize  int

	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration used to build pipelines. Worker, queue
// and dedupe sizes are taken from it unless overridden by later options.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		s.cfg = cfg
		if cfg.WorkerCount > 0 {
			s.workerCount = cfg.WorkerCount
		}
		if cfg.QueueSize > 0 {
			s.queueSize = cfg.QueueSize
		}
		if cfg.DedupeSize > 0 {
			s.dedupeSize = cfg.DedupeSize
		}
	}
}

// WithWorkerCount sets the number of replay workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued trajectories.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many trial ids the deduper remembers.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:         config.New(context.Background()),
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  100_000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components and starts the worker pool. Calling Start on a
// running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting trajectory service...")

	builder, err := NewPipelineBuilder(s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	s.builder = builder

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})

	s.store = repository.NewMemoryStore(runCtx)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.trialQueue = trialqueue.NewInMemoryQueue(trialqueue.WithCapacity(s.queueSize))

	factory := func() (workerpool.Replayer, error) {
		p, err := builder.Build()
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	s.workerPool = workerpool.NewPool(s.workerCount, s.trialQueue, factory, s.store,
		workerpool.WithPoolLogger(s.logger),
	)
	s.workerPool.Start(runCtx)
	go s.pollRuntime(runCtx)

	s.started = true
	s.logger.Info(ctx, "trajectory service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
	)
	return nil
}

// pollRuntime refreshes the process gauges until ctx is done.
func (s *Service) pollRuntime(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(metrics.Default().RefreshInterval())
	defer ticker.Stop()

	var mem runtime.MemStats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runtime.ReadMemStats(&mem)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
			metrics.UpdateSystemMemoryUsage(mem.Alloc)
		}
	}
}

// Stop drains the queue, stops the workers and closes the store. Queued
// trajectories that are not replayed before ctx expires are dropped.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping trajectory service...")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()
	}

	err := s.workerPool.Shutdown(ctx)
	if err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	s.store.Flush()
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	s.cancel()
	<-s.done

	s.started = false
	s.logger.Info(ctx, "trajectory service stopped",
		logger.Int("results", s.store.Count(ctx)),
	)
	return err
}

// SeenAndRecord reports whether id was submitted before and records it if
// not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordTrialDuplicate()
	}
	return seen
}

// Unrecord forgets id so a rejected submission can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the number of remembered trial ids.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue submits a trajectory for replay. It returns false when the queue is
// full or closed.
func (s *Service) Enqueue(ctx context.Context, traj model.Trajectory) bool { //nolint:gocritic // hugeParam: forwarded by value to the queue
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false
	}

	s.logger.Debug(ctx, "enqueueing trajectory",
		logger.String("trial_id", traj.TrialID),
		logger.Int("samples", len(traj.Samples)),
	)
	return s.trialQueue.Enqueue(ctx, traj)
}

// Result returns the stored result of a trial. Unknown ids wrap
// api.ErrNotFound.
func (s *Service) Result(ctx context.Context, trialID string) (model.Result, error) {
	if s.store == nil {
		return model.Result{}, ErrNotStarted
	}
	res, err := s.store.Get(ctx, trialID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Result{}, fmt.Errorf("%w: %w", api.ErrNotFound, err)
	}
	return res, err
}

// Recent returns up to n results, newest first.
func (s *Service) Recent(ctx context.Context, n int) ([]model.Result, error) {
	if s.store == nil {
		return nil, ErrNotStarted
	}
	return s.store.Recent(ctx, n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":      s.started,
		"worker_count": s.workerCount,
		"queue_size":   s.queueSize,
		"dedupe_size":  s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	queueLen := s.trialQueue.Len(ctx)
	st := s.store.Stats(ctx)
	stats["queue_length"] = queueLen
	stats["processed"] = s.workerPool.Processed()
	stats["seen_ids"] = s.deduper.Size()
	stats["results"] = st.Total
	stats["by_outcome"] = st.ByOutcome
	stats["by_code"] = st.ByCode
	stats["mean_abs_endpoint_error"] = st.MeanAbsEndpointError

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateWorkerCount(s.workerCount)
	return stats
}
