package repository

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/trajguard/internal/domain/model"
	"github.com/okian/trajguard/pkg/metrics"
)

// MemoryStore is a Store backed by a map. Stats are served from a snapshot
// rebuilt in the background, so readers never wait on writers.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]model.Result
	order      []string // insertion order, oldest first
	maxResults int

	snapshotInterval time.Duration
	snapshot         atomic.Pointer[Stats]
	dirty            atomic.Bool

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs a store and starts its snapshot loop, which runs
// until ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:             make(map[string]model.Result),
		snapshotInterval: time.Second,
		stopChan:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(emptyStats())
	s.startPeriodicSnapshots(ctx)
	return s
}

func emptyStats() *Stats {
	return &Stats{ByOutcome: map[model.Outcome]int{}, ByCode: map[string]int{}}
}

func (s *MemoryStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				if s.dirty.Swap(false) {
					s.publishSnapshot()
				}
			}
		}
	}()
}

// publishSnapshot rebuilds the aggregate from the stored results.
func (s *MemoryStore) publishSnapshot() {
	st := emptyStats()
	var sumAbs float64

	s.mu.RLock()
	for _, r := range s.byID {
		st.Total++
		st.ByOutcome[r.Outcome]++
		if r.Outcome == model.OutcomeFailed && r.Code != "" {
			st.ByCode[r.Code]++
		}
		if r.EndpointError != nil {
			st.WithEndpointError++
			sumAbs += math.Abs(*r.EndpointError)
		}
	}
	s.mu.RUnlock()

	if st.WithEndpointError > 0 {
		st.MeanAbsEndpointError = sumAbs / float64(st.WithEndpointError)
	}
	s.snapshot.Store(st)
	metrics.UpdateStoredResults(st.Total)
}

// Flush publishes a fresh snapshot immediately.
func (s *MemoryStore) Flush() {
	s.dirty.Store(false)
	s.publishSnapshot()
}

// Close stops the snapshot loop.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, res model.Result) error { //nolint:gocritic // hugeParam: stored by value
	if res.TrialID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	if _, ok := s.byID[res.TrialID]; !ok {
		s.order = append(s.order, res.TrialID)
	}
	s.byID[res.TrialID] = res
	s.evictLocked()
	s.mu.Unlock()

	s.dirty.Store(true)
	return nil
}

// evictLocked drops the oldest results beyond maxResults. Must be called with
// s.mu held.
func (s *MemoryStore) evictLocked() {
	if s.maxResults <= 0 {
		return
	}
	for len(s.order) > s.maxResults {
		delete(s.byID, s.order[0])
		s.order[0] = ""
		s.order = s.order[1:]
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, trialID string) (model.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[trialID]
	if !ok {
		return model.Result{}, ErrNotFound
	}
	return r, nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(_ context.Context, n int) ([]model.Result, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.order) {
		n = len(s.order)
	}
	out := make([]model.Result, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.byID[s.order[i]])
	}
	return out, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(context.Context) Stats {
	return *s.snapshot.Load()
}

// Count implements Store.
func (s *MemoryStore) Count(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
