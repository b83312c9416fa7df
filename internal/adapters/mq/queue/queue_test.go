package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/trajguard/internal/domain/model"
)

func trajectory(id string) model.Trajectory {
	return model.Trajectory{TrialID: id, Samples: []model.Sample{{X: 0, Y: 0, T: 0}, {X: 0, Y: 10, T: 0.1}}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if q.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Capacity())
	}

	if !q.Enqueue(ctx, trajectory("trial-1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	item := <-q.Dequeue(ctx)
	if item.TrialID != "trial-1" {
		t.Errorf("expected trial-1, got %v", item.TrialID)
	}
	if len(item.Samples) != 2 {
		t.Errorf("expected 2 samples, got %d", len(item.Samples))
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"trial-1", "trial-2"} {
		if !q.Enqueue(ctx, trajectory(id)) {
			t.Errorf("expected enqueue of %s to succeed", id)
		}
	}
	if q.Enqueue(ctx, trajectory("trial-3")) {
		t.Error("expected enqueue to fail when the queue is full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_DefaultCapacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(0))
	if q.Capacity() != defaultQueueCapacity {
		t.Errorf("expected default capacity %d, got %d", defaultQueueCapacity, q.Capacity())
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, trajectory("trial-1")) {
		t.Error("expected enqueue with a cancelled context to fail")
	}

	select {
	case _, ok := <-q.Dequeue(ctx):
		if ok {
			t.Error("expected no item from a cancelled dequeue")
		}
	case <-time.After(time.Second):
		t.Error("expected dequeue channel to close")
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	q.Enqueue(ctx, trajectory("trial-1"))
	if err := q.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got %v", err)
	}
	if q.Enqueue(ctx, trajectory("trial-2")) {
		t.Error("expected enqueue after close to fail")
	}

	// Items queued before Close are still delivered.
	var got []string
	for item := range q.Dequeue(ctx) {
		got = append(got, item.TrialID)
	}
	if len(got) != 1 || got[0] != "trial-1" {
		t.Errorf("expected [trial-1], got %v", got)
	}
}

func TestInMemoryQueue_ConcurrentConsumers(t *testing.T) {
	const n = 200
	q := NewInMemoryQueue(WithCapacity(n))
	ctx := context.Background()

	for i := 0; i < n; i++ {
		if !q.Enqueue(ctx, trajectory(fmt.Sprintf("trial-%d", i))) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	_ = q.Close()

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range q.Dequeue(ctx) {
				mu.Lock()
				seen[item.TrialID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("expected %d distinct trials, got %d", n, len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("%s delivered %d times", id, count)
		}
	}
}
