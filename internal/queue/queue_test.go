package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/actocrawler/config"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestQueueStartsTasksInFIFOOrder(t *testing.T) {
	t.Parallel()

	q := New("example", config.QueueRule{Pattern: "example", MaxConcurrency: 1})

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := range 5 {
		wg.Add(1)
		q.Schedule(context.Background(), func(context.Context) {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			time.Sleep(time.Millisecond)
		})
	}
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("expected start order 0..4, got %v", order)
		}
	}
}

func TestQueueConcurrencyBound(t *testing.T) {
	t.Parallel()

	const limit = 3
	q := New("example", config.QueueRule{Pattern: "example", MaxConcurrency: limit})

	var (
		current atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)
	for range 20 {
		wg.Add(1)
		q.Schedule(context.Background(), func(context.Context) {
			defer wg.Done()
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		})
	}

	if w := q.Waiting(); w == 0 {
		t.Error("expected held tasks while the queue is full")
	}
	wg.Wait()

	if p := peak.Load(); p > limit {
		t.Errorf("expected at most %d concurrent tasks, observed %d", limit, p)
	}
	waitFor(t, func() bool { return q.Running() == 0 })
}

func TestQueueDropsCancelledHeldTask(t *testing.T) {
	t.Parallel()

	q := New("example", config.QueueRule{Pattern: "example", MaxConcurrency: 1})

	release := make(chan struct{})
	q.Schedule(context.Background(), func(context.Context) { <-release })

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	q.Schedule(ctx, func(context.Context) { ran.Store(true) })

	if q.Waiting() != 1 {
		t.Fatalf("expected one held task, got %d", q.Waiting())
	}

	cancel()
	close(release)

	waitFor(t, func() bool { return q.Running() == 0 })
	if ran.Load() {
		t.Error("cancelled task should not run")
	}
}

func TestQueueDelay(t *testing.T) {
	t.Parallel()

	t.Run("fixed delay is applied before the task", func(t *testing.T) {
		t.Parallel()
		q := New("example", config.QueueRule{
			Pattern:        "example",
			MaxConcurrency: 1,
			Delay:          config.FixedDelay(30 * time.Millisecond),
		})

		start := time.Now()
		done := make(chan time.Duration, 1)
		q.Schedule(context.Background(), func(context.Context) { done <- time.Since(start) })

		if elapsed := <-done; elapsed < 30*time.Millisecond {
			t.Errorf("expected task to start after 30ms, started after %v", elapsed)
		}
	})

	t.Run("cancellation during delay aborts the task", func(t *testing.T) {
		t.Parallel()
		q := New("example", config.QueueRule{
			Pattern:        "example",
			MaxConcurrency: 1,
			Delay:          config.FixedDelay(time.Hour),
		})

		ctx, cancel := context.WithCancel(context.Background())
		var ran atomic.Bool
		q.Schedule(ctx, func(context.Context) { ran.Store(true) })
		cancel()

		waitFor(t, func() bool { return q.Running() == 0 })
		if ran.Load() {
			t.Error("task should not run after cancellation")
		}
	})
}

func TestQueueRateLimit(t *testing.T) {
	t.Parallel()

	q := New("example", config.QueueRule{
		Pattern:           "example",
		MaxConcurrency:    10,
		RequestsPerSecond: 20,
	})
	if q.limiter == nil {
		t.Fatal("expected a limiter for a positive rate")
	}

	var wg sync.WaitGroup
	start := time.Now()
	for range 22 {
		wg.Add(1)
		q.Schedule(context.Background(), func(context.Context) { wg.Done() })
	}
	wg.Wait()

	// The burst of 20 is free, the remaining two need about 100ms of tokens.
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("expected the rate limit to delay tasks, finished in %v", elapsed)
	}
}

func TestUnboundedQueue(t *testing.T) {
	t.Parallel()

	q := Unbounded()
	if q.Key() != DefaultKey || q.Limit() != 0 {
		t.Fatalf("unexpected default queue: key=%q limit=%d", q.Key(), q.Limit())
	}

	const n = 10
	var started atomic.Int32
	release := make(chan struct{})
	for range n {
		q.Schedule(context.Background(), func(context.Context) {
			started.Add(1)
			<-release
		})
	}

	waitFor(t, func() bool { return started.Load() == n })
	if q.Waiting() != 0 {
		t.Errorf("unbounded queue should not hold tasks, holding %d", q.Waiting())
	}
	close(release)
	waitFor(t, func() bool { return q.Running() == 0 })
}
