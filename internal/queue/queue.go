package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/actocrawler/config"
)

// Task is a unit of work run by a Queue.
type Task func(ctx context.Context)

type entry struct {
	ctx  context.Context //nolint:containedctx // held tasks keep their own cancellation
	task Task
}

// Queue is a bounded-concurrency FIFO executor.
type Queue struct {
	key     string
	limit   int
	delay   config.DelayRange
	limiter *rate.Limiter

	mu      sync.Mutex
	running int
	waiting []entry
}

// New creates a queue for the rule identified by key.
// A non-positive MaxConcurrency means unbounded.
func New(key string, rule config.QueueRule) *Queue {
	q := &Queue{
		key:   key,
		limit: rule.MaxConcurrency,
		delay: rule.Delay,
	}
	if rule.RequestsPerSecond > 0 {
		burst := max(int(rule.RequestsPerSecond), 1)
		q.limiter = rate.NewLimiter(rate.Limit(rule.RequestsPerSecond), burst)
	}
	return q
}

// Unbounded creates the queue shared by hosts without a matching rule.
func Unbounded() *Queue {
	return New(DefaultKey, config.QueueRule{})
}

// Key returns the pattern this queue was created for, or DefaultKey.
func (q *Queue) Key() string {
	return q.key
}

// Limit returns the maximum concurrency, 0 when unbounded.
func (q *Queue) Limit() int {
	return max(q.limit, 0)
}

// Schedule enqueues task. It never blocks: the task either starts on a new
// goroutine or is held until a slot frees up.
func (q *Queue) Schedule(ctx context.Context, task Task) {
	e := entry{ctx: ctx, task: task}

	q.mu.Lock()
	if q.limit > 0 && q.running >= q.limit {
		q.waiting = append(q.waiting, e)
		q.mu.Unlock()
		return
	}
	q.running++
	q.mu.Unlock()

	go q.worker(e)
}

// Running returns the number of tasks holding a slot.
func (q *Queue) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Waiting returns the number of held tasks.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// worker keeps its slot and drains held tasks oldest first.
func (q *Queue) worker(e entry) {
	for {
		q.execute(e)

		q.mu.Lock()
		if len(q.waiting) == 0 {
			q.running--
			q.mu.Unlock()
			return
		}
		e = q.waiting[0]
		q.waiting[0] = entry{}
		q.waiting = q.waiting[1:]
		q.mu.Unlock()
	}
}

func (q *Queue) execute(e entry) {
	if e.ctx.Err() != nil {
		return
	}

	if d := q.delay.Sample(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-e.ctx.Done():
			timer.Stop()
			return
		}
	}

	if q.limiter != nil {
		if err := q.limiter.Wait(e.ctx); err != nil {
			return
		}
	}

	if e.ctx.Err() != nil {
		return
	}
	e.task(e.ctx)
}
