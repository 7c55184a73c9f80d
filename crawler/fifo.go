package crawler

import (
	"context"
	"sync"
)

// fifo is an unbounded multi-producer queue. push never blocks.
type fifo[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{}
}

func newFIFO[T any]() *fifo[T] {
	return &fifo[T]{signal: make(chan struct{}, 1)}
}

// push appends v, reporting false if the queue is closed.
func (f *fifo[T]) push(v T) bool {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false
	}
	f.items = append(f.items, v)
	f.mu.Unlock()
	f.notify()
	return true
}

// close rejects further pushes. Items already queued can still be popped.
func (f *fifo[T]) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.notify()
}

func (f *fifo[T]) notify() {
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// pop blocks until an item is available. It returns false once the queue is
// closed and drained, or when ctx is done.
func (f *fifo[T]) pop(ctx context.Context) (T, bool) {
	for {
		f.mu.Lock()
		if len(f.items) > 0 {
			v := f.items[0]
			var zero T
			f.items[0] = zero
			f.items = f.items[1:]
			f.mu.Unlock()
			return v, true
		}
		closed := f.closed
		f.mu.Unlock()

		if closed {
			var zero T
			return zero, false
		}

		select {
		case <-f.signal:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}
