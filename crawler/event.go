package crawler

import (
	"context"
	"fmt"
)

// EventKind distinguishes the two crawl events.
type EventKind int

const (
	// WillCrawl is emitted right before the crawl function runs.
	WillCrawl EventKind = iota + 1

	// DidCrawl is emitted once a request has a terminal result.
	DidCrawl
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case WillCrawl:
		return "willCrawl"
	case DidCrawl:
		return "didCrawl"
	default:
		return "unknown"
	}
}

// Event is one entry of the crawl event stream.
// Output and Err are only set for DidCrawl; exactly one of them is meaningful.
type Event[O, I any] struct {
	Kind    EventKind
	Request Request[I]
	Output  O
	Err     error
}

// Succeeded reports whether the event is a successful DidCrawl.
func (e Event[O, I]) Succeeded() bool {
	return e.Kind == DidCrawl && e.Err == nil
}

// String formats the event as a single log line.
func (e Event[O, I]) String() string {
	prefix := fmt.Sprintf("[%d] [d=%d] %s", e.Request.Order, e.Request.Depth, e.Request.String())
	switch {
	case e.Kind == WillCrawl:
		return "Crawl : " + prefix
	case e.Err != nil:
		return fmt.Sprintf("Output: %s, error = %v", prefix, e.Err)
	default:
		return fmt.Sprintf("Output: %s, output = %v", prefix, e.Output)
	}
}

// Outputs forwards only DidCrawl events from events.
// The returned channel is closed when events is closed or ctx is done, so a
// caller that stops reading early must cancel ctx.
func Outputs[O, I any](ctx context.Context, events <-chan Event[O, I]) <-chan Event[O, I] {
	out := make(chan Event[O, I])
	go func() {
		defer close(out)
		for {
			var ev Event[O, I]
			var ok bool
			select {
			case ev, ok = <-events:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
			if ev.Kind != DidCrawl {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
