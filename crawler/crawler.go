package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nao1215/actocrawler/config"
	"github.com/nao1215/actocrawler/internal/queue"
)

// ErrNilCrawlFunc is returned by New when no crawl function is given.
var ErrNilCrawlFunc = errors.New("crawl function must not be nil")

// CrawlFunc processes one admitted request using the traversal dependency and
// returns the follow-up requests together with the request's output.
// A returned error ends the request's branch and is reported as a
// *CrawlFailedError.
type CrawlFunc[O, I, D any] func(ctx context.Context, req Request[I], dep D) ([]UserRequest[I], O, error)

// Crawler runs one traversal. It is not restartable: once the event stream
// has closed, a new Crawler is needed.
type Crawler[O, I any] struct {
	cfg    config.CrawlerConfig
	crawl  func(context.Context, Request[I]) ([]UserRequest[I], O, error)
	router *queue.Router
	logger *slog.Logger

	ctx    context.Context //nolint:containedctx // traversal lifetime
	cancel context.CancelFunc

	inbox  *fifo[message[O, I]]
	events *fifo[Event[O, I]]
	out    chan Event[O, I]
	done   chan struct{}

	// Owned by the control loop.
	pending  map[string]int
	total    uint64
	finished bool
}

// New creates a Crawler that passes dep to every invocation of crawl.
// The control loop starts immediately and waits for Visit.
func New[O, I, D any](cfg config.CrawlerConfig, dep D, crawl CrawlFunc[O, I, D], opts ...Option) (*Crawler[O, I], error) {
	if crawl == nil {
		return nil, ErrNilCrawlFunc
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crawler config: %w", err)
	}

	o := options{
		logger: slog.Default(),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(o.ctx)
	c := &Crawler[O, I]{
		cfg: cfg,
		crawl: func(ctx context.Context, req Request[I]) ([]UserRequest[I], O, error) {
			return crawl(ctx, req, dep)
		},
		router:  queue.NewRouter(cfg.DomainQueueTable),
		logger:  o.logger,
		ctx:     ctx,
		cancel:  cancel,
		inbox:   newFIFO[message[O, I]](),
		events:  newFIFO[Event[O, I]](),
		out:     make(chan Event[O, I]),
		done:    make(chan struct{}),
		pending: make(map[string]int),
	}

	go c.loop()
	go c.pump()
	return c, nil
}

// Visit submits root requests at depth 1. It returns immediately.
// An empty call is a no-op. Once the traversal has finished or the crawler
// has been closed, Visit returns ErrFinished; requests submitted while the
// final result is being processed may be discarded.
func (c *Crawler[O, I]) Visit(reqs ...UserRequest[I]) error {
	if len(reqs) == 0 {
		return nil
	}
	if !c.inbox.push(message[O, I]{kind: msgSubmit, next: slices.Clone(reqs)}) {
		return ErrFinished
	}
	return nil
}

// VisitURL parses rawURL and submits it with info.
func (c *Crawler[O, I]) VisitURL(rawURL string, info I) error {
	req, err := NewUserRequest(rawURL, info)
	if err != nil {
		return err
	}
	return c.Visit(req)
}

// Events returns the event stream. The same channel is returned on every call.
// Undelivered events stay buffered until they are read, so a caller that stops
// reading before the stream closes must call Close or cancel the WithContext
// parent to release the crawler.
func (c *Crawler[O, I]) Events() <-chan Event[O, I] {
	return c.out
}

// Done is closed when the control loop has exited.
func (c *Crawler[O, I]) Done() <-chan struct{} {
	return c.done
}

// Close tears the traversal down. Held and delayed tasks are discarded
// without running, undelivered events are dropped and the event stream is
// closed. Close is safe to call more than once.
func (c *Crawler[O, I]) Close() {
	c.cancel()
	c.inbox.close()
}
