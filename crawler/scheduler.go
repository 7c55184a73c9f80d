package crawler

import (
	"context"
	"fmt"
	"log/slog"
)

type messageKind int

const (
	msgSubmit messageKind = iota
	msgVisit
	msgWillCrawl
	msgDidCrawl
)

type message[O, I any] struct {
	kind    messageKind
	request Request[I]
	next    []UserRequest[I]
	output  O
	err     error
}

// loop is the single writer of the pending set and the request counter.
func (c *Crawler[O, I]) loop() {
	defer close(c.done)

	for !c.finished {
		msg, ok := c.inbox.pop(c.ctx)
		if !ok {
			break
		}
		c.handle(msg)
	}

	if !c.finished {
		c.logger.Debug("crawler closed before completion",
			slog.Int("pending", len(c.pending)),
			slog.Uint64("total", c.total))
	}
	c.inbox.close()
	c.events.close()
}

// pump moves events from the unbounded buffer to the public channel.
func (c *Crawler[O, I]) pump() {
	defer c.cancel()
	defer close(c.out)

	for {
		ev, ok := c.events.pop(c.ctx)
		if !ok {
			return
		}
		select {
		case c.out <- ev:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Crawler[O, I]) handle(msg message[O, I]) {
	switch msg.kind {
	case msgSubmit:
		var zero O
		c.transition(nil, msg.next, zero, nil)
	case msgVisit:
		c.dispatch(msg.request)
	case msgWillCrawl:
		c.events.push(Event[O, I]{Kind: WillCrawl, Request: msg.request})
	case msgDidCrawl:
		c.transition(&msg.request, msg.next, msg.output, msg.err)
	}
}

// transition applies one admission batch. parent is nil for a submission
// from Visit, which behaves like the completion of a virtual root at depth 0.
func (c *Crawler[O, I]) transition(parent *Request[I], next []UserRequest[I], output O, err error) {
	var depth uint64
	if parent != nil {
		c.release(parent.String())
		depth = parent.Depth
	}

	if len(next) > 0 && c.cfg.DepthLimitReached(depth) {
		c.logger.Debug("depth limit reached, dropping requests",
			slog.Uint64("depth", depth),
			slog.Int("dropped", len(next)))
		next = nil
	}

	if remaining := c.cfg.RemainingBudget(c.total); uint64(len(next)) > remaining {
		c.logger.Debug("request budget exhausted, dropping requests",
			slog.Uint64("total", c.total),
			slog.Uint64("dropped", uint64(len(next))-remaining))
		next = next[:remaining]
	}

	for _, req := range next {
		c.pending[req.String()]++
	}

	finished := len(c.pending) == 0 && len(next) == 0

	if parent != nil {
		c.events.push(Event[O, I]{Kind: DidCrawl, Request: *parent, Output: output, Err: err})
	}

	if finished {
		c.finish()
		return
	}

	for i, req := range next {
		admitted := Request[I]{
			UserRequest: req,
			Order:       c.total + uint64(i),
			Depth:       depth + 1,
		}
		c.logger.Debug("request admitted",
			slog.Uint64("order", admitted.Order),
			slog.Uint64("depth", admitted.Depth),
			slog.String("url", admitted.String()))
		c.inbox.push(message[O, I]{kind: msgVisit, request: admitted})
	}

	c.total += uint64(len(next))
}

func (c *Crawler[O, I]) release(key string) {
	if n := c.pending[key]; n > 1 {
		c.pending[key] = n - 1
		return
	}
	delete(c.pending, key)
}

func (c *Crawler[O, I]) finish() {
	c.finished = true
	c.logger.Info("crawl finished", slog.Uint64("total", c.total))
	c.events.close()
	c.inbox.close()
}

// dispatch filters req and hands it to its destination queue.
func (c *Crawler[O, I]) dispatch(req Request[I]) {
	host := req.Host()
	if !c.cfg.DomainFilteringPolicy.IsDomainAllowed(host) {
		c.logger.Debug("domain not allowed",
			slog.String("host", host),
			slog.String("url", req.String()))
		var zero O
		c.transition(&req, nil, zero, &DomainNotAllowedError{Host: host})
		return
	}

	c.router.QueueFor(host).Schedule(c.ctx, func(ctx context.Context) {
		c.execute(ctx, req)
	})
}

// execute runs on a queue goroutine and reports back through the inbox.
func (c *Crawler[O, I]) execute(ctx context.Context, req Request[I]) {
	if !c.inbox.push(message[O, I]{kind: msgWillCrawl, request: req}) {
		return
	}

	next, output, err := c.invoke(ctx, req)
	if err != nil {
		c.logger.Debug("crawl failed",
			slog.String("url", req.String()),
			slog.String("error", err.Error()))
	}
	c.inbox.push(message[O, I]{kind: msgDidCrawl, request: req, next: next, output: output, err: err})
}

func (c *Crawler[O, I]) invoke(ctx context.Context, req Request[I]) (next []UserRequest[I], output O, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero O
			next, output, err = nil, zero, &CrawlFailedError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	next, output, err = c.crawl(ctx, req)
	if err != nil {
		var zero O
		return nil, zero, &CrawlFailedError{Err: err}
	}
	return next, output, nil
}
