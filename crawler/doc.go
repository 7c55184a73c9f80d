// Package crawler provides a generic, concurrent crawling engine.
//
// # Architecture
//
// A Crawler drives a traversal of a request graph. The caller supplies a
// crawl function that turns one Request into zero or more follow-up
// UserRequests plus a typed output. The engine assigns every admitted request
// an order and a depth, applies the depth and total request budgets from
// config.CrawlerConfig, filters destinations through the domain policy, and
// runs crawl functions concurrently on per-destination queues.
//
// All traversal state is owned by a single control loop goroutine. Submissions
// and crawl results reach it as messages, so no locks guard the pending set
// or the request counter.
//
// # Events
//
// Events returns a channel of WillCrawl and DidCrawl events. Producers never
// block on a slow consumer. The channel is closed once the pending set is empty
// and no further requests were produced, or when Close is called.
//
// # Usage
//
//	c, err := crawler.New(cfg, session,
//		func(ctx context.Context, req crawler.Request[struct{}], s *netsession.Session) ([]crawler.UserRequest[struct{}], int, error) {
//			body, _, err := s.Get(ctx, req.URL)
//			if err != nil {
//				return nil, 0, err
//			}
//			return nil, len(body), nil
//		})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	if err := c.VisitURL("https://example.com", struct{}{}); err != nil {
//		return err
//	}
//	for ev := range c.Events() {
//		fmt.Println(ev)
//	}
//
// # Errors
//
// Errors never abort a traversal. A failing request ends its own branch and
// is reported as a DidCrawl event whose Err is a *DomainNotAllowedError or a
// *CrawlFailedError wrapping the crawl function's error.
package crawler
