package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/actocrawler/browser"
	"github.com/nao1215/actocrawler/config"
	"github.com/nao1215/actocrawler/crawler"
	"github.com/nao1215/actocrawler/htmlscraper"
	"github.com/nao1215/actocrawler/internal/report"
	"github.com/nao1215/actocrawler/internal/store"
	"github.com/nao1215/actocrawler/netsession"
)

// recordBuffer is how many results may wait for the database.
const recordBuffer = 64

// page is the output of every crawled page.
type page struct {
	Title    string `json:"title"`
	Status   int    `json:"status,omitempty"`
	Links    int    `json:"links"`
	External int    `json:"external,omitempty"`
	Forms    int    `json:"forms,omitempty"`
	Digest   string `json:"digest,omitempty"`
}

func (p page) String() string {
	if p.Status == 0 {
		return fmt.Sprintf("%q links=%d", p.Title, p.Links)
	}
	return fmt.Sprintf("%q status=%d links=%d", p.Title, p.Status, p.Links)
}

type pageCrawler = crawler.Crawler[page, struct{}]

// extract reads the title and the links of doc.
func extract(doc *goquery.Document, base *url.URL) ([]crawler.UserRequest[struct{}], page) {
	info := htmlscraper.Inspect(doc, base)
	links := info.Links()
	p := page{
		Title:    info.Title,
		Links:    len(links),
		External: len(info.ExternalLinks),
		Forms:    info.Forms,
	}
	return htmlscraper.NextRequests(links, struct{}{}), p
}

func scrapePage(_ context.Context, resp *htmlscraper.Response[struct{}]) ([]crawler.UserRequest[struct{}], page, error) {
	next, p := extract(resp.Document, resp.URL)
	p.Status = resp.HTTPResponse.StatusCode
	p.Digest = resp.Digest()
	return next, p, nil
}

func renderPage(ctx context.Context, req crawler.Request[struct{}], b *browser.Browser) ([]crawler.UserRequest[struct{}], page, error) {
	html, err := browser.RenderedHTML(ctx, b, req.URL)
	if err != nil {
		return nil, page{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, page{}, fmt.Errorf("%w: %w", crawler.ErrInvalidData, err)
	}
	next, p := extract(doc, req.URL)
	return next, p, nil
}

// newPageCrawler builds a crawler over HTTP, or over a headless browser when
// --render is set. The returned function tears it down.
func newPageCrawler(ctx context.Context, cfg config.CrawlerConfig, opts *crawlOptions, socksAddr string, logger *slog.Logger) (*pageCrawler, func(), error) {
	crawlOpts := []crawler.Option{
		crawler.WithLogger(logger),
		crawler.WithContext(ctx),
	}

	if opts.render {
		launchOpts := []browser.Option{browser.WithLogger(logger)}
		if opts.browserBin != "" {
			launchOpts = append(launchOpts, browser.WithBin(opts.browserBin))
		}
		if opts.noSandbox {
			launchOpts = append(launchOpts, browser.WithNoSandbox())
		}
		if socksAddr != "" {
			launchOpts = append(launchOpts, browser.WithProxy("socks5://"+socksAddr))
		}

		c, b, err := browser.NewCrawler(ctx, cfg, renderPage, launchOpts, crawlOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		return c, func() {
			c.Close()
			if err := b.Close(); err != nil {
				logger.Warn("failed to close browser", slog.String("error", err.Error()))
			}
		}, nil
	}

	var sessionOpts []netsession.Option
	if socksAddr != "" {
		sessionOpts = append(sessionOpts, netsession.WithSOCKS5Proxy(socksAddr))
	}
	session, err := netsession.New(cfg, sessionOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	c, err := crawler.New(cfg, session, htmlscraper.Crawl(scrapePage), crawlOpts...)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

// recorder persists the results of one run. A nil recorder records nothing.
type recorder struct {
	store  *store.EventStore
	runID  string
	logger *slog.Logger
}

func openRecorder(ctx context.Context, opts *crawlOptions, seeds []string, logger *slog.Logger) (*recorder, error) {
	if opts.noDB {
		return nil, nil
	}

	path := opts.dbPath
	if path == "" {
		path = config.XDGDataDir()
	}
	st, err := store.Open(path, store.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	runID, err := st.StartRun(ctx, seeds...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	logger.Info("database opened", slog.String("path", st.Path()), slog.String("run", runID))

	return &recorder{store: st, runID: runID, logger: logger}, nil
}

func (r *recorder) insert(ctx context.Context, rec store.Record) error {
	if r == nil {
		return nil
	}
	if _, err := r.store.Insert(ctx, rec); err != nil {
		return fmt.Errorf("failed to record crawl event: %w", err)
	}
	return nil
}

// close finishes the run even when ctx is already cancelled.
func (r *recorder) close(ctx context.Context) {
	if r == nil {
		return
	}
	if err := r.store.FinishRun(context.WithoutCancel(ctx), r.runID); err != nil {
		r.logger.Error("failed to finish run", slog.String("error", err.Error()))
	}
	if err := r.store.Close(); err != nil {
		r.logger.Error("failed to close database", slog.String("error", err.Error()))
	}
}

// consume prints every event to lines, feeds DidCrawl events to summary and
// records them while the crawl runs. It returns when events is closed.
func consume[O, I any](ctx context.Context, events <-chan crawler.Event[O, I], lines io.Writer, summary *report.Summary, rec *recorder) error {
	g, gctx := errgroup.WithContext(ctx)
	records := make(chan store.Record, recordBuffer)

	g.Go(func() error {
		defer close(records)
		for ev := range events {
			fmt.Fprintln(lines, ev)
			if ev.Kind != crawler.DidCrawl {
				continue
			}
			report.Observe(summary, ev)
			if rec == nil {
				continue
			}
			select {
			case records <- store.RecordFromEvent(rec.runID, ev):
			case <-gctx.Done():
			}
		}
		return nil
	})

	g.Go(func() error {
		// Results already received are stored even after a shutdown signal.
		wctx := context.WithoutCancel(ctx)
		for r := range records {
			if err := rec.insert(wctx, r); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}
