package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod"

	"github.com/nao1215/actocrawler/config"
	"github.com/nao1215/actocrawler/crawler"
)

func TestOptions(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		o := newOptions(nil)
		if !o.headless {
			t.Error("expected headless by default")
		}
		if o.logger == nil {
			t.Error("expected a default logger")
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()
		o := newOptions([]Option{
			WithBin("/usr/bin/chromium"),
			WithHeadless(false),
			WithNoSandbox(),
			WithUserAgent("bot"),
			WithProxy("socks5://127.0.0.1:9050"),
			WithTimeout(time.Second),
		})
		if o.bin != "/usr/bin/chromium" || o.headless || !o.noSandbox ||
			o.userAgent != "bot" || o.proxy != "socks5://127.0.0.1:9050" || o.timeout != time.Second {
			t.Errorf("unexpected options %+v", o)
		}
	})
}

func TestRunIsSerialized(t *testing.T) {
	t.Parallel()

	b := newBrowser(rod.New(), nil, newOptions(nil))

	var (
		active  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.Run(context.Background(), func(*rod.Browser) error {
				if active.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(2 * time.Millisecond)
				active.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if overlap.Load() {
		t.Error("browser operations overlapped")
	}
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	t.Run("closed browser", func(t *testing.T) {
		t.Parallel()
		b := &Browser{}
		if err := b.Close(); err != nil {
			t.Errorf("Close() on a closed browser = %v", err)
		}
		err := b.Run(context.Background(), func(*rod.Browser) error { return nil })
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		b := newBrowser(rod.New(), nil, newOptions(nil))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := b.Run(ctx, func(*rod.Browser) error {
			called = true
			return nil
		})
		if !errors.Is(err, context.Canceled) || called {
			t.Errorf("expected context.Canceled without calling fn, got %v (called=%v)", err, called)
		}
	})

	t.Run("nil url", func(t *testing.T) {
		t.Parallel()
		_, err := RenderedHTML(context.Background(), &Browser{}, nil)
		var invalid *crawler.InvalidResponseError
		if !errors.As(err, &invalid) {
			t.Errorf("expected InvalidResponseError, got %v", err)
		}
	})

	t.Run("render on closed browser", func(t *testing.T) {
		t.Parallel()
		u, _ := url.Parse("https://example.test/")
		_, err := RenderedHTML(context.Background(), &Browser{}, u)
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}

// TestNewCrawlerWithChromium needs a local Chromium and is opt-in.
func TestNewCrawlerWithChromium(t *testing.T) {
	if testing.Short() || os.Getenv("ACTOCRAWL_BROWSER_TEST") == "" {
		t.Skip("set ACTOCRAWL_BROWSER_TEST=1 to run against a real browser")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><script>document.body.innerHTML = "<p id=x>rendered</p>"</script></body></html>`))
	}))
	defer server.Close()

	c, b, err := NewCrawler(context.Background(), config.CrawlerConfig{Timeout: 30 * time.Second},
		func(ctx context.Context, req crawler.Request[struct{}], b *Browser) ([]crawler.UserRequest[struct{}], string, error) {
			html, err := RenderedHTML(ctx, b, req.URL)
			return nil, html, err
		}, []Option{WithNoSandbox()})
	if err != nil {
		t.Fatalf("NewCrawler() error = %v", err)
	}
	defer func() { _ = b.Close() }()
	defer c.Close()

	if err := c.VisitURL(server.URL, struct{}{}); err != nil {
		t.Fatal(err)
	}
	for ev := range crawler.Outputs(context.Background(), c.Events()) {
		if ev.Err != nil {
			t.Fatalf("render failed: %v", ev.Err)
		}
		if !strings.Contains(ev.Output, "rendered") {
			t.Errorf("expected rendered content, got %q", ev.Output)
		}
	}
}
