package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nao1215/actocrawler/config"
	"github.com/nao1215/actocrawler/crawler"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("browser is closed")

// Browser is a serialized handle to a Chromium instance.
type Browser struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
	logger   *slog.Logger
}

type launchOptions struct {
	bin       string
	headless  bool
	noSandbox bool
	userAgent string
	proxy     string
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures Launch.
type Option func(*launchOptions)

// WithBin sets the browser executable. By default rod looks up or downloads one.
func WithBin(path string) Option {
	return func(o *launchOptions) {
		o.bin = path
	}
}

// WithHeadless toggles headless mode. The default is headless.
func WithHeadless(headless bool) Option {
	return func(o *launchOptions) {
		o.headless = headless
	}
}

// WithNoSandbox disables the Chromium sandbox, which containers usually need.
func WithNoSandbox() Option {
	return func(o *launchOptions) {
		o.noSandbox = true
	}
}

// WithUserAgent overrides the browser User-Agent.
func WithUserAgent(ua string) Option {
	return func(o *launchOptions) {
		o.userAgent = ua
	}
}

// WithProxy routes browser traffic through proxy, e.g. "socks5://127.0.0.1:9050".
func WithProxy(proxy string) Option {
	return func(o *launchOptions) {
		o.proxy = proxy
	}
}

// WithTimeout bounds each page operation run through RenderedHTML.
func WithTimeout(d time.Duration) Option {
	return func(o *launchOptions) {
		o.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *launchOptions) {
		o.logger = logger
	}
}

func newOptions(opts []Option) launchOptions {
	o := launchOptions{headless: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o launchOptions) launcher(ctx context.Context) *launcher.Launcher {
	l := launcher.New().Context(ctx).Headless(o.headless)
	if o.bin != "" {
		l = l.Bin(o.bin)
	}
	if o.noSandbox {
		l = l.NoSandbox(true).Set("disable-dev-shm-usage")
	}
	if o.userAgent != "" {
		l = l.Set("user-agent", o.userAgent)
	}
	if o.proxy != "" {
		l = l.Proxy(o.proxy)
	}
	return l
}

// Launch starts a browser process and connects to it.
func Launch(ctx context.Context, opts ...Option) (*Browser, error) {
	o := newOptions(opts)

	l := o.launcher(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	err = proto.BrowserSetDownloadBehavior{
		Behavior: proto.BrowserSetDownloadBehaviorBehaviorDeny,
	}.Call(b)
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to deny downloads: %w", err)
	}

	o.logger.Debug("browser launched", slog.String("control_url", controlURL))
	return newBrowser(b, l, o), nil
}

// Connect attaches to an already running browser at controlURL.
func Connect(controlURL string, opts ...Option) (*Browser, error) {
	o := newOptions(opts)
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	return newBrowser(b, nil, o), nil
}

func newBrowser(b *rod.Browser, l *launcher.Launcher, o launchOptions) *Browser {
	return &Browser{
		browser:  b,
		launcher: l,
		timeout:  o.timeout,
		logger:   o.logger,
	}
}

// Run calls fn with exclusive access to the browser.
func (b *Browser) Run(ctx context.Context, fn func(*rod.Browser) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(b.browser.Context(ctx))
}

// Close disconnects from the browser and stops it if Launch started it.
// It is safe to call Close more than once.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Kill()
	}
	b.browser = nil
	b.launcher = nil
	return err
}

// RenderedHTML opens u in a new tab, waits for the load event and returns
// the resulting DOM as HTML.
func RenderedHTML(ctx context.Context, b *Browser, u *url.URL) (string, error) {
	if u == nil {
		return "", &crawler.InvalidResponseError{Reason: "request has no URL"}
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	var html string
	err := b.Run(ctx, func(rb *rod.Browser) error {
		page, err := rb.Page(proto.TargetCreateTarget{URL: u.String()})
		if err != nil {
			return err
		}
		defer func() {
			if err := page.Close(); err != nil {
				b.logger.Debug("failed to close page", slog.String("error", err.Error()))
			}
		}()

		if err := page.WaitLoad(); err != nil {
			return err
		}
		html, err = page.HTML()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", u, err)
	}
	return html, nil
}

// NewCrawler launches a browser and creates a crawler that passes it to
// every invocation of crawl. The configured User-Agent and timeout apply to
// the browser. The caller closes the returned Browser after the traversal.
func NewCrawler[O, I any](ctx context.Context, cfg config.CrawlerConfig, crawl crawler.CrawlFunc[O, I, *Browser], launchOpts []Option, opts ...crawler.Option) (*crawler.Crawler[O, I], *Browser, error) {
	launchOpts = append([]Option{
		WithUserAgent(cfg.EffectiveUserAgent()),
		WithTimeout(cfg.Timeout),
	}, launchOpts...)

	b, err := Launch(ctx, launchOpts...)
	if err != nil {
		return nil, nil, err
	}

	c, err := crawler.New(cfg, b, crawl, opts...)
	if err != nil {
		_ = b.Close()
		return nil, nil, err
	}
	return c, b, nil
}
