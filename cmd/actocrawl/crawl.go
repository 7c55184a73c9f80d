package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/actocrawler/config"
	"github.com/nao1215/actocrawler/crawler"
	applog "github.com/nao1215/actocrawler/internal/log"
	"github.com/nao1215/actocrawler/internal/report"
	"github.com/nao1215/actocrawler/internal/tor"
)

// Defaults used when no configuration file is found.
const (
	defaultDepth       = 3
	defaultMaxRequests = 100
	defaultTimeout     = 30 * time.Second
	defaultConcurrency = 4
)

var (
	errOnionNeedsProxy = errors.New("onion targets require --tor or --socks5")
	errInvalidOnion    = errors.New("invalid v3 onion address")
)

// crawlOptions holds the flags of the crawl command.
type crawlOptions struct {
	configPath  string
	depth       uint64
	maxRequests uint64
	timeout     time.Duration
	userAgent   string

	allow    []string
	deny     []string
	sameHost bool

	concurrency int
	delay       time.Duration
	delayMax    time.Duration
	rps         float64

	dbPath string
	noDB   bool

	jsonReport bool
	markdown   bool
	output     string
	quiet      bool

	socks5     string
	useTor     bool
	torTimeout time.Duration

	render     bool
	browserBin string
	noSandbox  bool
}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	return newCrawlCmd(&crawlOptions{})
}

// newCrawlCmd creates the crawl command with its flags bound to opts.
func newCrawlCmd(opts *crawlOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl websites starting from seed URLs",
		Long: `Crawl fetches the seed URLs and follows the links of every page.

Settings are read from the configuration file (--config, .actocrawl.yaml in
the current directory, or config.yaml in the XDG config directory). Flags that
are set explicitly override the file. Without a configuration file the crawl
is limited to depth 3 and 100 requests.

Every result is printed as one line while the crawl runs, then a summary
report is written. Results are recorded in a SQLite database unless --no-db is
given.

Examples:
  # Crawl a site, two levels deep, staying on the seed host
  actocrawl crawl --depth 2 --same-host https://example.com

  # Be polite: one request at a time with a random 1-3s delay
  actocrawl crawl --concurrency 1 --delay 1s --delay-max 3s https://example.com

  # Skip some hosts
  actocrawl crawl --deny 'ads\.' --deny 'tracker\.' https://example.com

  # Crawl an onion service through the embedded Tor daemon
  actocrawl crawl --tor exampleonion.onion

  # Render pages in a headless browser and write a Markdown report
  actocrawl crawl --render --markdown -o report.md https://example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := applog.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
			slog.SetDefault(logger)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					logger.Info("received shutdown signal, cancelling...")
					cancel()
				case <-ctx.Done():
				}
			}()

			return runCrawl(ctx, cmd, opts, args, logger)
		},
	}

	f := cmd.Flags()

	f.StringVarP(&opts.configPath, "config", "c", "",
		"Configuration file path (default: .actocrawl.yaml or XDG config)")

	// Limits
	f.Uint64VarP(&opts.depth, "depth", "d", defaultDepth,
		"Maximum crawl depth, seeds have depth 1 (0 = unlimited)")
	f.Uint64VarP(&opts.maxRequests, "max-requests", "n", defaultMaxRequests,
		"Maximum number of requests (0 = unlimited)")
	f.DurationVarP(&opts.timeout, "timeout", "t", defaultTimeout,
		"Timeout for each request (0 = none)")
	f.StringVarP(&opts.userAgent, "user-agent", "A", config.DefaultUserAgent,
		"User-Agent header")

	// Domain filtering
	f.StringArrayVar(&opts.allow, "allow", nil,
		"Only crawl hosts matching this regular expression (repeatable)")
	f.StringArrayVar(&opts.deny, "deny", nil,
		"Never crawl hosts matching this regular expression (repeatable)")
	f.BoolVar(&opts.sameHost, "same-host", false,
		"Only crawl the hosts of the seed URLs")

	// Queue defaults for hosts not matched by a configured queue
	f.IntVar(&opts.concurrency, "concurrency", defaultConcurrency,
		"Concurrent requests per queue")
	f.DurationVar(&opts.delay, "delay", 0,
		"Delay before each request")
	f.DurationVar(&opts.delayMax, "delay-max", 0,
		"Upper bound of a random delay starting at --delay")
	f.Float64Var(&opts.rps, "rps", 0,
		"Requests per second per queue (0 = unlimited)")

	// Recording
	f.StringVar(&opts.dbPath, "db", "",
		"Database file or directory (default: XDG data directory)")
	f.BoolVar(&opts.noDB, "no-db", false,
		"Do not record results in the database")

	// Report
	f.BoolVarP(&opts.jsonReport, "json", "j", false,
		"Output JSON report")
	f.BoolVarP(&opts.markdown, "markdown", "m", false,
		"Output Markdown report")
	f.StringVarP(&opts.output, "output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false,
		"Do not print a line per crawled page")

	// Proxy
	f.StringVar(&opts.socks5, "socks5", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	f.BoolVar(&opts.useTor, "tor", false,
		"Start an embedded Tor daemon and route requests through it")
	f.DurationVar(&opts.torTimeout, "tor-timeout", tor.DefaultStartupTimeout,
		"Timeout for embedded Tor startup")

	// Browser
	f.BoolVar(&opts.render, "render", false,
		"Render pages in a headless browser before extracting links")
	f.StringVar(&opts.browserBin, "browser-bin", "",
		"Browser executable used by --render")
	f.BoolVar(&opts.noSandbox, "no-sandbox", false,
		"Disable the browser sandbox (needed in most containers)")

	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
	cmd.MarkFlagsMutuallyExclusive("socks5", "tor")
	cmd.MarkFlagsMutuallyExclusive("allow", "deny")
	cmd.MarkFlagsMutuallyExclusive("same-host", "deny")
	cmd.MarkFlagsMutuallyExclusive("db", "no-db")

	return cmd
}

func runCrawl(ctx context.Context, cmd *cobra.Command, opts *crawlOptions, args []string, logger *slog.Logger) error {
	seeds, err := parseSeeds(args)
	if err != nil {
		return err
	}
	seedStrings := make([]string, len(seeds))
	for i, u := range seeds {
		seedStrings[i] = u.String()
	}

	file, configPath, err := loadFile(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, opts, file, seeds)

	cfg, err := file.CrawlerConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger.Info("starting crawl",
		slog.Any("seeds", seedStrings),
		slog.String("config", configPath),
		slog.Uint64("maxDepth", cfg.EffectiveMaxDepth()),
		slog.Uint64("maxTotalRequests", cfg.EffectiveMaxTotalRequests()),
		slog.String("filter", cfg.DomainFilteringPolicy.String()),
	)

	socksAddr, stopProxy, err := setupProxy(ctx, opts, seeds, cmd.ErrOrStderr(), logger)
	if err != nil {
		return err
	}
	defer stopProxy()

	rec, err := openRecorder(ctx, opts, seedStrings, logger)
	if err != nil {
		return err
	}
	defer rec.close(ctx)

	c, closeCrawler, err := newPageCrawler(ctx, cfg, opts, socksAddr, logger)
	if err != nil {
		return err
	}
	defer closeCrawler()

	summary := report.NewSummary(seedStrings...)
	if rec != nil {
		summary.RunID = rec.runID
	}

	reqs := make([]crawler.UserRequest[struct{}], len(seeds))
	for i, u := range seeds {
		reqs[i] = crawler.UserRequest[struct{}]{URL: u}
	}
	if err := c.Visit(reqs...); err != nil {
		return fmt.Errorf("failed to submit seeds: %w", err)
	}

	var lines io.Writer = cmd.OutOrStdout()
	if opts.quiet || (opts.output == "" && (opts.jsonReport || opts.markdown)) {
		lines = io.Discard
	}

	consumeErr := consume(ctx, c.Events(), lines, summary, rec)
	summary.Finish(ctx.Err() != nil)

	if err := writeReport(cmd.OutOrStdout(), opts, summary, getVerboseFlag(cmd)); err != nil {
		return errors.Join(consumeErr, fmt.Errorf("failed to write report: %w", err))
	}
	return consumeErr
}

// parseSeeds turns the positional arguments into absolute http(s) URLs.
// Arguments without a scheme get https, or http for onion services.
func parseSeeds(args []string) ([]*url.URL, error) {
	seeds := make([]*url.URL, 0, len(args))
	for _, arg := range args {
		u, err := normalizeSeed(arg)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, u)
	}
	return seeds, nil
}

func normalizeSeed(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme == "" || (u.Host == "" && u.Opaque != "") {
		u, err = url.Parse("https://" + raw)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
		}
		if tor.IsOnionHost(u.Hostname()) {
			u.Scheme = "http"
		}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	if tor.IsOnionHost(u.Hostname()) && !tor.IsValidV3Address(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", errInvalidOnion, u.Hostname())
	}
	return u, nil
}

// loadFile returns the configuration file to start from and its path.
// An explicitly requested file must exist.
func loadFile(explicitPath string) (*config.File, string, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, "", fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return &config.File{
			MaxDepth:         defaultDepth,
			MaxTotalRequests: defaultMaxRequests,
			Timeout:          config.DurationFrom(defaultTimeout),
		}, "", nil
	}

	f, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return f, path, nil
}

// applyFlags overrides f with the flags set on cmd.
// Filtering flags replace the configured filter, and the queue flags add a
// catch-all rule after the configured queues.
func applyFlags(cmd *cobra.Command, opts *crawlOptions, f *config.File, seeds []*url.URL) {
	changed := cmd.Flags().Changed

	if changed("depth") {
		f.MaxDepth = opts.depth
	}
	if changed("max-requests") {
		f.MaxTotalRequests = opts.maxRequests
	}
	if changed("timeout") {
		f.Timeout = config.DurationFrom(opts.timeout)
	}
	if changed("user-agent") {
		f.UserAgent = opts.userAgent
	}

	if len(opts.allow) > 0 {
		f.AllowedDomains = slices.Clone(opts.allow)
		f.DisallowedDomains = nil
	}
	if len(opts.deny) > 0 {
		f.DisallowedDomains = slices.Clone(opts.deny)
		f.AllowedDomains = nil
	}
	if opts.sameHost {
		if len(opts.allow) == 0 {
			f.AllowedDomains = nil
		}
		f.DisallowedDomains = nil
		for _, u := range seeds {
			p := hostPattern(u.Hostname())
			if !slices.Contains(f.AllowedDomains, p) {
				f.AllowedDomains = append(f.AllowedDomains, p)
			}
		}
	}

	if changed("concurrency") || changed("delay") || changed("delay-max") || changed("rps") {
		f.DomainQueues = append(f.DomainQueues, config.QueueFile{
			Pattern:           ".*",
			MaxConcurrency:    opts.concurrency,
			Delay:             config.DurationFrom(opts.delay),
			DelayMax:          config.DurationFrom(opts.delayMax),
			RequestsPerSecond: opts.rps,
		})
	}
}

// hostPattern matches exactly host.
func hostPattern(host string) string {
	return "^" + regexp.QuoteMeta(host) + "$"
}

// setupProxy returns the SOCKS5 address requests go through, or "" for a
// direct connection, and a function releasing the proxy.
func setupProxy(ctx context.Context, opts *crawlOptions, seeds []*url.URL, status io.Writer, logger *slog.Logger) (string, func(), error) {
	noop := func() {}

	switch {
	case opts.socks5 != "":
		if err := tor.Probe(ctx, opts.socks5); err != nil {
			return "", noop, fmt.Errorf("SOCKS5 proxy check failed: %w (make sure the proxy is running at %s)",
				err, opts.socks5)
		}
		logger.Info("SOCKS5 proxy connection verified", slog.String("address", opts.socks5))
		return opts.socks5, noop, nil

	case opts.useTor:
		fmt.Fprintln(status, "Starting embedded Tor daemon...")
		fmt.Fprintf(status, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

		daemon := tor.NewDaemon(tor.WithStartupTimeout(opts.torTimeout))
		if err := daemon.Start(ctx); err != nil {
			return "", noop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		stop := func() {
			logger.Info("stopping embedded Tor daemon")
			if err := daemon.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", slog.String("error", err.Error()))
			}
		}

		if err := tor.Probe(ctx, daemon.SocksAddr()); err != nil {
			stop()
			return "", noop, fmt.Errorf("embedded Tor proxy check failed: %w", err)
		}
		fmt.Fprintf(status, "SOCKS proxy: %s\n\n", daemon.SocksAddr())
		return daemon.SocksAddr(), stop, nil

	case slices.ContainsFunc(seeds, func(u *url.URL) bool { return tor.IsOnionHost(u.Hostname()) }):
		return "", noop, errOnionNeedsProxy

	default:
		return "", noop, nil
	}
}

// writeReport writes the summary to opts.output, or to stdout when unset.
func writeReport(stdout io.Writer, opts *crawlOptions, summary *report.Summary, verbose bool) error {
	output := stdout
	if opts.output != "" {
		dir := filepath.Dir(opts.output)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may contain URLs with credentials.
		f, err := os.OpenFile(opts.output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case opts.jsonReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(verbose))
	}
	_, err := w.Write(summary)
	return err
}
