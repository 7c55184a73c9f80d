package netsession

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/proxy"

	"github.com/nao1215/actocrawler/config"
	"github.com/nao1215/actocrawler/crawler"
)

// DefaultMaxBodySize is the body size limit used when none is configured.
const DefaultMaxBodySize int64 = 10 * 1024 * 1024

// maxRedirects stops redirect loops while allowing normal redirects.
const maxRedirects = 10

// ErrInvalidProxyAddress is returned when the SOCKS5 address is not host:port.
var ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

// Session performs HTTP requests on behalf of crawl functions.
// It is safe for concurrent use.
type Session struct {
	// client is the underlying HTTP client.
	client *http.Client

	// userAgent is sent unless the request sets its own.
	userAgent string

	// timeout bounds a whole request including the body read. Zero disables it.
	timeout time.Duration

	// headers are added to every request that does not set them.
	headers http.Header

	// maxBodySize limits how many decoded bytes are read.
	maxBodySize int64

	// socksAddr routes connections through a SOCKS5 proxy when set.
	socksAddr string
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient replaces the underlying HTTP client.
// WithSOCKS5Proxy has no effect when a client is supplied.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		s.client = c
	}
}

// WithMaxBodySize sets the maximum decoded body size.
func WithMaxBodySize(n int64) Option {
	return func(s *Session) {
		s.maxBodySize = n
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(s *Session) {
		s.headers.Add(key, value)
	}
}

// WithSOCKS5Proxy routes all connections through the SOCKS5 proxy at addr,
// for example a Tor daemon at "127.0.0.1:9050".
func WithSOCKS5Proxy(addr string) Option {
	return func(s *Session) {
		s.socksAddr = addr
	}
}

// New creates a Session from the crawler configuration.
func New(cfg config.CrawlerConfig, opts ...Option) (*Session, error) {
	s := &Session{
		userAgent:   cfg.EffectiveUserAgent(),
		timeout:     cfg.Timeout,
		headers:     make(http.Header),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		transport, err := newTransport(s.socksAddr)
		if err != nil {
			return nil, err
		}
		s.client = &http.Client{
			Transport: transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	return s, nil
}

func newTransport(socksAddr string) (*http.Transport, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		// Content-Encoding is decoded in Session.Data.
		DisableCompression: true,
	}
	if socksAddr == "" {
		return transport, nil
	}

	if !isValidProxyAddress(socksAddr) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, socksAddr)
	}
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	transport.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	return transport, nil
}

func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// UserAgent returns the User-Agent sent by the session.
func (s *Session) UserAgent() string {
	return s.userAgent
}

// Client returns the underlying HTTP client.
func (s *Session) Client() *http.Client {
	return s.client
}

// Get fetches u and returns the decoded body.
func (s *Session) Get(ctx context.Context, u *url.URL) ([]byte, *http.Response, error) {
	if u == nil {
		return nil, nil, &crawler.InvalidResponseError{Reason: "request has no URL"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	return s.Data(ctx, req)
}

// Data sends req and returns the decoded body together with the response.
// The response body is already consumed and closed.
func (s *Session) Data(ctx context.Context, req *http.Request) ([]byte, *http.Response, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req = req.Clone(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	}
	for key, values := range s.headers {
		if req.Header.Get(key) == "" {
			req.Header[key] = values
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	reader, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, resp, &crawler.InvalidResponseError{Response: resp, Reason: err.Error()}
	}

	body, err := io.ReadAll(io.LimitReader(reader, s.maxBodySize+1))
	if err != nil {
		return nil, resp, &crawler.InvalidResponseError{Response: resp, Reason: fmt.Sprintf("read body: %v", err)}
	}
	if int64(len(body)) > s.maxBodySize {
		return nil, resp, &crawler.InvalidResponseError{
			Response: resp,
			Reason:   fmt.Sprintf("body exceeds %d bytes", s.maxBodySize),
		}
	}

	resp.Body = http.NoBody
	return body, resp, nil
}

// decodeBody wraps r according to a Content-Encoding header value.
func decodeBody(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return r, nil
	case "gzip", "x-gzip":
		return gzip.NewReader(r)
	case "br":
		return brotli.NewReader(r), nil
	case "deflate":
		// Servers send either zlib-wrapped or raw deflate data.
		br := bufio.NewReader(r)
		if hasZlibHeader(br) {
			return zlib.NewReader(br)
		}
		return flate.NewReader(br), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// hasZlibHeader reports whether the next two bytes of br form a zlib header
// (RFC 1950: deflate method and a header checksum divisible by 31).
func hasZlibHeader(br *bufio.Reader) bool {
	hdr, err := br.Peek(2)
	if err != nil {
		return false
	}
	return hdr[0]&0x0f == 8 && (uint16(hdr[0])<<8|uint16(hdr[1]))%31 == 0
}

// NewCrawler creates a crawler whose dependency is a Session built from cfg.
func NewCrawler[O, I any](cfg config.CrawlerConfig, crawl crawler.CrawlFunc[O, I, *Session], opts ...crawler.Option) (*crawler.Crawler[O, I], error) {
	session, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return crawler.New(cfg, session, crawl, opts...)
}
