package htmlscraper

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/crypto/sha3"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/nao1215/actocrawler/config"
	"github.com/nao1215/actocrawler/crawler"
	"github.com/nao1215/actocrawler/netsession"
)

// Response is a fetched and parsed HTML page.
type Response[I any] struct {
	crawler.Request[I]

	// Document is the parsed page.
	Document *goquery.Document

	// HTTPResponse carries the status and headers. Its body is already consumed.
	HTTPResponse *http.Response

	// Body is the page decoded to UTF-8.
	Body []byte
}

// Digest returns the hex encoded SHA3-256 of the decoded body.
func (r *Response[I]) Digest() string {
	sum := sha3.Sum256(r.Body)
	return hex.EncodeToString(sum[:])
}

// ScrapeFunc turns a parsed page into follow-up requests and an output.
type ScrapeFunc[O, I any] func(ctx context.Context, resp *Response[I]) ([]crawler.UserRequest[I], O, error)

// Fetch downloads req with session and parses the body as HTML.
func Fetch[I any](ctx context.Context, session *netsession.Session, req crawler.Request[I]) (*Response[I], error) {
	raw, httpResp, err := session.Get(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	body, err := decode(raw, httpResp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", crawler.ErrInvalidData, err)
	}
	doc.Url = req.URL

	return &Response[I]{
		Request:      req,
		Document:     doc,
		HTTPResponse: httpResp,
		Body:         body,
	}, nil
}

// decode converts raw to UTF-8 using the charset parameter of contentType.
// Without a charset the body must already be valid UTF-8.
func decode(raw []byte, contentType string) ([]byte, error) {
	name := ""
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			name = params["charset"]
		}
	}

	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("%w: body is not valid UTF-8", crawler.ErrInvalidData)
		}
		return raw, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown charset %q", crawler.ErrInvalidData, name)
	}
	body, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", crawler.ErrInvalidData, name, err)
	}
	return body, nil
}

// NewCrawler creates a crawler that fetches every request with a default
// Session and hands the parsed page to scrape.
func NewCrawler[O, I any](cfg config.CrawlerConfig, scrape ScrapeFunc[O, I], opts ...crawler.Option) (*crawler.Crawler[O, I], error) {
	session, err := netsession.New(cfg)
	if err != nil {
		return nil, err
	}
	return crawler.New(cfg, session, Crawl(scrape), opts...)
}

// Crawl adapts scrape into a crawl function over a Session, for use with
// crawler.New and a custom Session.
func Crawl[O, I any](scrape ScrapeFunc[O, I]) crawler.CrawlFunc[O, I, *netsession.Session] {
	return func(ctx context.Context, req crawler.Request[I], session *netsession.Session) ([]crawler.UserRequest[I], O, error) {
		resp, err := Fetch(ctx, session, req)
		if err != nil {
			var zero O
			return nil, zero, err
		}
		return scrape(ctx, resp)
	}
}

// Links returns the absolute http and https links of doc resolved against
// base, without fragments and without duplicates, in document order.
func Links(doc *goquery.Document, base *url.URL) []*url.URL {
	if doc == nil || base == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []*url.URL
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		u, err := base.Parse(href)
		if err != nil {
			return
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		u.Fragment = ""
		u.RawFragment = ""

		key := u.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, u)
	})
	return links
}

// NextRequests turns links into user requests carrying info.
func NextRequests[I any](links []*url.URL, info I) []crawler.UserRequest[I] {
	reqs := make([]crawler.UserRequest[I], 0, len(links))
	for _, u := range links {
		reqs = append(reqs, crawler.UserRequest[I]{URL: u, Info: info})
	}
	return reqs
}
