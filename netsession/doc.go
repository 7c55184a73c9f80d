// Package netsession provides the default HTTP dependency for crawlers.
//
// A Session sends the configured User-Agent, applies the per-request timeout
// from config.CrawlerConfig, decodes gzip, deflate and brotli bodies, caps the
// body size and can route traffic through a SOCKS5 proxy such as Tor.
//
// Responses that cannot be read or decoded are reported as
// *crawler.InvalidResponseError. Non-2xx statuses are not errors; the crawl
// function decides what to do with them.
package netsession
