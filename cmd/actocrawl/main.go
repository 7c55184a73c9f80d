// Package main provides the entry point for the actocrawl CLI.
//
// actocrawl crawls websites starting from one or more seed URLs, following
// links up to a configurable depth and request budget, with per-domain
// concurrency, delay and rate limits.
//
// Usage:
//
//	actocrawl crawl https://example.com
//	actocrawl crawl --depth 2 --allow 'example\.com$' https://example.com
//	actocrawl init
//
// See --help for all available options.
package main

func main() {
	Execute()
}
