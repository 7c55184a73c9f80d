// Package browser provides a headless Chromium dependency for crawlers, for
// pages that need JavaScript to render.
//
// A Browser serializes access to the underlying rod.Browser: crawl functions
// may run concurrently, but browser operations run one at a time.
package browser
