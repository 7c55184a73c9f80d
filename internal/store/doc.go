// Package store records crawl results in a SQLite database.
//
// Every DidCrawl event of a run becomes one row of the crawl_events table.
// Runs are grouped by a run identifier so a single database file can hold
// the history of many crawls. The driver is modernc.org/sqlite, which does
// not require cgo.
package store
