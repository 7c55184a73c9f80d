package config

import "errors"

// Configuration validation errors returned by CrawlerConfig.Validate.
// Callers can use errors.Is to tell them apart; the returned error may wrap
// one of these with the offending rule or pattern.
var (
	// ErrInvalidTimeout is returned when the per-request timeout is negative.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrEmptyPattern is returned when a queue rule or filter has an empty pattern.
	ErrEmptyPattern = errors.New("invalid pattern: must not be empty")

	// ErrInvalidPattern is returned when a pattern is not a valid regular expression.
	ErrInvalidPattern = errors.New("invalid pattern: not a valid regular expression")

	// ErrInvalidMaxConcurrency is returned when a queue rule allows no concurrent work.
	ErrInvalidMaxConcurrency = errors.New("invalid max concurrency: must be positive")

	// ErrInvalidDelay is returned when a delay is negative or its range is inverted.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative and min <= max")

	// ErrInvalidRate is returned when a rate limit is negative.
	ErrInvalidRate = errors.New("invalid rate: must be non-negative")

	// ErrConflictingFilters is returned by File.CrawlerConfig when both allowed
	// and disallowed domains are configured.
	ErrConflictingFilters = errors.New("conflicting domain filters: allowedDomains and disallowedDomains cannot be used together")
)
