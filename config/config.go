package config

import (
	"fmt"
	"math"
	"time"
)

// Default configuration values.
const (
	// DefaultUserAgent is sent by the default network dependency when
	// CrawlerConfig.UserAgent is empty.
	DefaultUserAgent = "ActoCrawler"

	// Unlimited is the effective value of MaxDepth and MaxTotalRequests
	// when they are left at zero.
	Unlimited uint64 = math.MaxUint64
)

// CrawlerConfig holds the limits and policies of a single traversal.
//
// Every field is independently defaultable: the zero value of each field means
// the documented default, so CrawlerConfig{} is a valid unlimited configuration.
type CrawlerConfig struct {
	// MaxDepth is the maximum depth of dispatched requests.
	// Requests submitted by the caller have depth 1; requests produced while
	// processing a request at depth MaxDepth are never dispatched.
	// Such dropped requests do not count against MaxTotalRequests.
	// Zero means unlimited.
	MaxDepth uint64

	// MaxTotalRequests caps how many requests may ever be admitted into the
	// schedule. Requests beyond the remaining budget are dropped silently.
	// Zero means unlimited.
	MaxTotalRequests uint64

	// Timeout is the per-request timeout applied by the default network
	// dependency. Custom dependencies enforce their own timeouts.
	// Zero means no timeout.
	Timeout time.Duration

	// UserAgent is the User-Agent header used by the default network dependency.
	// Empty means DefaultUserAgent.
	UserAgent string

	// DomainFilteringPolicy decides which hosts may be crawled.
	// The zero value allows all domains.
	DomainFilteringPolicy FilterPolicy

	// DomainQueueTable maps host patterns to queue settings.
	// The first matching rule wins; hosts matching no rule share one
	// unbounded queue without delay.
	DomainQueueTable QueueTable
}

// NewConfig returns a CrawlerConfig with the default values spelled out:
// unlimited depth and requests, no timeout, the default User-Agent,
// all domains allowed and an empty queue table.
func NewConfig() CrawlerConfig {
	return CrawlerConfig{
		MaxDepth:              Unlimited,
		MaxTotalRequests:      Unlimited,
		Timeout:               0,
		UserAgent:             DefaultUserAgent,
		DomainFilteringPolicy: AllDomains(),
		DomainQueueTable:      QueueTable{},
	}
}

// EffectiveMaxDepth returns MaxDepth with zero resolved to Unlimited.
func (c CrawlerConfig) EffectiveMaxDepth() uint64 {
	if c.MaxDepth == 0 {
		return Unlimited
	}
	return c.MaxDepth
}

// EffectiveMaxTotalRequests returns MaxTotalRequests with zero resolved to Unlimited.
func (c CrawlerConfig) EffectiveMaxTotalRequests() uint64 {
	if c.MaxTotalRequests == 0 {
		return Unlimited
	}
	return c.MaxTotalRequests
}

// EffectiveUserAgent returns UserAgent with empty resolved to DefaultUserAgent.
func (c CrawlerConfig) EffectiveUserAgent() string {
	if c.UserAgent == "" {
		return DefaultUserAgent
	}
	return c.UserAgent
}

// DepthLimitReached reports whether requests produced at the given depth
// must not be dispatched.
func (c CrawlerConfig) DepthLimitReached(depth uint64) bool {
	return depth >= c.EffectiveMaxDepth()
}

// RemainingBudget returns how many more requests may be admitted after
// accepted requests have already been admitted.
func (c CrawlerConfig) RemainingBudget(accepted uint64) uint64 {
	limit := c.EffectiveMaxTotalRequests()
	if accepted >= limit {
		return 0
	}
	return limit - accepted
}

// Validate checks that the configuration can drive a traversal.
// It returns the first problem found.
func (c CrawlerConfig) Validate() error {
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	for _, p := range c.DomainFilteringPolicy.Patterns() {
		if err := validatePattern(p); err != nil {
			return fmt.Errorf("domain filter: %w", err)
		}
	}

	for i, rule := range c.DomainQueueTable {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("domain queue rule %d (%q): %w", i, rule.Pattern, err)
		}
	}

	return nil
}
