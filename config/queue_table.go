package config

import (
	"math/rand/v2"
	"time"

	"github.com/nao1215/actocrawler/internal/match"
)

// DelayRange is the range a per-task startup delay is drawn from.
// A fixed delay is the range whose Min equals Max.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// FixedDelay returns a range that always yields d.
func FixedDelay(d time.Duration) DelayRange {
	return DelayRange{Min: d, Max: d}
}

// DelayBetween returns a range yielding values uniformly in [lo, hi].
func DelayBetween(lo, hi time.Duration) DelayRange {
	return DelayRange{Min: lo, Max: hi}
}

// IsZero reports whether the range never delays.
func (d DelayRange) IsZero() bool {
	return d.Min <= 0 && d.Max <= 0
}

// Sample draws a delay uniformly from the range.
// A single-point or inverted range yields Min.
func (d DelayRange) Sample() time.Duration {
	if d.Max <= d.Min {
		return max(d.Min, 0)
	}
	return d.Min + rand.N(d.Max-d.Min+1)
}

// Validate checks that the range is non-negative and ordered.
func (d DelayRange) Validate() error {
	if d.Min < 0 || d.Max < 0 || d.Min > d.Max {
		return ErrInvalidDelay
	}
	return nil
}

// QueueRule assigns queue settings to hosts matching Pattern.
type QueueRule struct {
	// Pattern is a regular expression matched anywhere in the host.
	Pattern string

	// MaxConcurrency is the number of crawl operations that may run at once
	// for hosts sharing this rule.
	MaxConcurrency int

	// Delay is applied once per task before the crawl operation starts.
	Delay DelayRange

	// RequestsPerSecond optionally adds a token bucket on top of the
	// concurrency limit. Zero disables it.
	RequestsPerSecond float64
}

// Validate checks a single rule.
func (r QueueRule) Validate() error {
	if err := validatePattern(r.Pattern); err != nil {
		return err
	}
	if r.MaxConcurrency <= 0 {
		return ErrInvalidMaxConcurrency
	}
	if err := r.Delay.Validate(); err != nil {
		return err
	}
	if r.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	return nil
}

// QueueTable is the ordered list of queue rules. Declaration order matters:
// lookup returns the first rule whose pattern matches.
type QueueTable []QueueRule

// Lookup returns the first rule matching host.
// The boolean is false when no rule matches and the default applies.
func (t QueueTable) Lookup(host string) (QueueRule, bool) {
	for _, rule := range t {
		if match.Matches(host, rule.Pattern) {
			return rule, true
		}
	}
	return QueueRule{}, false
}
