package config

import (
	"fmt"
	"slices"

	"github.com/nao1215/actocrawler/internal/match"
)

// FilterKind identifies the variant of a FilterPolicy.
type FilterKind int

const (
	// FilterAllDomains allows every host.
	FilterAllDomains FilterKind = iota

	// FilterAllowedDomains allows only hosts matching at least one pattern.
	FilterAllowedDomains

	// FilterDisallowedDomains allows only hosts matching none of the patterns.
	FilterDisallowedDomains
)

// String returns the policy variant name.
func (k FilterKind) String() string {
	switch k {
	case FilterAllDomains:
		return "all"
	case FilterAllowedDomains:
		return "allowed"
	case FilterDisallowedDomains:
		return "disallowed"
	default:
		return "unknown"
	}
}

// FilterPolicy gates which hosts may be crawled.
// Patterns are regular expressions matched anywhere in the host.
// The zero value is the allow-all policy.
type FilterPolicy struct {
	kind     FilterKind
	patterns []string
}

// AllDomains returns the policy that allows every host.
func AllDomains() FilterPolicy {
	return FilterPolicy{kind: FilterAllDomains}
}

// AllowedDomains returns a policy allowing only hosts that match one of patterns.
func AllowedDomains(patterns ...string) FilterPolicy {
	return FilterPolicy{kind: FilterAllowedDomains, patterns: slices.Clone(patterns)}
}

// DisallowedDomains returns a policy rejecting hosts that match any of patterns.
func DisallowedDomains(patterns ...string) FilterPolicy {
	return FilterPolicy{kind: FilterDisallowedDomains, patterns: slices.Clone(patterns)}
}

// Kind returns the policy variant.
func (p FilterPolicy) Kind() FilterKind {
	return p.kind
}

// Patterns returns a copy of the policy patterns.
func (p FilterPolicy) Patterns() []string {
	return slices.Clone(p.patterns)
}

// IsDomainAllowed reports whether host passes the policy.
func (p FilterPolicy) IsDomainAllowed(host string) bool {
	switch p.kind {
	case FilterAllowedDomains:
		return match.Any(host, p.patterns)
	case FilterDisallowedDomains:
		return !match.Any(host, p.patterns)
	default:
		return true
	}
}

// String returns a short description such as "allowed[a b]".
func (p FilterPolicy) String() string {
	if p.kind == FilterAllDomains {
		return p.kind.String()
	}
	return fmt.Sprintf("%s%v", p.kind, p.patterns)
}

func validatePattern(pattern string) error {
	if pattern == "" {
		return ErrEmptyPattern
	}
	if _, err := match.Compile(pattern); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return nil
}
