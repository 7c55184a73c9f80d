package match

import (
	"fmt"
	"regexp"
	"sync"
)

// cache holds compiled patterns keyed by their source text.
// Invalid patterns are stored as nil so they are not recompiled on every call.
var cache sync.Map // map[string]*regexp.Regexp

// Compile returns the compiled form of pattern, using the shared cache.
func Compile(pattern string) (*regexp.Regexp, error) {
	if v, ok := cache.Load(pattern); ok {
		re, _ := v.(*regexp.Regexp)
		if re == nil {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		cache.Store(pattern, (*regexp.Regexp)(nil))
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	actual, _ := cache.LoadOrStore(pattern, re)
	compiled, _ := actual.(*regexp.Regexp)
	return compiled, nil
}

// Matches reports whether pattern matches anywhere in s.
// An invalid pattern never matches.
func Matches(s, pattern string) bool {
	re, err := Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// Any reports whether s matches at least one of the patterns.
func Any(s string, patterns []string) bool {
	for _, p := range patterns {
		if Matches(s, p) {
			return true
		}
	}
	return false
}
