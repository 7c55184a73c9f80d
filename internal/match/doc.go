// Package match provides regular expression matching for host patterns.
//
// Patterns are matched with partial (unanchored) semantics: a pattern matches
// a host if it matches anywhere in the host string. Callers that need an exact
// host match must anchor their own patterns with ^ and $.
//
// Compiled expressions are cached process-wide, so repeated evaluation of the
// same domain rules does not recompile them.
package match
