package crawler

import (
	"fmt"
	"net/url"
)

// UserRequest is a request authored by the caller or returned by a crawl
// function. Info is threaded through the traversal untouched.
type UserRequest[I any] struct {
	URL  *url.URL
	Info I
}

// NewUserRequest parses rawURL into a UserRequest carrying info.
func NewUserRequest[I any](rawURL string, info I) (UserRequest[I], error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return UserRequest[I]{}, fmt.Errorf("parse request url: %w", err)
	}
	return UserRequest[I]{URL: u, Info: info}, nil
}

// Host returns the destination host, or "" when the URL has none.
func (r UserRequest[I]) Host() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}

// String returns the destination URL.
func (r UserRequest[I]) String() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Request is a UserRequest admitted into the schedule.
type Request[I any] struct {
	UserRequest[I]

	// Order is the admission sequence number, starting at 0.
	Order uint64

	// Depth is 1 for requests submitted through Visit and parent depth + 1
	// for requests produced by a crawl function.
	Depth uint64
}
