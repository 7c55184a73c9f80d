package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidData is returned by helpers when a response payload cannot be
	// decoded into the expected representation.
	ErrInvalidData = errors.New("invalid data")

	// ErrFinished is returned by Visit once the traversal has completed or
	// the crawler has been closed.
	ErrFinished = errors.New("crawler already finished")
)

// InvalidResponseError reports a transport response that could not be
// interpreted. Response may be nil when no response was received.
type InvalidResponseError struct {
	Response *http.Response
	Reason   string
}

func (e *InvalidResponseError) Error() string {
	if e.Response == nil {
		return "invalid response: " + e.Reason
	}
	return fmt.Sprintf("invalid response (%s): %s", e.Response.Status, e.Reason)
}

// DomainNotAllowedError is reported for requests rejected by the domain
// filtering policy. It never originates from a crawl function.
type DomainNotAllowedError struct {
	Host string
}

func (e *DomainNotAllowedError) Error() string {
	return fmt.Sprintf("domain not allowed: %q", e.Host)
}

// CrawlFailedError wraps an error returned by the crawl function, including
// a recovered panic.
type CrawlFailedError struct {
	Err error
}

func (e *CrawlFailedError) Error() string {
	return "crawl failed: " + e.Err.Error()
}

func (e *CrawlFailedError) Unwrap() error {
	return e.Err
}
