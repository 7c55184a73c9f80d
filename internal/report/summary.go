package report

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/actocrawler/crawler"
)

// Error kinds reported in Summary.Errors.
const (
	KindDomainNotAllowed = "domain not allowed"
	KindInvalidResponse  = "invalid response"
	KindInvalidData      = "invalid data"
	KindTimeout          = "timeout"
	KindCanceled         = "canceled"
	KindCrawlFailed      = "crawl failed"
)

// HostStats counts results for one host.
type HostStats struct {
	Host      string `json:"host"`
	Requests  int    `json:"requests"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// DepthStats counts results at one depth.
type DepthStats struct {
	Depth    uint64 `json:"depth"`
	Requests int    `json:"requests"`
}

// ErrorStats counts failures of one kind.
type ErrorStats struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// Failure is a single failed request.
type Failure struct {
	Order uint64 `json:"order"`
	Depth uint64 `json:"depth"`
	URL   string `json:"url"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// Summary aggregates the results of one crawl.
// Observe may be called from several goroutines.
type Summary struct {
	RunID       string    `json:"runId,omitempty"`
	Seeds       []string  `json:"seeds"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Interrupted bool      `json:"interrupted"`

	Requests  int    `json:"requests"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	MaxDepth  uint64 `json:"maxDepth"`

	Hosts    []HostStats  `json:"hosts"`
	Depths   []DepthStats `json:"depths"`
	Errors   []ErrorStats `json:"errors"`
	Failures []Failure    `json:"failures"`

	mu     sync.Mutex
	hosts  map[string]*HostStats
	depths map[uint64]int
	kinds  map[string]int
}

// NewSummary starts a summary for a crawl of seeds.
func NewSummary(seeds ...string) *Summary {
	return &Summary{
		Seeds:     append([]string{}, seeds...),
		StartedAt: time.Now(),
		hosts:     make(map[string]*HostStats),
		depths:    make(map[uint64]int),
		kinds:     make(map[string]int),
	}
}

// Observe adds a DidCrawl event to s. WillCrawl events are ignored.
func Observe[O, I any](s *Summary, ev crawler.Event[O, I]) {
	if ev.Kind != crawler.DidCrawl {
		return
	}
	s.add(ev.Request.Order, ev.Request.Depth, ev.Request.String(), ev.Request.Host(), ev.Err)
}

func (s *Summary) add(order, depth uint64, rawURL, host string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests++
	s.MaxDepth = max(s.MaxDepth, depth)
	s.depths[depth]++

	hs, ok := s.hosts[host]
	if !ok {
		hs = &HostStats{Host: host}
		s.hosts[host] = hs
	}
	hs.Requests++

	if err == nil {
		s.Succeeded++
		hs.Succeeded++
		return
	}

	kind := ErrorKind(err)
	s.Failed++
	hs.Failed++
	s.kinds[kind]++
	s.Failures = append(s.Failures, Failure{
		Order: order,
		Depth: depth,
		URL:   rawURL,
		Kind:  kind,
		Error: err.Error(),
	})
}

// Finish seals the summary and fills the sorted breakdowns.
// interrupted marks a crawl that was cancelled before completion.
func (s *Summary) Finish(interrupted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.FinishedAt = time.Now()
	s.Interrupted = interrupted

	s.Hosts = make([]HostStats, 0, len(s.hosts))
	for _, hs := range s.hosts {
		s.Hosts = append(s.Hosts, *hs)
	}
	slices.SortFunc(s.Hosts, func(a, b HostStats) int {
		if c := cmp.Compare(b.Requests, a.Requests); c != 0 {
			return c
		}
		return cmp.Compare(a.Host, b.Host)
	})

	s.Depths = make([]DepthStats, 0, len(s.depths))
	for d, n := range s.depths {
		s.Depths = append(s.Depths, DepthStats{Depth: d, Requests: n})
	}
	slices.SortFunc(s.Depths, func(a, b DepthStats) int {
		return cmp.Compare(a.Depth, b.Depth)
	})

	s.Errors = make([]ErrorStats, 0, len(s.kinds))
	for k, n := range s.kinds {
		s.Errors = append(s.Errors, ErrorStats{Kind: k, Count: n})
	}
	slices.SortFunc(s.Errors, func(a, b ErrorStats) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})

	if s.Failures == nil {
		s.Failures = []Failure{}
	}
	slices.SortFunc(s.Failures, func(a, b Failure) int {
		return cmp.Compare(a.Order, b.Order)
	})
}

// Duration returns the elapsed crawl time.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// SuccessRate returns the fraction of successful requests in [0, 1].
func (s *Summary) SuccessRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Requests)
}

// ErrorKind classifies a DidCrawl error.
func ErrorKind(err error) string {
	var notAllowed *crawler.DomainNotAllowedError
	var invalid *crawler.InvalidResponseError

	switch {
	case errors.As(err, &notAllowed):
		return KindDomainNotAllowed
	case errors.As(err, &invalid):
		return KindInvalidResponse
	case errors.Is(err, crawler.ErrInvalidData):
		return KindInvalidData
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindCrawlFailed
	}
}
