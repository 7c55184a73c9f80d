package report

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/nao1215/actocrawler/crawler"
)

func event(t *testing.T, kind crawler.EventKind, rawURL string, order, depth uint64, err error) crawler.Event[string, struct{}] {
	t.Helper()

	u, perr := url.Parse(rawURL)
	if perr != nil {
		t.Fatalf("failed to parse %q: %v", rawURL, perr)
	}
	return crawler.Event[string, struct{}]{
		Kind: kind,
		Request: crawler.Request[struct{}]{
			UserRequest: crawler.UserRequest[struct{}]{URL: u},
			Order:       order,
			Depth:       depth,
		},
		Output: "ok",
		Err:    err,
	}
}

// createTestSummary builds a finished summary with two hosts and two failures.
func createTestSummary(t *testing.T) *Summary {
	t.Helper()

	s := NewSummary("https://example.com")
	Observe(s, event(t, crawler.WillCrawl, "https://example.com", 0, 1, nil))
	Observe(s, event(t, crawler.DidCrawl, "https://example.com", 0, 1, nil))
	Observe(s, event(t, crawler.DidCrawl, "https://example.com/a", 1, 2, nil))
	Observe(s, event(t, crawler.DidCrawl, "https://blocked.example/", 3, 2,
		&crawler.DomainNotAllowedError{Host: "blocked.example"}))
	Observe(s, event(t, crawler.DidCrawl, "https://example.com/b", 2, 2,
		&crawler.CrawlFailedError{Err: &crawler.InvalidResponseError{Reason: "body too large"}}))
	s.Finish(false)
	return s
}

func TestSummary(t *testing.T) {
	t.Parallel()

	s := createTestSummary(t)

	if s.Requests != 4 || s.Succeeded != 2 || s.Failed != 2 {
		t.Errorf("Requests/Succeeded/Failed = %d/%d/%d, want 4/2/2", s.Requests, s.Succeeded, s.Failed)
	}
	if s.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", s.MaxDepth)
	}
	if got := s.SuccessRate(); got != 0.5 {
		t.Errorf("SuccessRate() = %v, want 0.5", got)
	}

	if len(s.Hosts) != 2 {
		t.Fatalf("Hosts = %+v, want 2 hosts", s.Hosts)
	}
	if s.Hosts[0].Host != "example.com" || s.Hosts[0].Requests != 3 || s.Hosts[0].Failed != 1 {
		t.Errorf("Hosts[0] = %+v", s.Hosts[0])
	}

	wantDepths := []DepthStats{{Depth: 1, Requests: 1}, {Depth: 2, Requests: 3}}
	if fmt.Sprint(s.Depths) != fmt.Sprint(wantDepths) {
		t.Errorf("Depths = %v, want %v", s.Depths, wantDepths)
	}

	if len(s.Failures) != 2 || s.Failures[0].Order != 2 || s.Failures[1].Order != 3 {
		t.Errorf("Failures should be sorted by order: %+v", s.Failures)
	}
	if s.Failures[0].Kind != KindInvalidResponse || s.Failures[1].Kind != KindDomainNotAllowed {
		t.Errorf("unexpected failure kinds: %+v", s.Failures)
	}

	if s.FinishedAt.IsZero() || s.Duration() < 0 {
		t.Errorf("unexpected timing: %v %v", s.FinishedAt, s.Duration())
	}
}

func TestSummaryEmpty(t *testing.T) {
	t.Parallel()

	s := NewSummary()
	s.Finish(true)

	if !s.Interrupted {
		t.Error("Interrupted = false, want true")
	}
	if s.SuccessRate() != 0 {
		t.Errorf("SuccessRate() = %v, want 0", s.SuccessRate())
	}
	if s.Seeds == nil || s.Hosts == nil || s.Failures == nil {
		t.Error("slices should be empty, not nil")
	}
}

func TestSummaryConcurrentObserve(t *testing.T) {
	t.Parallel()

	s := NewSummary()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Observe(s, event(t, crawler.DidCrawl, fmt.Sprintf("https://h%d.example", i%5), uint64(i), 1, nil))
		}()
	}
	wg.Wait()
	s.Finish(false)

	if s.Requests != 50 || len(s.Hosts) != 5 {
		t.Errorf("Requests = %d, hosts = %d, want 50 and 5", s.Requests, len(s.Hosts))
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "domain not allowed",
			err:  &crawler.DomainNotAllowedError{Host: "x"},
			want: KindDomainNotAllowed,
		},
		{
			name: "wrapped invalid response",
			err:  &crawler.CrawlFailedError{Err: &crawler.InvalidResponseError{Reason: "bad"}},
			want: KindInvalidResponse,
		},
		{
			name: "wrapped invalid data",
			err:  &crawler.CrawlFailedError{Err: fmt.Errorf("decode: %w", crawler.ErrInvalidData)},
			want: KindInvalidData,
		},
		{
			name: "timeout",
			err:  &crawler.CrawlFailedError{Err: context.DeadlineExceeded},
			want: KindTimeout,
		},
		{
			name: "canceled",
			err:  context.Canceled,
			want: KindCanceled,
		},
		{
			name: "other",
			err:  &crawler.CrawlFailedError{Err: errors.New("boom")},
			want: KindCrawlFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ErrorKind(tt.err); got != tt.want {
				t.Errorf("ErrorKind() = %q, want %q", got, tt.want)
			}
		})
	}
}
