package queue

import (
	"testing"

	"github.com/nao1215/actocrawler/config"
)

func TestRouterResolve(t *testing.T) {
	t.Parallel()

	r := NewRouter(config.QueueTable{
		{Pattern: `api\.example\.com`, MaxConcurrency: 1},
		{Pattern: `example\.com`, MaxConcurrency: 4},
	})

	tests := []struct {
		name     string
		host     string
		wantOK   bool
		wantConc int
	}{
		{"first rule", "api.example.com", true, 1},
		{"second rule", "www.example.com", true, 4},
		{"partial match", "example.com.evil.test", true, 4},
		{"no rule", "other.test", false, 0},
		{"empty host", "", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rule, ok := r.Resolve(tt.host)
			if ok != tt.wantOK || rule.MaxConcurrency != tt.wantConc {
				t.Errorf("Resolve(%q) = (%+v, %v), want concurrency %d ok %v",
					tt.host, rule, ok, tt.wantConc, tt.wantOK)
			}
		})
	}
}

func TestRouterQueueFor(t *testing.T) {
	t.Parallel()

	r := NewRouter(config.QueueTable{
		{Pattern: `example\.com$`, MaxConcurrency: 2},
	})

	a := r.QueueFor("a.example.com")
	b := r.QueueFor("b.example.com")
	if a != b {
		t.Error("hosts matching the same rule should share a queue")
	}
	if a.Key() != `example\.com$` || a.Limit() != 2 {
		t.Errorf("unexpected rule queue: key=%q limit=%d", a.Key(), a.Limit())
	}

	d1 := r.QueueFor("other.test")
	d2 := r.QueueFor("")
	if d1 != d2 || d1.Key() != DefaultKey {
		t.Error("unmatched hosts should share the default queue")
	}

	if r.Len() != 1 {
		t.Errorf("expected 1 rule queue, got %d", r.Len())
	}
}
