package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// TestNewConfig verifies the spelled-out defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("depth and requests are unlimited", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxDepth != Unlimited {
			t.Errorf("expected MaxDepth to be unlimited, got %d", cfg.MaxDepth)
		}
		if cfg.MaxTotalRequests != Unlimited {
			t.Errorf("expected MaxTotalRequests to be unlimited, got %d", cfg.MaxTotalRequests)
		}
	})

	t.Run("no timeout", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 0 {
			t.Errorf("expected no timeout, got %v", cfg.Timeout)
		}
	})

	t.Run("default user agent", func(t *testing.T) {
		t.Parallel()
		if cfg.UserAgent != "ActoCrawler" {
			t.Errorf("expected UserAgent 'ActoCrawler', got %q", cfg.UserAgent)
		}
	})

	t.Run("all domains allowed", func(t *testing.T) {
		t.Parallel()
		if cfg.DomainFilteringPolicy.Kind() != FilterAllDomains {
			t.Errorf("expected all-domains policy, got %s", cfg.DomainFilteringPolicy)
		}
		if len(cfg.DomainQueueTable) != 0 {
			t.Errorf("expected empty queue table, got %d rules", len(cfg.DomainQueueTable))
		}
	})
}

func TestZeroValueDefaults(t *testing.T) {
	t.Parallel()

	var cfg CrawlerConfig

	if got := cfg.EffectiveMaxDepth(); got != Unlimited {
		t.Errorf("EffectiveMaxDepth() = %d, want unlimited", got)
	}
	if got := cfg.EffectiveMaxTotalRequests(); got != Unlimited {
		t.Errorf("EffectiveMaxTotalRequests() = %d, want unlimited", got)
	}
	if got := cfg.EffectiveUserAgent(); got != DefaultUserAgent {
		t.Errorf("EffectiveUserAgent() = %q, want %q", got, DefaultUserAgent)
	}
	if !cfg.DomainFilteringPolicy.IsDomainAllowed("anything.example") {
		t.Error("zero policy should allow every domain")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero config should be valid, got %v", err)
	}
}

func TestDepthLimitReached(t *testing.T) {
	t.Parallel()

	cfg := CrawlerConfig{MaxDepth: 2}
	tests := []struct {
		depth uint64
		want  bool
	}{
		{0, false},
		{1, false},
		{2, true},
		{3, true},
	}
	for _, tt := range tests {
		if got := cfg.DepthLimitReached(tt.depth); got != tt.want {
			t.Errorf("DepthLimitReached(%d) = %v, want %v", tt.depth, got, tt.want)
		}
	}

	if (CrawlerConfig{}).DepthLimitReached(1 << 40) {
		t.Error("unlimited depth should never be reached")
	}
}

func TestRemainingBudget(t *testing.T) {
	t.Parallel()

	cfg := CrawlerConfig{MaxTotalRequests: 5}
	tests := []struct {
		accepted uint64
		want     uint64
	}{
		{0, 5},
		{3, 2},
		{5, 0},
		{9, 0},
	}
	for _, tt := range tests {
		if got := cfg.RemainingBudget(tt.accepted); got != tt.want {
			t.Errorf("RemainingBudget(%d) = %d, want %d", tt.accepted, got, tt.want)
		}
	}
}

// TestConfigValidate tests one validation rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validRule := func() QueueRule {
		return QueueRule{Pattern: `example\.com$`, MaxConcurrency: 2, Delay: FixedDelay(time.Millisecond)}
	}

	tests := []struct {
		name    string
		mutate  func(*CrawlerConfig)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(*CrawlerConfig) {},
		},
		{
			name:    "negative timeout",
			mutate:  func(c *CrawlerConfig) { c.Timeout = -time.Second },
			wantErr: ErrInvalidTimeout,
		},
		{
			name: "empty rule pattern",
			mutate: func(c *CrawlerConfig) {
				r := validRule()
				r.Pattern = ""
				c.DomainQueueTable = QueueTable{r}
			},
			wantErr: ErrEmptyPattern,
		},
		{
			name: "invalid rule pattern",
			mutate: func(c *CrawlerConfig) {
				r := validRule()
				r.Pattern = "[a-"
				c.DomainQueueTable = QueueTable{r}
			},
			wantErr: ErrInvalidPattern,
		},
		{
			name: "zero concurrency",
			mutate: func(c *CrawlerConfig) {
				r := validRule()
				r.MaxConcurrency = 0
				c.DomainQueueTable = QueueTable{r}
			},
			wantErr: ErrInvalidMaxConcurrency,
		},
		{
			name: "inverted delay",
			mutate: func(c *CrawlerConfig) {
				r := validRule()
				r.Delay = DelayBetween(time.Second, time.Millisecond)
				c.DomainQueueTable = QueueTable{r}
			},
			wantErr: ErrInvalidDelay,
		},
		{
			name: "negative rate",
			mutate: func(c *CrawlerConfig) {
				r := validRule()
				r.RequestsPerSecond = -1
				c.DomainQueueTable = QueueTable{r}
			},
			wantErr: ErrInvalidRate,
		},
		{
			name:    "invalid filter pattern",
			mutate:  func(c *CrawlerConfig) { c.DomainFilteringPolicy = AllowedDomains("(") },
			wantErr: ErrInvalidPattern,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			cfg.DomainQueueTable = QueueTable{validRule()}
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFilterPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy FilterPolicy
		host   string
		want   bool
	}{
		{"all allows", AllDomains(), "example.com", true},
		{"allowed match", AllowedDomains(`example\.com$`), "www.example.com", true},
		{"allowed partial match", AllowedDomains("example"), "my-example.org", true},
		{"allowed miss", AllowedDomains(`example\.com$`), "example.org", false},
		{"allowed empty list", AllowedDomains(), "example.com", false},
		{"disallowed match", DisallowedDomains("ads"), "ads.example.com", false},
		{"disallowed miss", DisallowedDomains("ads"), "example.com", true},
		{"invalid pattern never matches", AllowedDomains("[a-"), "[a-", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.policy.IsDomainAllowed(tt.host); got != tt.want {
				t.Errorf("%s.IsDomainAllowed(%q) = %v, want %v", tt.policy, tt.host, got, tt.want)
			}
		})
	}
}

func TestFilterPolicyCopiesPatterns(t *testing.T) {
	t.Parallel()

	patterns := []string{"a"}
	p := AllowedDomains(patterns...)
	patterns[0] = "b"

	if got := p.Patterns(); got[0] != "a" {
		t.Errorf("policy patterns changed with caller slice: %v", got)
	}
}

func TestQueueTableLookup(t *testing.T) {
	t.Parallel()

	table := QueueTable{
		{Pattern: `api\.example\.com`, MaxConcurrency: 1},
		{Pattern: `example\.com`, MaxConcurrency: 3},
	}

	t.Run("first match wins", func(t *testing.T) {
		t.Parallel()
		rule, ok := table.Lookup("api.example.com")
		if !ok || rule.MaxConcurrency != 1 {
			t.Errorf("expected the api rule, got %+v (ok=%v)", rule, ok)
		}
	})

	t.Run("later rule", func(t *testing.T) {
		t.Parallel()
		rule, ok := table.Lookup("www.example.com")
		if !ok || rule.MaxConcurrency != 3 {
			t.Errorf("expected the example.com rule, got %+v (ok=%v)", rule, ok)
		}
	})

	t.Run("no match", func(t *testing.T) {
		t.Parallel()
		if _, ok := table.Lookup("other.org"); ok {
			t.Error("expected no rule for other.org")
		}
	})
}

func TestDelayRangeSample(t *testing.T) {
	t.Parallel()

	if got := FixedDelay(50 * time.Millisecond).Sample(); got != 50*time.Millisecond {
		t.Errorf("fixed delay sample = %v, want 50ms", got)
	}
	if !(DelayRange{}).IsZero() {
		t.Error("zero range should report IsZero")
	}

	r := DelayBetween(10*time.Millisecond, 20*time.Millisecond)
	for range 100 {
		got := r.Sample()
		if got < r.Min || got > r.Max {
			t.Fatalf("sample %v outside [%v, %v]", got, r.Min, r.Max)
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("full file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := `maxDepth: 3
maxTotalRequests: 50
timeout: 1500ms
userAgent: test-agent
allowedDomains:
  - 'example\.com$'
domainQueues:
  - pattern: 'example\.com$'
    maxConcurrency: 2
    delay: 100ms
    delayMax: 300ms
    requestsPerSecond: 4
  - pattern: 'other'
    maxConcurrency: 1
    delay: 2
`
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}
		cfg, err := f.CrawlerConfig()
		if err != nil {
			t.Fatalf("CrawlerConfig() error = %v", err)
		}

		if cfg.MaxDepth != 3 || cfg.MaxTotalRequests != 50 {
			t.Errorf("unexpected budgets: depth=%d requests=%d", cfg.MaxDepth, cfg.MaxTotalRequests)
		}
		if cfg.Timeout != 1500*time.Millisecond {
			t.Errorf("Timeout = %v, want 1.5s", cfg.Timeout)
		}
		if cfg.UserAgent != "test-agent" {
			t.Errorf("UserAgent = %q", cfg.UserAgent)
		}
		if !cfg.DomainFilteringPolicy.IsDomainAllowed("www.example.com") {
			t.Error("expected www.example.com to be allowed")
		}
		if cfg.DomainFilteringPolicy.IsDomainAllowed("example.org") {
			t.Error("expected example.org to be rejected")
		}
		if len(cfg.DomainQueueTable) != 2 {
			t.Fatalf("expected 2 queue rules, got %d", len(cfg.DomainQueueTable))
		}

		first := cfg.DomainQueueTable[0]
		if first.Delay != DelayBetween(100*time.Millisecond, 300*time.Millisecond) {
			t.Errorf("first delay = %+v", first.Delay)
		}
		if first.RequestsPerSecond != 4 {
			t.Errorf("first rate = %v", first.RequestsPerSecond)
		}
		if second := cfg.DomainQueueTable[1]; second.Delay != FixedDelay(2*time.Second) {
			t.Errorf("numeric delay should be seconds, got %+v", second.Delay)
		}
	})

	t.Run("conflicting filters", func(t *testing.T) {
		t.Parallel()
		f := &File{AllowedDomains: []string{"a"}, DisallowedDomains: []string{"b"}}
		if _, err := f.CrawlerConfig(); !errors.Is(err, ErrConflictingFilters) {
			t.Errorf("expected ErrConflictingFilters, got %v", err)
		}
	})

	t.Run("invalid duration", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("timeout: soon\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected an error for an invalid duration")
		}
	})
}

func TestWriteConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := WriteConfigFile(path, SampleFile()); err != nil {
		t.Fatalf("WriteConfigFile() error = %v", err)
	}

	f, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}
	cfg, err := f.CrawlerConfig()
	if err != nil {
		t.Fatalf("sample config should be valid: %v", err)
	}
	if cfg.MaxDepth != 3 || cfg.Timeout != 30*time.Second {
		t.Errorf("unexpected sample config: %+v", cfg)
	}

	if err := WriteConfigFile(path, SampleFile()); err == nil {
		t.Error("expected an error when the file already exists")
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path exists", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "c.yaml")
		if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile() = %q, want %q", got, path)
		}
	})

	t.Run("explicit path missing", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); got != "" {
			t.Errorf("FindConfigFile() = %q, want empty", got)
		}
	})
}

func TestMarshalFile(t *testing.T) {
	t.Parallel()

	data, err := MarshalFile(SampleFile())
	if err != nil {
		t.Fatalf("MarshalFile() error = %v", err)
	}
	out := string(data)
	for _, want := range []string{"# Maximum depth", "maxDepth: 3", "# Per-host queues", "delayMax: 1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q:\n%s", want, out)
		}
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		t.Fatalf("commented YAML should parse: %v", err)
	}
	if f.MaxTotalRequests != 100 || len(f.DomainQueues) != 1 {
		t.Errorf("unexpected round trip: %+v", f)
	}
}
