package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// AppName is used to build XDG directory paths.
	AppName = "actocrawl"

	// DefaultConfigFile is the configuration file looked up in the current directory.
	DefaultConfigFile = ".actocrawl.yaml"

	// XDGConfigFile is the configuration file name inside XDGConfigDir.
	XDGConfigFile = "config.yaml"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the on-disk representation of a CrawlerConfig.
//
// Example:
//
//	maxDepth: 3
//	maxTotalRequests: 500
//	timeout: 30s
//	userAgent: "my-bot/1.0"
//	allowedDomains:
//	  - "example\\.com$"
//	domainQueues:
//	  - pattern: "example\\.com$"
//	    maxConcurrency: 2
//	    delay: 500ms
//	    delayMax: 1500ms
//	    requestsPerSecond: 4
type File struct {
	MaxDepth          uint64      `yaml:"maxDepth"`
	MaxTotalRequests  uint64      `yaml:"maxTotalRequests"`
	Timeout           Duration    `yaml:"timeout"`
	UserAgent         string      `yaml:"userAgent"`
	AllowedDomains    []string    `yaml:"allowedDomains"`
	DisallowedDomains []string    `yaml:"disallowedDomains"`
	DomainQueues      []QueueFile `yaml:"domainQueues"`
}

// QueueFile is the on-disk representation of a QueueRule.
// When DelayMax is omitted the delay is fixed at Delay.
type QueueFile struct {
	Pattern           string   `yaml:"pattern"`
	MaxConcurrency    int      `yaml:"maxConcurrency"`
	Delay             Duration `yaml:"delay"`
	DelayMax          Duration `yaml:"delayMax"`
	RequestsPerSecond float64  `yaml:"requestsPerSecond"`
}

// Rule converts the entry into a QueueRule.
func (q QueueFile) Rule() QueueRule {
	delay := FixedDelay(q.Delay.Duration)
	if q.DelayMax.Duration > 0 {
		delay = DelayBetween(q.Delay.Duration, q.DelayMax.Duration)
	}
	return QueueRule{
		Pattern:           q.Pattern,
		MaxConcurrency:    q.MaxConcurrency,
		Delay:             delay,
		RequestsPerSecond: q.RequestsPerSecond,
	}
}

// CrawlerConfig converts the file into a validated CrawlerConfig.
func (f *File) CrawlerConfig() (CrawlerConfig, error) {
	if len(f.AllowedDomains) > 0 && len(f.DisallowedDomains) > 0 {
		return CrawlerConfig{}, ErrConflictingFilters
	}

	cfg := CrawlerConfig{
		MaxDepth:         f.MaxDepth,
		MaxTotalRequests: f.MaxTotalRequests,
		Timeout:          f.Timeout.Duration,
		UserAgent:        f.UserAgent,
	}

	switch {
	case len(f.AllowedDomains) > 0:
		cfg.DomainFilteringPolicy = AllowedDomains(f.AllowedDomains...)
	case len(f.DisallowedDomains) > 0:
		cfg.DomainFilteringPolicy = DisallowedDomains(f.DisallowedDomains...)
	default:
		cfg.DomainFilteringPolicy = AllDomains()
	}

	for _, q := range f.DomainQueues {
		cfg.DomainQueueTable = append(cfg.DomainQueueTable, q.Rule())
	}

	if err := cfg.Validate(); err != nil {
		return CrawlerConfig{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

// fieldComments are written above the matching keys by WriteConfigFile.
var fieldComments = map[string]string{
	"maxDepth":          "# Maximum depth of dispatched requests. Seeds have depth 1, 0 means unlimited.",
	"maxTotalRequests":  "# Maximum number of requests admitted into the schedule, 0 means unlimited.",
	"timeout":           "# Per-request timeout such as 30s or 1m. 0 disables it.",
	"userAgent":         "# User-Agent header sent with every request.",
	"allowedDomains":    "# Only hosts matching one of these regular expressions are crawled.",
	"disallowedDomains": "# Hosts matching one of these regular expressions are rejected.\n# Cannot be combined with allowedDomains.",
	"domainQueues":      "# Per-host queues. The first rule whose pattern matches the host wins.\n# Hosts matching no rule share one unbounded queue without delay.",
}

// MarshalFile encodes f as YAML with a comment above every top-level key.
func MarshalFile(f *File) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(f); err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if c, ok := fieldComments[key.Value]; ok {
			key.HeadComment = c
		}
	}
	return yaml.Marshal(&doc)
}

// WriteConfigFile writes f to path as commented YAML, refusing to overwrite
// an existing file.
func WriteConfigFile(path string, f *File) error {
	data, err := MarshalFile(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // path is chosen by the user
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .actocrawl.yaml in the current directory
// 3. Look for config.yaml in XDGConfigDir
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	p := filepath.Join(XDGConfigDir(), XDGConfigFile)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// XDGConfigDir returns the XDG config directory for actocrawl.
// On Linux: ~/.config/actocrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGDataDir returns the XDG data directory for actocrawl.
// On Linux: ~/.local/share/actocrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// SampleFile returns the configuration written by "actocrawl init".
func SampleFile() *File {
	return &File{
		MaxDepth:         3,
		MaxTotalRequests: 100,
		Timeout:          DurationFrom(30 * time.Second),
		UserAgent:        DefaultUserAgent,
		DomainQueues: []QueueFile{
			{
				Pattern:        ".*",
				MaxConcurrency: 4,
				Delay:          DurationFrom(500 * time.Millisecond),
				DelayMax:       DurationFrom(1500 * time.Millisecond),
			},
		},
	}
}
