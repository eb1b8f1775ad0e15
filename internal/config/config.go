// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"go.yaml.in/yaml/v3"

	gateway "github.com/ryuka-api/ryuka/internal"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Cache     CacheConfig     `yaml:"cache"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Sources   []SourceEntry   `yaml:"sources"`
	Database  DatabaseConfig  `yaml:"database"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`     // OTLP gRPC endpoint
	ServiceName string  `yaml:"service_name"` // resource service.name
	SampleRate  float64 `yaml:"sample_rate"`  // 0.0 to 1.0
}

// LogConfig controls the process-wide slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Backend    string        `yaml:"backend"`     // "fifo" or "tinylfu"
	MaxEntries int           `yaml:"max_entries"` // capacity bound
	TTL        time.Duration `yaml:"ttl"`         // default per-namespace TTL; negative = no expiry
	Coalesce   bool          `yaml:"coalesce"`    // single-flight concurrent misses
}

// FetchConfig holds outbound provider call settings.
type FetchConfig struct {
	Timeout    time.Duration `yaml:"timeout"`     // per provider call
	UserAgent  string        `yaml:"user_agent"`  // browser-like UA sent to providers
	DNSCache   bool          `yaml:"dns_cache"`   // cache provider host lookups
	DNSRefresh time.Duration `yaml:"dns_refresh"` // refresh interval for cached lookups
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds fetch log settings. An empty DSN disables the fetch log.
type DatabaseConfig struct {
	DSN       string        `yaml:"dsn"`       // file path or ":memory:"
	Retention time.Duration `yaml:"retention"` // prune records older than this; 0 keeps everything
}

// SourceEntry is the ordered provider list for one content kind.
type SourceEntry struct {
	Kind      string          `yaml:"kind"`
	TTL       *time.Duration  `yaml:"ttl"` // nil inherits cache.ttl; <= 0 stores without expiry
	Providers []ProviderEntry `yaml:"providers"`
}

// ProviderEntry is a provider endpoint in the config file.
type ProviderEntry struct {
	Name        string        `yaml:"name"`
	BaseURL     string        `yaml:"base_url"` // URL-encoded target is appended
	Timeout     time.Duration `yaml:"timeout"`  // overrides fetch.timeout
	SuccessPath string        `yaml:"success_path"`
	Enabled     *bool         `yaml:"enabled"`
}

// IsEnabled reports whether the provider is enabled (defaults to true when nil).
func (p ProviderEntry) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// DefaultSources mirrors the provider lists the service shipped with.
func DefaultSources() []SourceEntry {
	return []SourceEntry{
		{Kind: string(gateway.KindYouTube), Providers: []ProviderEntry{
			{Name: "fasturl", BaseURL: "https://fastrestapis.fasturl.cloud/downup/ytmp4?url="},
			{Name: "allorigins", BaseURL: "https://api.allorigins.win/raw?url="},
			{Name: "proxify", BaseURL: "https://proxify-d.vercel.app/api?url="},
		}},
		{Kind: string(gateway.KindTikTok), Providers: []ProviderEntry{
			{Name: "tiklydown", BaseURL: "https://api.tiklydown.eu.org/api/download?url="},
		}},
		{Kind: string(gateway.KindInstagram), Providers: []ProviderEntry{
			{Name: "saveinsta", BaseURL: "https://saveinsta.io/api?url="},
		}},
		{Kind: string(gateway.KindFacebook)},
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Backend:    "fifo",
			MaxEntries: 100,
			TTL:        5 * time.Minute,
		},
		Fetch: FetchConfig{
			Timeout:    15 * time.Second,
			DNSCache:   true,
			DNSRefresh: 5 * time.Minute,
		},
		Database: DatabaseConfig{
			Retention: 7 * 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true},
			Tracing: TracingConfig{ServiceName: "ryuka", SampleRate: 1.0},
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
// Sources fall back to DefaultSources when the file lists none.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Cache.Backend {
	case "fifo", "tinylfu":
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries: must be positive, got %d", c.Cache.MaxEntries))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout: must be positive, got %s", c.Fetch.Timeout))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format: want json or text, got %q", c.Log.Format))
	}
	if r := c.Telemetry.Tracing.SampleRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.tracing.sample_rate: %v out of [0, 1]", r))
	}
	if c.Telemetry.Tracing.Enabled && c.Telemetry.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.tracing.endpoint: required when tracing is enabled"))
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if !slices.Contains(gateway.Kinds, gateway.Kind(s.Kind)) {
			errs = append(errs, fmt.Errorf("sources[%d].kind: unknown kind %q", i, s.Kind))
		}
		if seen[s.Kind] {
			errs = append(errs, fmt.Errorf("sources[%d].kind: duplicate kind %q", i, s.Kind))
		}
		seen[s.Kind] = true
		for j, p := range s.Providers {
			if p.BaseURL == "" {
				errs = append(errs, fmt.Errorf("sources[%d].providers[%d]: base_url is required", i, j))
			}
		}
	}
	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(c.Log.Level))
	return lvl, err
}

// TTLs returns the cache TTL of every source that overrides cache.ttl.
// A value <= 0 means no expiry.
func (c *Config) TTLs() map[gateway.Kind]time.Duration {
	out := make(map[gateway.Kind]time.Duration)
	for _, s := range c.Sources {
		if s.TTL != nil {
			out[gateway.Kind(s.Kind)] = *s.TTL
		}
	}
	return out
}
