// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"

	brewmap "github.com/brewmap/brewmap/internal"
)

// Config is the top-level service configuration.
type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Database   DatabaseConfig  `yaml:"database"`
	Overpass   OverpassConfig  `yaml:"overpass"`
	Cache      CacheConfig     `yaml:"cache"`
	Filters    FiltersConfig   `yaml:"filters"`
	RateLimits RateLimitConfig `yaml:"rate_limits"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // file path or ":memory:"
}

// OverpassConfig holds upstream Overpass API settings.
type OverpassConfig struct {
	Mirrors   []string      `yaml:"mirrors"`    // tried in order; first is primary
	Timeout   time.Duration `yaml:"timeout"`    // per-fetch client deadline
	UserAgent string        `yaml:"user_agent"` // Overpass usage policy requires one
}

// CacheConfig holds viewport response cache settings.
type CacheConfig struct {
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// FiltersConfig holds the default enabled location types.
type FiltersConfig struct {
	Enabled []string `yaml:"enabled"` // empty = all known types
}

// FilterSet converts the configured type names into a FilterSet.
// An empty list enables everything.
func (f FiltersConfig) FilterSet() brewmap.FilterSet {
	if len(f.Enabled) == 0 {
		return brewmap.DefaultFilters()
	}
	fs := make(brewmap.FilterSet, len(f.Enabled))
	for _, name := range f.Enabled {
		fs[brewmap.LocationType(name)] = true
	}
	return fs
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	DefaultRPM int64 `yaml:"default_rpm"` // requests per minute per client (0 = unlimited)
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
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
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

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			DSN: "brewmap.db",
		},
		Overpass: OverpassConfig{
			Mirrors: []string{
				"https://overpass-api.de/api/interpreter",
				"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
			},
			Timeout:   30 * time.Second,
			UserAgent: "brewmap/1.0 (+https://github.com/brewmap/brewmap)",
		},
		Cache: CacheConfig{
			MaxSize: 50,
			TTL:     5 * time.Minute,
		},
		RateLimits: RateLimitConfig{
			DefaultRPM: 60,
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
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
	return cfg, nil
}
