package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	brewmap "github.com/brewmap/brewmap/internal"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brewmap.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  read_timeout: 5s
database:
  dsn: ":memory:"
overpass:
  mirrors:
    - "https://overpass.example.org/api/interpreter"
  timeout: 10s
cache:
  max_size: 25
  ttl: 90s
filters:
  enabled: [cafe, roastery]
rate_limits:
  default_rpm: 30
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read_timeout = %v", cfg.Server.ReadTimeout)
	}
	// Unspecified fields keep defaults.
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("shutdown_timeout default = %v", cfg.Server.ShutdownTimeout)
	}
	if len(cfg.Overpass.Mirrors) != 1 || cfg.Overpass.Mirrors[0] != "https://overpass.example.org/api/interpreter" {
		t.Errorf("mirrors = %v", cfg.Overpass.Mirrors)
	}
	if cfg.Cache.MaxSize != 25 || cfg.Cache.TTL != 90*time.Second {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.RateLimits.DefaultRPM != 30 {
		t.Errorf("default_rpm = %d", cfg.RateLimits.DefaultRPM)
	}

	fs := cfg.Filters.FilterSet()
	if !fs.Enabled(brewmap.TypeCafe) || !fs.Enabled(brewmap.TypeRoastery) {
		t.Errorf("filter set missing configured types: %v", fs)
	}
	if fs.Enabled(brewmap.TypeShop) {
		t.Errorf("shop should be disabled: %v", fs)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("BREWMAP_TEST_DSN", "/tmp/test-brewmap.db")
	path := writeConfig(t, "database:\n  dsn: ${BREWMAP_TEST_DSN}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.DSN != "/tmp/test-brewmap.db" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
}

func TestLoad_UnsetEnvKept(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: ${BREWMAP_DEFINITELY_UNSET}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.DSN != "${BREWMAP_DEFINITELY_UNSET}" {
		t.Errorf("unset vars should pass through verbatim, got %q", cfg.Database.DSN)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load("/nonexistent/brewmap.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFilterSet_EmptyEnablesAll(t *testing.T) {
	t.Parallel()
	fs := (FiltersConfig{}).FilterSet()
	for _, typ := range brewmap.KnownTypes {
		if !fs.Enabled(typ) {
			t.Errorf("type %q should be enabled when filters are unset", typ)
		}
	}
}
