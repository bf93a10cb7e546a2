package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache "github.com/krisalay/query-cache"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "querycache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, cache.DefaultConfig(), cfg.CacheConfig())
	assert.Equal(t, "default", cfg.Cache.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "querycache", cfg.Metrics.Namespace)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
cache:
  name: reports
  default_ttl: 30s
  max_size: 50
logging:
  level: debug
  format: console
metrics:
  listen_addr: ":9102"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "reports", cfg.Cache.Name)
	assert.Equal(t, 30*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, 50, cfg.Cache.MaxSize)
	assert.Equal(t, 300*time.Second, cfg.Cache.SweepInterval, "unset keys keep their defaults")
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9102", cfg.Metrics.ListenAddr)
	assert.Equal(t, "console", cfg.LoggingConfig().Format)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "cache:\n  max_size: 50\n")
	t.Setenv("QUERYCACHE_CACHE_MAX_SIZE", "75")
	t.Setenv("QUERYCACHE_CACHE_ENABLED", "false")
	t.Setenv("QUERYCACHE_CACHE_SWEEP_INTERVAL", "1m")
	t.Setenv("QUERYCACHE_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 75, cfg.Cache.MaxSize)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, "cache:\n  name: from-env\n")
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Cache.Name)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max size", func(c *Config) { c.Cache.MaxSize = 0 }},
		{"negative ttl", func(c *Config) { c.Cache.DefaultTTL = -time.Second }},
		{"zero sweep interval", func(c *Config) { c.Cache.SweepInterval = 0 }},
		{"empty name", func(c *Config) { c.Cache.Name = "" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"metrics without namespace", func(c *Config) { c.Metrics.Namespace = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeFile(t, "cache:\n  max_size: -1\n")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"QUERYCACHE_CACHE_MAX_SIZE":      "cache.max_size",
		"QUERYCACHE_LOGGING_LEVEL":       "logging.level",
		"QUERYCACHE_METRICS_LISTEN_ADDR": "metrics.listen_addr",
		"QUERYCACHE_CONFIG":              "",
		"QUERYCACHE_OTHER_THING":         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, envTransformFunc(in), in)
	}
}
