// Package config loads process configuration for the query cache.
//
// Sources are layered, later ones winning:
//  1. Defaults: the values of Default()
//  2. Config file: optional YAML file
//  3. Environment variables: QUERYCACHE_<SECTION>_<KEY>, e.g. QUERYCACHE_CACHE_MAX_SIZE
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	cache "github.com/krisalay/query-cache"
	"github.com/krisalay/query-cache/logging"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "QUERYCACHE_"

	// ConfigPathEnvVar names a YAML file to load when Load gets no explicit path.
	ConfigPathEnvVar = "QUERYCACHE_CONFIG"

	// DefaultConfigFile is tried when neither a path nor ConfigPathEnvVar is given.
	DefaultConfigFile = "querycache.yaml"
)

// ErrInvalid wraps every validation failure returned by Load and Validate.
var ErrInvalid = errors.New("config: invalid")

// Config is the full process configuration.
type Config struct {
	Cache   CacheConfig   `koanf:"cache"`
	Logging LoggingConfig `koanf:"logging"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// CacheConfig mirrors cache.Config with file and env friendly names.
type CacheConfig struct {
	Name          string        `koanf:"name"`
	Enabled       bool          `koanf:"enabled"`
	DefaultTTL    time.Duration `koanf:"default_ttl"`
	MaxSize       int           `koanf:"max_size"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// LoggingConfig selects the zerolog level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"`
}

// MetricsConfig controls the Prometheus endpoint. An empty ListenAddr disables serving.
type MetricsConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Namespace  string `koanf:"namespace"`
	ListenAddr string `koanf:"listen_addr"`
}

// Default returns the built-in defaults.
func Default() *Config {
	c := cache.DefaultConfig()
	return &Config{
		Cache: CacheConfig{
			Name:          "default",
			Enabled:       c.Enabled,
			DefaultTTL:    c.DefaultTTL,
			MaxSize:       c.MaxSize,
			SweepInterval: c.SweepInterval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "querycache",
		},
	}
}

/*
Load builds the configuration from defaults, the YAML file at path and the
environment. When path is empty, ConfigPathEnvVar and then DefaultConfigFile
are tried; a missing default file is not an error, a missing explicit one is.
*/
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "load config file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.CacheConfig().Validate(); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if c.Cache.Name == "" {
		return errors.Wrap(ErrInvalid, "cache.name must not be empty")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return errors.Wrapf(ErrInvalid, "logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return errors.Wrap(ErrInvalid, "metrics.namespace must not be empty when metrics are enabled")
	}
	return nil
}

// CacheConfig converts the cache section for cache.New.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Enabled:       c.Cache.Enabled,
		DefaultTTL:    c.Cache.DefaultTTL,
		MaxSize:       c.Cache.MaxSize,
		SweepInterval: c.Cache.SweepInterval,
	}
}

// LoggingConfig converts the logging section for logging.Init.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: strings.ToLower(c.Logging.Format),
		Caller: c.Logging.Caller,
		Output: os.Stderr,
	}
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// envTransformFunc maps QUERYCACHE_CACHE_MAX_SIZE to cache.max_size.
// Names without a known section, QUERYCACHE_CONFIG included, map to "" and are dropped.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return ""
	}
	switch section {
	case "cache", "logging", "metrics":
		return section + "." + rest
	default:
		return ""
	}
}
