// Package config loads the settings used to wire the orchestration layer
// from a YAML or JSON document. Keys absent from the document keep the
// values of Default.
//
//	cache:
//	  max_size: 500
//	  default_ttl: 2m
//	  cleanup_interval: 1m
//	coalescer:
//	  window: 50ms
//	loading:
//	  timeout: 30s
//	  concurrency: 5
//	metrics:
//	  addr: ":9102"
//	log:
//	  level: debug
//	  format: json
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/MasonSRE/opsorch/cache"
	"github.com/MasonSRE/opsorch/coalesce"
	"github.com/MasonSRE/opsorch/internal/logging"
	"github.com/MasonSRE/opsorch/loading"
)

// Format is a document format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config is the full configuration document.
type Config struct {
	Cache     CacheConfig     `koanf:"cache"`
	Coalescer CoalescerConfig `koanf:"coalescer"`
	Loading   LoadingConfig   `koanf:"loading"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       logging.Config  `koanf:"log"`
}

type CacheConfig struct {
	MaxSize    int           `koanf:"max_size"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	// CleanupInterval is the period of the Cleanup sweep scheduled by hosts.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

type CoalescerConfig struct {
	Window time.Duration `koanf:"window"`
}

type LoadingConfig struct {
	Timeout          time.Duration `koanf:"timeout"`
	Concurrency      int           `koanf:"concurrency"`
	DebounceDelay    time.Duration `koanf:"debounce_delay"`
	ThrottleInterval time.Duration `koanf:"throttle_interval"`
}

type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint; empty disables it.
	Addr      string `koanf:"addr"`
	Namespace string `koanf:"namespace"`
}

// Default returns the configuration used when no document is given.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			MaxSize:         cache.DefaultMaxSize,
			DefaultTTL:      cache.DefaultTTL,
			CleanupInterval: time.Minute,
		},
		Coalescer: CoalescerConfig{Window: coalesce.DefaultWindow},
		Loading: LoadingConfig{
			Timeout:          loading.DefaultTimeout,
			Concurrency:      loading.DefaultConcurrency,
			DebounceDelay:    loading.DefaultDebounceDelay,
			ThrottleInterval: loading.DefaultThrottleInterval,
		},
		Metrics: MetricsConfig{Namespace: "opsorch"},
		Log:     logging.Config{Level: "info", Format: "text", MaxSizeMB: 100, MaxBackups: 3},
	}
}

// Load reads the document at path. The format is chosen by extension:
// .yaml, .yml or .json.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return LoadBytes(data, format)
}

// LoadBytes parses data over Default and validates the result. Empty data
// yields Default.
func LoadBytes(data []byte, format Format) (Config, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	cfg := Default()
	if len(data) > 0 {
		k := koanf.New(".")
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
		if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects non-positive sizes and durations.
func (c Config) Validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"cache.max_size", c.Cache.MaxSize > 0},
		{"cache.default_ttl", c.Cache.DefaultTTL > 0},
		{"cache.cleanup_interval", c.Cache.CleanupInterval > 0},
		{"coalescer.window", c.Coalescer.Window > 0},
		{"loading.timeout", c.Loading.Timeout > 0},
		{"loading.concurrency", c.Loading.Concurrency > 0},
		{"loading.debounce_delay", c.Loading.DebounceDelay > 0},
		{"loading.throttle_interval", c.Loading.ThrottleInterval > 0},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, chk.name)
		}
	}
	return nil
}

// LoadingDefaults converts the loading section for loading.WithDefaults.
func (c Config) LoadingDefaults() loading.Defaults {
	return loading.Defaults{
		Timeout:          c.Loading.Timeout,
		Concurrency:      c.Loading.Concurrency,
		DebounceDelay:    c.Loading.DebounceDelay,
		ThrottleInterval: c.Loading.ThrottleInterval,
	}
}

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}
