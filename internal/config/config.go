// Package config provides layered configuration loading.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the production backend.
const DefaultBaseURL = "https://api.washbay.app/v1"

// Config holds the resolved configuration.
type Config struct {
	// API settings
	BaseURL string `yaml:"base_url"`

	// Storage settings
	CacheDir  string `yaml:"cache_dir"`
	NoKeyring bool   `yaml:"no_keyring"`

	// Output settings
	Format string `yaml:"format"`

	// Behavior preferences, overridable by flags
	Stats   *bool `yaml:"stats,omitempty"`
	Verbose *bool `yaml:"verbose,omitempty"`

	// Resources overrides per-resource TTLs and timeouts, keyed by
	// resource or mutation name.
	Resources map[string]ResourceOverride `yaml:"resources,omitempty"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `yaml:"-"`
}

// ResourceOverride adjusts one resource's timing. Zero fields keep the default.
type ResourceOverride struct {
	TTL     time.Duration `yaml:"ttl,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	BaseURL   string
	CacheDir  string
	Format    string
	NoKeyring bool
	Stats     bool
	Verbose   bool
}

// envConfig is the WASHBAY_* environment layer. Pointers distinguish unset
// from false.
type envConfig struct {
	BaseURL   string `env:"WASHBAY_BASE_URL"`
	CacheDir  string `env:"WASHBAY_CACHE_DIR"`
	NoKeyring *bool  `env:"WASHBAY_NO_KEYRING"`
	Format    string `env:"WASHBAY_FORMAT"`
	Stats     *bool  `env:"WASHBAY_STATS"`
	Debug     *bool  `env:"WASHBAY_DEBUG"`
}

// Default returns the default configuration.
func Default() *Config {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}

	return &Config{
		BaseURL:  DefaultBaseURL,
		CacheDir: filepath.Join(cacheDir, "washbay"),
		Format:   "auto",
		Sources:  make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	for _, layer := range []struct {
		path   string
		source Source
	}{
		{systemConfigPath(), SourceSystem},
		{globalConfigPath(), SourceGlobal},
	} {
		if err := loadFromFile(cfg, layer.path, layer.source); err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", layer.path, err)
		}
	}

	if err := LoadFromEnv(cfg, nil); err != nil {
		return nil, err
	}
	ApplyOverrides(cfg, overrides)

	cfg.BaseURL = NormalizeBaseURL(cfg.BaseURL)
	return cfg, nil
}

// loadFromFile overlays the YAML file at path. A missing file is not an error.
func loadFromFile(cfg *Config, path string, source Source) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	// Presence of bool keys is read separately so an explicit false still
	// overrides and records its source.
	var keys map[string]any
	_ = yaml.Unmarshal(data, &keys)

	set := func(key string) { cfg.Sources[key] = string(source) }
	if file.BaseURL != "" {
		cfg.BaseURL = file.BaseURL
		set("base_url")
	}
	if file.CacheDir != "" {
		cfg.CacheDir = expandHome(file.CacheDir)
		set("cache_dir")
	}
	if _, ok := keys["no_keyring"]; ok {
		cfg.NoKeyring = file.NoKeyring
		set("no_keyring")
	}
	if file.Format != "" {
		cfg.Format = file.Format
		set("format")
	}
	if file.Stats != nil {
		cfg.Stats = file.Stats
		set("stats")
	}
	if file.Verbose != nil {
		cfg.Verbose = file.Verbose
		set("verbose")
	}
	for name, o := range file.Resources {
		if o.TTL < 0 || o.Timeout < 0 {
			return fmt.Errorf("resources.%s: durations must not be negative", name)
		}
		if cfg.Resources == nil {
			cfg.Resources = make(map[string]ResourceOverride)
		}
		cfg.Resources[name] = o
		set("resources." + name)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables. A nil
// environ reads the process environment.
func LoadFromEnv(cfg *Config, environ map[string]string) error {
	var e envConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	set := func(key string) { cfg.Sources[key] = string(SourceEnv) }
	if e.BaseURL != "" {
		cfg.BaseURL = e.BaseURL
		set("base_url")
	}
	if e.CacheDir != "" {
		cfg.CacheDir = e.CacheDir
		set("cache_dir")
	}
	if e.NoKeyring != nil {
		cfg.NoKeyring = *e.NoKeyring
		set("no_keyring")
	}
	if e.Format != "" {
		cfg.Format = e.Format
		set("format")
	}
	if e.Stats != nil {
		cfg.Stats = e.Stats
		set("stats")
	}
	if e.Debug != nil {
		cfg.Verbose = e.Debug
		set("verbose")
	}
	return nil
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
		cfg.Sources["base_url"] = string(SourceFlag)
	}
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
		cfg.Sources["cache_dir"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
	if o.NoKeyring {
		cfg.NoKeyring = true
		cfg.Sources["no_keyring"] = string(SourceFlag)
	}
	if o.Stats {
		t := true
		cfg.Stats = &t
		cfg.Sources["stats"] = string(SourceFlag)
	}
	if o.Verbose {
		t := true
		cfg.Verbose = &t
		cfg.Sources["verbose"] = string(SourceFlag)
	}
}

// StatsEnabled reports whether --stats output is on.
func (cfg *Config) StatsEnabled() bool { return cfg.Stats != nil && *cfg.Stats }

// VerboseEnabled reports whether debug logging is on.
func (cfg *Config) VerboseEnabled() bool { return cfg.Verbose != nil && *cfg.Verbose }

// SourceOf returns where key was set, defaulting to "default".
func (cfg *Config) SourceOf(key string) string {
	if s, ok := cfg.Sources[key]; ok {
		return s
	}
	return string(SourceDefault)
}

// ResourceNames returns the overridden resource names, sorted.
func (cfg *Config) ResourceNames() []string {
	names := make([]string, 0, len(cfg.Resources))
	for name := range cfg.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path helpers

func systemConfigPath() string {
	return "/etc/washbay/config.yaml"
}

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.yaml")
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "washbay")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// NormalizeBaseURL ensures consistent URL format: a scheme (http for
// loopback hosts, https otherwise) and no trailing slash.
func NormalizeBaseURL(url string) string {
	url = strings.TrimSuffix(strings.TrimSpace(url), "/")
	if url == "" || strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	if isLoopback(url) {
		return "http://" + url
	}
	return "https://" + url
}

// isLoopback reports whether the host part of hostport (up to the first
// slash) is localhost, a .localhost subdomain, 127.0.0.1, or [::1].
func isLoopback(hostport string) bool {
	host, _, _ := strings.Cut(hostport, "/")
	if strings.HasPrefix(host, "[") {
		end := strings.Index(host, "]")
		return end > 0 && host[1:end] == "::1"
	}
	if i := strings.LastIndex(host, ":"); i != -1 {
		host = host[:i]
	}
	return host == "localhost" || strings.HasSuffix(host, ".localhost") || host == "127.0.0.1"
}
