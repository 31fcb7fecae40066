package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	cfg := Default()

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "/tmp/xdg-cache/washbay", cfg.CacheDir)
	assert.Equal(t, "auto", cfg.Format)
	assert.False(t, cfg.NoKeyring)
	assert.False(t, cfg.StatsEnabled())
	assert.False(t, cfg.VerboseEnabled())
	assert.NotNil(t, cfg.Sources)
	assert.Equal(t, "default", cfg.SourceOf("base_url"))
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
base_url: http://localhost:3000/api
cache_dir: /tmp/washbay-cache
no_keyring: true
format: json
stats: true
resources:
  bookings:
    ttl: 2m
  create-booking:
    timeout: 45s
`)

	cfg := Default()
	require.NoError(t, loadFromFile(cfg, path, SourceGlobal))

	assert.Equal(t, "http://localhost:3000/api", cfg.BaseURL)
	assert.Equal(t, "/tmp/washbay-cache", cfg.CacheDir)
	assert.True(t, cfg.NoKeyring)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.StatsEnabled())
	assert.Equal(t, ResourceOverride{TTL: 2 * time.Minute}, cfg.Resources["bookings"])
	assert.Equal(t, ResourceOverride{Timeout: 45 * time.Second}, cfg.Resources["create-booking"])
	assert.Equal(t, []string{"bookings", "create-booking"}, cfg.ResourceNames())

	assert.Equal(t, "global", cfg.Sources["base_url"])
	assert.Equal(t, "global", cfg.Sources["resources.bookings"])
	assert.Equal(t, "default", cfg.SourceOf("verbose"))
}

func TestLoadFromFileExplicitFalse(t *testing.T) {
	path := writeConfig(t, "no_keyring: false\nstats: false\n")

	cfg := Default()
	cfg.NoKeyring = true
	require.NoError(t, loadFromFile(cfg, path, SourceSystem))

	assert.False(t, cfg.NoKeyring)
	require.NotNil(t, cfg.Stats)
	assert.False(t, *cfg.Stats)
	assert.Equal(t, "system", cfg.Sources["no_keyring"])
}

func TestLoadFromFileExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	path := writeConfig(t, "cache_dir: ~/wb\n")

	cfg := Default()
	require.NoError(t, loadFromFile(cfg, path, SourceGlobal))
	assert.Equal(t, filepath.Join(home, "wb"), cfg.CacheDir)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := Default()
	assert.NoError(t, loadFromFile(cfg, "/nonexistent/path/config.yaml", SourceGlobal))
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)

	assert.Error(t, loadFromFile(cfg, writeConfig(t, "base_url: [unclosed"), SourceGlobal))
	assert.Error(t, loadFromFile(cfg, writeConfig(t, "resources:\n  alerts:\n    ttl: soon\n"), SourceGlobal))
	assert.Error(t, loadFromFile(cfg, writeConfig(t, "resources:\n  alerts:\n    ttl: -5s\n"), SourceGlobal))
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
}

func TestLoadFromEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, LoadFromEnv(cfg, map[string]string{
		"WASHBAY_BASE_URL":   "https://staging.washbay.app/v1",
		"WASHBAY_CACHE_DIR":  "/var/tmp/wb",
		"WASHBAY_NO_KEYRING": "1",
		"WASHBAY_STATS":      "false",
		"WASHBAY_DEBUG":      "true",
	}))

	assert.Equal(t, "https://staging.washbay.app/v1", cfg.BaseURL)
	assert.Equal(t, "/var/tmp/wb", cfg.CacheDir)
	assert.True(t, cfg.NoKeyring)
	require.NotNil(t, cfg.Stats)
	assert.False(t, cfg.StatsEnabled())
	assert.True(t, cfg.VerboseEnabled())
	assert.Equal(t, "env", cfg.Sources["base_url"])
	assert.Equal(t, "env", cfg.Sources["verbose"])
	assert.Equal(t, "default", cfg.SourceOf("format"))
}

func TestLoadFromEnvInvalidBool(t *testing.T) {
	cfg := Default()
	err := LoadFromEnv(cfg, map[string]string{"WASHBAY_STATS": "maybe"})
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.Format = "json"
	cfg.Sources["format"] = "global"

	ApplyOverrides(cfg, FlagOverrides{BaseURL: "http://flag", Stats: true, Verbose: true})

	assert.Equal(t, "http://flag", cfg.BaseURL)
	assert.Equal(t, "flag", cfg.Sources["base_url"])
	assert.Equal(t, "json", cfg.Format, "empty flag keeps lower layer")
	assert.Equal(t, "global", cfg.Sources["format"])
	assert.True(t, cfg.StatsEnabled())
	assert.True(t, cfg.VerboseEnabled())
	assert.False(t, cfg.NoKeyring)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "washbay"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "washbay", "config.yaml"),
		[]byte("base_url: http://file/\ncache_dir: /from/file\nformat: styled\n"), 0o600))
	t.Setenv("WASHBAY_CACHE_DIR", "/from/env")
	t.Setenv("WASHBAY_FORMAT", "")

	cfg, err := Load(FlagOverrides{Format: "json"})
	require.NoError(t, err)

	assert.Equal(t, "http://file", cfg.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "global", cfg.Sources["base_url"])
	assert.Equal(t, "/from/env", cfg.CacheDir)
	assert.Equal(t, "env", cfg.Sources["cache_dir"])
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "flag", cfg.Sources["format"])
}

func TestGlobalConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/washbay", GlobalConfigDir())
	assert.Equal(t, "/custom/config/washbay/config.yaml", globalConfigPath())
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := map[string]string{
		"https://api.washbay.app/v1/": "https://api.washbay.app/v1",
		"https://api.washbay.app/v1":  "https://api.washbay.app/v1",
		"api.washbay.app/v1":          "https://api.washbay.app/v1",
		"localhost:3000/api":          "http://localhost:3000/api",
		"app.localhost":               "http://app.localhost",
		"127.0.0.1:8080":              "http://127.0.0.1:8080",
		"[::1]:8080":                  "http://[::1]:8080",
		"http://staging.washbay.app":  "http://staging.washbay.app",
		"":                            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeBaseURL(in), in)
	}
}
