package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"watchlist/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TMDB_API_KEY",
		"WATCHLIST_TMDB_BASE_URL",
		"WATCHLIST_LOG_LEVEL",
		"WATCHLIST_LOG_FORMAT",
		"WATCHLIST_DATA_DIR",
		"WATCHLIST_LOG_DIR",
		"WATCHLIST_NTFY_TOPIC",
		"WATCHLIST_TELEMETRY_ENABLED",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfigUsesEnvTMDBKeyAndExpandsPaths(t *testing.T) {
	clearEnv(t)
	t.Setenv("TMDB_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "watchlist", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "watchlist")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.UploadsDir != filepath.Join(wantData, "uploads") {
		t.Fatalf("unexpected uploads dir: %q", cfg.Paths.UploadsDir)
	}
	if cfg.CachePath() != filepath.Join(wantData, "cache.db") {
		t.Fatalf("unexpected cache path: %q", cfg.CachePath())
	}
	if cfg.TMDB.APIKey != "test-key" {
		t.Fatalf("expected TMDB key from env, got %q", cfg.TMDB.APIKey)
	}
	if cfg.TTL().Hours() != 24 {
		t.Fatalf("unexpected ttl: %v", cfg.TTL())
	}
	if got := strings.Join(cfg.Availability.DefaultRegions, ","); got != "GB" {
		t.Fatalf("unexpected default regions: %q", got)
	}
	if cfg.Telemetry.Enabled {
		t.Fatal("expected telemetry disabled by default")
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
data_dir = "~/cache"

[tmdb]
api_key = "file-key"
base_url = "https://tmdb.example.com/3/"
language = "pt_br"

[availability]
ttl_hours = 6
max_concurrent_fetches = 8
default_regions = ["uk", "us", "GB"]

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q to exist, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "cache") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.TMDB.BaseURL != "https://tmdb.example.com/3" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.TMDB.BaseURL)
	}
	if cfg.TMDB.Language != "pt-BR" {
		t.Fatalf("expected canonical language tag, got %q", cfg.TMDB.Language)
	}
	if cfg.Availability.MaxConcurrentFetches != 8 || cfg.Availability.TTLHours != 6 {
		t.Fatalf("unexpected availability settings: %+v", cfg.Availability)
	}
	if got := strings.Join(cfg.Availability.DefaultRegions, ","); got != "GB,US" {
		t.Fatalf("expected normalized regions GB,US, got %q", got)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased logging settings, got %+v", cfg.Logging)
	}
}

func TestEnvOverridesFileValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	dataDir := t.TempDir()
	t.Setenv("TMDB_API_KEY", "env-key")
	t.Setenv("WATCHLIST_DATA_DIR", dataDir)
	t.Setenv("WATCHLIST_LOG_LEVEL", "warn")
	t.Setenv("WATCHLIST_TMDB_BASE_URL", "http://127.0.0.1:9999")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[tmdb]\napi_key = \"file-key\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TMDB.APIKey != "file-key" {
		t.Fatalf("file api key should win over TMDB_API_KEY, got %q", cfg.TMDB.APIKey)
	}
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("expected data dir from env, got %q", cfg.Paths.DataDir)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected level from env, got %q", cfg.Logging.Level)
	}
	if cfg.TMDB.BaseURL != "http://127.0.0.1:9999" {
		t.Fatalf("expected base url from env, got %q", cfg.TMDB.BaseURL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	cases := map[string]string{
		"region":   "[availability]\ndefault_regions = [\"XX\"]\n",
		"format":   "[logging]\nformat = \"yaml\"\n",
		"level":    "[logging]\nlevel = \"trace\"\n",
		"ttl":      "[availability]\nttl_hours = -1\n",
		"base_url": "[tmdb]\nbase_url = \"not a url\"\n",
		"language": "[tmdb]\nlanguage = \"en-US!!\"\n",
		"ntfy":     "[notifications]\nntfy_topic = \"my-topic\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatalf("expected validation error for %s", name)
			}
		})
	}
}

func TestRequireTMDBKey(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireTMDBKey(); err == nil || !strings.Contains(err.Error(), "TMDB_API_KEY") {
		t.Fatalf("expected helpful missing key error, got %v", err)
	}
	cfg.TMDB.APIKey = "key"
	if err := cfg.RequireTMDBKey(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := config.CreateSample(path, false); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	if err := config.CreateSample(path, false); !errors.Is(err, config.ErrConfigExists) {
		t.Fatalf("second CreateSample = %v, want ErrConfigExists", err)
	}
	if err := config.CreateSample(path, true); err != nil {
		t.Fatalf("CreateSample with overwrite returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if decoded.Availability.TTLHours != 24 {
		t.Fatalf("unexpected sample ttl: %d", decoded.Availability.TTLHours)
	}

	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("Load(sample) = exists %v, err %v", exists, err)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.UploadsDir = filepath.Join(base, "data", "uploads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.UploadsDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
}
