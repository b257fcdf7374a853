package testsupport

import (
	"path/filepath"
	"testing"

	"watchlist/internal/config"
)

// ConfigOption mutates a test configuration before its directories are created.
type ConfigOption func(*config.Config)

// NewConfig returns defaults rooted in a fresh temp directory, with file
// logging off and a placeholder TMDB key.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.TMDB.APIKey = "test"
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.UploadsDir = filepath.Join(cfg.Paths.DataDir, "uploads")
	cfg.Paths.LogDir = ""
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure test directories: %v", err)
	}
	return &cfg
}

func WithTMDBKey(key string) ConfigOption {
	return func(cfg *config.Config) { cfg.TMDB.APIKey = key }
}

func WithTMDBBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) { cfg.TMDB.BaseURL = url }
}

func WithRegions(codes ...string) ConfigOption {
	return func(cfg *config.Config) { cfg.Availability.DefaultRegions = codes }
}

// BaseDir is the temp root NewConfig placed the data directory under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
