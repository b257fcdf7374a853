package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"watchlist/internal/config"
	"watchlist/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	tmdb       *testsupport.TMDBServer
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, titles ...testsupport.TMDBTitle) *cliTestEnv {
	t.Helper()

	for _, key := range []string{"TMDB_API_KEY", "WATCHLIST_TMDB_BASE_URL", "WATCHLIST_LOG_LEVEL", "WATCHLIST_LOG_FORMAT", "WATCHLIST_DATA_DIR", "WATCHLIST_LOG_DIR", "WATCHLIST_NTFY_TOPIC"} {
		t.Setenv(key, "")
	}

	server := testsupport.NewTMDBServer(t, titles...)
	cfg := testsupport.NewConfig(t,
		testsupport.WithTMDBBaseURL(server.URL),
		testsupport.WithRegions("GB", "US"),
	)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		tmdb:       server,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	regions := make([]string, 0, len(cfg.Availability.DefaultRegions))
	for _, code := range cfg.Availability.DefaultRegions {
		regions = append(regions, fmt.Sprintf("%q", code))
	}
	content := fmt.Sprintf(`[paths]
data_dir = %q
uploads_dir = %q
log_dir = ""

[tmdb]
api_key = %q
base_url = %q

[availability]
default_regions = [%s]

[logging]
level = "error"
`,
		cfg.Paths.DataDir,
		cfg.Paths.UploadsDir,
		cfg.TMDB.APIKey,
		cfg.TMDB.BaseURL,
		strings.Join(regions, ", "),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func decodeReport(t *testing.T, out string) checkReport {
	t.Helper()
	var report checkReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	return report
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
