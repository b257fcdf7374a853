package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the environment variables that take precedence over the
// config file. TMDB_API_KEY only fills an empty api_key.
type envOverrides struct {
	TMDBAPIKey  string `env:"TMDB_API_KEY"`
	TMDBBaseURL string `env:"WATCHLIST_TMDB_BASE_URL"`
	LogLevel    string `env:"WATCHLIST_LOG_LEVEL"`
	LogFormat   string `env:"WATCHLIST_LOG_FORMAT"`
	DataDir     string `env:"WATCHLIST_DATA_DIR"`
	LogDir      string `env:"WATCHLIST_LOG_DIR"`
	NtfyTopic   string `env:"WATCHLIST_NTFY_TOPIC"`
	OTLPEnabled *bool  `env:"WATCHLIST_TELEMETRY_ENABLED"`
	OTLPTarget  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if strings.TrimSpace(c.TMDB.APIKey) == "" {
		c.TMDB.APIKey = overrides.TMDBAPIKey
	}
	if value := strings.TrimSpace(overrides.TMDBBaseURL); value != "" {
		c.TMDB.BaseURL = value
	}
	if value := strings.TrimSpace(overrides.LogLevel); value != "" {
		c.Logging.Level = value
	}
	if value := strings.TrimSpace(overrides.LogFormat); value != "" {
		c.Logging.Format = value
	}
	if value := strings.TrimSpace(overrides.DataDir); value != "" {
		c.Paths.DataDir = value
	}
	if value := strings.TrimSpace(overrides.LogDir); value != "" {
		c.Paths.LogDir = value
	}
	if value := strings.TrimSpace(overrides.NtfyTopic); value != "" {
		c.Notifications.NtfyTopic = value
	}
	if overrides.OTLPEnabled != nil {
		c.Telemetry.Enabled = *overrides.OTLPEnabled
	}
	if value := strings.TrimSpace(overrides.OTLPTarget); value != "" {
		c.Telemetry.Endpoint = value
	}
	return nil
}
