package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"watchlist/internal/region"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTMDB(); err != nil {
		return err
	}
	if err := c.normalizeAvailability(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeNotifications()
	c.normalizeTelemetry()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.UploadsDir) == "" {
		c.Paths.UploadsDir = filepath.Join(c.Paths.DataDir, defaultUploadsDirName)
	}
	if c.Paths.UploadsDir, err = expandPath(c.Paths.UploadsDir); err != nil {
		return fmt.Errorf("paths.uploads_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTMDB() error {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
	tag, err := language.Parse(c.TMDB.Language)
	if err != nil {
		return fmt.Errorf("tmdb.language %q: %w", c.TMDB.Language, err)
	}
	c.TMDB.Language = tag.String()
	if c.TMDB.RequestTimeoutSeconds <= 0 {
		c.TMDB.RequestTimeoutSeconds = defaultTMDBRequestTimeout
	}
	return nil
}

func (c *Config) normalizeAvailability() error {
	if c.Availability.TTLHours == 0 {
		c.Availability.TTLHours = defaultTTLHours
	}
	if c.Availability.MaxConcurrentFetches == 0 {
		c.Availability.MaxConcurrentFetches = defaultMaxConcurrentFetches
	}
	if c.Availability.FetchTimeoutSeconds == 0 {
		c.Availability.FetchTimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if len(c.Availability.DefaultRegions) == 0 {
		c.Availability.DefaultRegions = append([]string(nil), defaultRegions...)
	}
	codes, err := region.ParseAll(c.Availability.DefaultRegions)
	if err != nil {
		return fmt.Errorf("availability.default_regions: %w", err)
	}
	normalized := make([]string, 0, len(codes))
	for _, code := range codes {
		normalized = append(normalized, code.String())
	}
	c.Availability.DefaultRegions = normalized
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeout
	}
}

func (c *Config) normalizeTelemetry() {
	c.Telemetry.Endpoint = strings.TrimSpace(c.Telemetry.Endpoint)
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = defaultTelemetryEndpoint
	}
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultTelemetryService
	}
}
