package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateAvailability(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

// RequireTMDBKey reports a helpful error when no TMDB credentials are configured.
// Commands that only read the cache do not call it.
func (c *Config) RequireTMDBKey() error {
	if c.TMDB.APIKey != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'watchlist config init')", defaultPath)
}

func (c *Config) validateTMDB() error {
	parsed, err := url.Parse(c.TMDB.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("tmdb.base_url must be an absolute URL, got %q", c.TMDB.BaseURL)
	}
	return nil
}

func (c *Config) validateAvailability() error {
	if c.Availability.TTLHours < 0 {
		return errors.New("availability.ttl_hours must be positive")
	}
	if c.Availability.MaxConcurrentFetches < 0 {
		return errors.New("availability.max_concurrent_fetches must be positive")
	}
	if c.Availability.FetchTimeoutSeconds < 0 {
		return errors.New("availability.fetch_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full topic URL, got %q", c.Notifications.NtfyTopic)
	}
	return nil
}
