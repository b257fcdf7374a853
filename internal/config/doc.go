// Package config loads, normalizes, and validates watchlist checker configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and applies environment overrides such as
// TMDB_API_KEY and WATCHLIST_DATA_DIR. The Config type centralizes every knob
// the CLI needs so cache locations, TMDB credentials and availability tuning
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
