package providerstore

import (
	"context"
	"time"

	"watchlist/internal/availability"
	"watchlist/internal/region"
)

// Stats summarizes cache contents relative to a freshness window.
type Stats struct {
	Records     int                 `json:"records"`
	Titles      int                 `json:"titles"`
	Resolved    int                 `json:"resolved_titles"`
	Unresolved  int                 `json:"unresolved_titles"`
	Fresh       int                 `json:"fresh"`
	Stale       int                 `json:"stale"`
	Available   int                 `json:"available"`
	ByRegion    map[region.Code]int `json:"by_region"`
	OldestFetch time.Time           `json:"oldest_fetch,omitzero"`
	NewestFetch time.Time           `json:"newest_fetch,omitzero"`
}

// Stats scans the cache and classifies every record at now using ttl.
func (s *Store) Stats(ctx context.Context, now time.Time, ttl time.Duration) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{ByRegion: make(map[region.Code]int)}
	titles := make(map[string]struct{})

	err := s.collect(ctx, `SELECT `+recordColumns+` FROM availability`, nil, nil, func(record availability.Record) {
		stats.Records++
		titles[record.Key.TitleID] = struct{}{}
		stats.ByRegion[record.Key.Region]++
		if record.StatusAt(now, ttl) == availability.StatusFresh {
			stats.Fresh++
		} else {
			stats.Stale++
		}
		if record.Available() {
			stats.Available++
		}
		if stats.OldestFetch.IsZero() || record.FetchedAt.Before(stats.OldestFetch) {
			stats.OldestFetch = record.FetchedAt
		}
		if record.FetchedAt.After(stats.NewestFetch) {
			stats.NewestFetch = record.FetchedAt
		}
	})
	if err != nil {
		return Stats{}, err
	}
	stats.Titles = len(titles)

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(CASE WHEN tmdb_id IS NOT NULL THEN 1 END), COUNT(CASE WHEN tmdb_id IS NULL THEN 1 END) FROM titles`)
	if err := row.Scan(&stats.Resolved, &stats.Unresolved); err != nil {
		return Stats{}, unavailable("count titles", err)
	}
	return stats, nil
}
