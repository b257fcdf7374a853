package providerstore

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TitleRef maps an IMDb identifier to its TMDB identity. A zero TMDBID records
// that TMDB had no match so the lookup is not repeated on every run.
type TitleRef struct {
	IMDbID     string
	TMDBID     int64
	MediaType  string
	ResolvedAt time.Time
}

// Resolved reports whether TMDB returned a match for the title.
func (r TitleRef) Resolved() bool {
	return r.TMDBID > 0
}

// LookupTitle returns the cached TMDB reference for an IMDb identifier.
func (s *Store) LookupTitle(ctx context.Context, imdbID string) (TitleRef, bool, error) {
	ctx = ensureContext(ctx)
	var (
		tmdbID     sql.NullInt64
		mediaType  string
		resolvedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT tmdb_id, media_type, resolved_at FROM titles WHERE imdb_id = ?`, imdbID,
	).Scan(&tmdbID, &mediaType, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return TitleRef{}, false, nil
	}
	if err != nil {
		return TitleRef{}, false, unavailable("lookup title "+imdbID, err)
	}
	return TitleRef{
		IMDbID:     imdbID,
		TMDBID:     tmdbID.Int64,
		MediaType:  mediaType,
		ResolvedAt: time.Unix(0, resolvedAt).UTC(),
	}, true, nil
}

// SaveTitle upserts a TMDB reference.
func (s *Store) SaveTitle(ctx context.Context, ref TitleRef) error {
	ctx = ensureContext(ctx)
	var tmdbID sql.NullInt64
	if ref.TMDBID > 0 {
		tmdbID = sql.NullInt64{Int64: ref.TMDBID, Valid: true}
	}
	resolvedAt := ref.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO titles (imdb_id, tmdb_id, media_type, resolved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(imdb_id) DO UPDATE SET
			tmdb_id = excluded.tmdb_id,
			media_type = excluded.media_type,
			resolved_at = excluded.resolved_at`,
		ref.IMDbID, tmdbID, ref.MediaType, resolvedAt.UTC().UnixNano(),
	)
	if err != nil {
		return unavailable("save title "+ref.IMDbID, err)
	}
	return nil
}
