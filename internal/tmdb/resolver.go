package tmdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"watchlist/internal/logging"
	"watchlist/internal/providerstore"
)

// Media types accepted by the watch providers endpoint.
const (
	MediaMovie = "movie"
	MediaTV    = "tv"
)

// DefaultUnresolvedRetry is how long a "no TMDB match" answer is trusted.
const DefaultUnresolvedRetry = 7 * 24 * time.Hour

// TitleCache persists IMDb to TMDB mappings.
type TitleCache interface {
	LookupTitle(ctx context.Context, imdbID string) (providerstore.TitleRef, bool, error)
	SaveTitle(ctx context.Context, ref providerstore.TitleRef) error
}

// Resolver maps IMDb identifiers to TMDB references.
type Resolver struct {
	api             API
	cache           TitleCache
	logger          *slog.Logger
	now             func() time.Time
	unresolvedRetry time.Duration
	group           singleflight.Group
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger used for cache warnings.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logging.NewComponentLogger(logger, "tmdb-resolver")
	}
}

// WithResolverClock overrides the time source.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithUnresolvedRetry sets how long a missing TMDB match is remembered.
func WithUnresolvedRetry(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.unresolvedRetry = d
		}
	}
}

// NewResolver builds a Resolver. cache may be nil, in which case every lookup
// goes to TMDB.
func NewResolver(api API, cache TitleCache, opts ...ResolverOption) (*Resolver, error) {
	if api == nil {
		return nil, errors.New("tmdb resolver requires an api client")
	}
	r := &Resolver{
		api:             api,
		cache:           cache,
		logger:          logging.NewComponentLogger(nil, "tmdb-resolver"),
		now:             time.Now,
		unresolvedRetry: DefaultUnresolvedRetry,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the TMDB reference for imdbID. hint ("movie" or "tv")
// breaks the tie when TMDB lists the identifier under both media types. A title
// TMDB does not know resolves to a reference with a zero TMDBID and no error.
func (r *Resolver) Resolve(ctx context.Context, imdbID, hint string) (providerstore.TitleRef, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return providerstore.TitleRef{}, errors.New("imdb id must not be empty")
	}

	if ref, ok := r.cached(ctx, imdbID); ok {
		return ref, nil
	}

	return sharedCall(ctx, &r.group, imdbID, func(callCtx context.Context) (providerstore.TitleRef, error) {
		return r.lookup(callCtx, imdbID, hint)
	})
}

func (r *Resolver) cached(ctx context.Context, imdbID string) (providerstore.TitleRef, bool) {
	if r.cache == nil {
		return providerstore.TitleRef{}, false
	}
	ref, ok, err := r.cache.LookupTitle(ctx, imdbID)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "title cache lookup failed", "title_cache_lookup_failed",
			logging.String("imdb_id", imdbID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the cache database"),
			logging.String(logging.FieldImpact, "title resolved through TMDB instead"),
		)
		return providerstore.TitleRef{}, false
	}
	if !ok {
		return providerstore.TitleRef{}, false
	}
	if !ref.Resolved() && r.now().Sub(ref.ResolvedAt) >= r.unresolvedRetry {
		return providerstore.TitleRef{}, false
	}
	return ref, true
}

func (r *Resolver) lookup(ctx context.Context, imdbID, hint string) (providerstore.TitleRef, error) {
	resp, err := r.api.FindByIMDbID(ctx, imdbID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return providerstore.TitleRef{}, fmt.Errorf("resolve %s: %w", imdbID, err)
	}
	ref := chooseMatch(imdbID, resp, hint)
	ref.ResolvedAt = r.now()

	if r.cache != nil {
		if err := r.cache.SaveTitle(ctx, ref); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "title cache write failed", "title_cache_write_failed",
				logging.String("imdb_id", imdbID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the cache database"),
				logging.String(logging.FieldImpact, "title will be resolved again next run"),
			)
		}
	}
	r.logger.Debug("title resolved",
		logging.String("imdb_id", imdbID),
		logging.Int64("tmdb_id", ref.TMDBID),
		logging.String("media_type", ref.MediaType),
	)
	return ref, nil
}

func chooseMatch(imdbID string, resp *FindResponse, hint string) providerstore.TitleRef {
	ref := providerstore.TitleRef{IMDbID: imdbID, MediaType: MediaMovie}
	if hint == MediaTV {
		ref.MediaType = MediaTV
	}
	if resp == nil {
		return ref
	}

	var movieID, tvID int64
	if len(resp.MovieResults) > 0 {
		movieID = resp.MovieResults[0].ID
	}
	if len(resp.TVResults) > 0 {
		tvID = resp.TVResults[0].ID
	}

	switch {
	case movieID > 0 && tvID > 0 && hint == MediaTV:
		ref.TMDBID, ref.MediaType = tvID, MediaTV
	case movieID > 0:
		ref.TMDBID, ref.MediaType = movieID, MediaMovie
	case tvID > 0:
		ref.TMDBID, ref.MediaType = tvID, MediaTV
	}
	return ref
}
