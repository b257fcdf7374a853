package tmdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"watchlist/internal/availability"
	"watchlist/internal/logging"
	"watchlist/internal/providerstore"
	"watchlist/internal/region"
)

// DefaultResponseReuse bounds how long a watch providers payload serves other
// regions of the same title.
const DefaultResponseReuse = time.Minute

// Fetcher adapts the TMDB API to availability.Fetcher.
type Fetcher struct {
	api      API
	resolver *Resolver
	hints    func(titleID string) string
	logger   *slog.Logger
	now      func() time.Time
	reuse    time.Duration

	group singleflight.Group
	mu    sync.Mutex
	memo  map[string]memoEntry
}

type memoEntry struct {
	resp    *ProvidersResponse
	fetched time.Time
}

var _ availability.Fetcher = (*Fetcher)(nil)

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithMediaHints supplies the IMDb-derived media type for titles.
func WithMediaHints(hints func(titleID string) string) FetcherOption {
	return func(f *Fetcher) {
		f.hints = hints
	}
}

// WithFetcherLogger sets the fetcher logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logging.NewComponentLogger(logger, "tmdb-fetcher")
	}
}

// WithResponseReuse sets how long a providers payload is shared across regions.
// Zero disables reuse.
func WithResponseReuse(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.reuse = d
	}
}

// WithFetcherClock overrides the time source.
func WithFetcherClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFetcher builds a Fetcher backed by api and resolver.
func NewFetcher(api API, resolver *Resolver, opts ...FetcherOption) (*Fetcher, error) {
	if api == nil {
		return nil, errors.New("tmdb fetcher requires an api client")
	}
	if resolver == nil {
		return nil, errors.New("tmdb fetcher requires a title resolver")
	}
	f := &Fetcher{
		api:      api,
		resolver: resolver,
		logger:   logging.NewComponentLogger(nil, "tmdb-fetcher"),
		now:      time.Now,
		reuse:    DefaultResponseReuse,
		memo:     make(map[string]memoEntry),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch returns the flat-rate providers for titleID in code. Titles TMDB cannot
// resolve and regions without flat-rate offers yield NotFound.
func (f *Fetcher) Fetch(ctx context.Context, titleID string, code region.Code) availability.Outcome {
	hint := ""
	if f.hints != nil {
		hint = f.hints(titleID)
	}

	ref, err := f.resolver.Resolve(ctx, titleID, hint)
	if err != nil {
		return classify(err)
	}
	if !ref.Resolved() {
		f.logger.Debug("title unknown to tmdb", logging.String("imdb_id", titleID))
		return availability.NotFound()
	}

	resp, err := f.providers(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return availability.NotFound()
	}
	if err != nil {
		return classify(fmt.Errorf("watch providers %s: %w", titleID, err))
	}

	offers, ok := resp.Results[string(code)]
	if !ok || len(offers.Flatrate) == 0 {
		return availability.NotFound()
	}
	names := make([]string, 0, len(offers.Flatrate))
	for _, provider := range offers.Flatrate {
		names = append(names, provider.Name)
	}
	return availability.Found(names)
}

func (f *Fetcher) providers(ctx context.Context, ref providerstore.TitleRef) (*ProvidersResponse, error) {
	key := ref.MediaType + "/" + strconv.FormatInt(ref.TMDBID, 10)

	if f.reuse > 0 {
		f.mu.Lock()
		entry, ok := f.memo[key]
		f.mu.Unlock()
		if ok && f.now().Sub(entry.fetched) < f.reuse {
			return entry.resp, nil
		}
	}

	return sharedCall(ctx, &f.group, key, func(callCtx context.Context) (*ProvidersResponse, error) {
		resp, err := f.api.WatchProviders(callCtx, ref.MediaType, ref.TMDBID)
		if err != nil {
			return nil, err
		}
		if f.reuse > 0 {
			f.mu.Lock()
			f.memo[key] = memoEntry{resp: resp, fetched: f.now()}
			f.mu.Unlock()
		}
		return resp, nil
	})
}

func classify(err error) availability.Outcome {
	if errors.Is(err, ErrRateLimited) {
		return availability.RateLimited(err)
	}
	return availability.TransientError(err)
}
