package tmdb_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"watchlist/internal/availability"
	"watchlist/internal/region"
	"watchlist/internal/testsupport"
	"watchlist/internal/tmdb"
)

type fakeAPI struct {
	mu            sync.Mutex
	find          map[string]*tmdb.FindResponse
	findErr       error
	providers     map[int64]*tmdb.ProvidersResponse
	providersErr  error
	findCalls     atomic.Int32
	providerCalls atomic.Int32
	gate          chan struct{}
}

func (f *fakeAPI) FindByIMDbID(_ context.Context, imdbID string) (*tmdb.FindResponse, error) {
	f.findCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if resp, ok := f.find[imdbID]; ok {
		return resp, nil
	}
	return &tmdb.FindResponse{}, nil
}

func (f *fakeAPI) WatchProviders(_ context.Context, _ string, id int64) (*tmdb.ProvidersResponse, error) {
	f.providerCalls.Add(1)
	if f.providersErr != nil {
		return nil, f.providersErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if resp, ok := f.providers[id]; ok {
		return resp, nil
	}
	return nil, &tmdb.StatusError{Endpoint: "watch providers", StatusCode: 404}
}

func shawshankAPI() *fakeAPI {
	return &fakeAPI{
		find: map[string]*tmdb.FindResponse{
			"tt0111161": {MovieResults: []tmdb.FindResult{{ID: 278}}},
		},
		providers: map[int64]*tmdb.ProvidersResponse{
			278: {ID: 278, Results: map[string]tmdb.RegionProviders{
				"GB": {Flatrate: []tmdb.Provider{{Name: "Netflix"}}},
				"CA": {Rent: []tmdb.Provider{{Name: "Apple TV"}}},
			}},
		},
	}
}

func newFetcher(t *testing.T, api *fakeAPI, cache tmdb.TitleCache, opts ...tmdb.FetcherOption) *tmdb.Fetcher {
	t.Helper()
	resolver, err := tmdb.NewResolver(api, cache)
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	fetcher, err := tmdb.NewFetcher(api, resolver, opts...)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	return fetcher
}

func TestFetchFoundAndNotFoundByRegion(t *testing.T) {
	api := shawshankAPI()
	fetcher := newFetcher(t, api, nil)
	ctx := context.Background()

	gb := fetcher.Fetch(ctx, "tt0111161", region.GB)
	if gb.Kind != availability.OutcomeFound || len(gb.Providers) != 1 || gb.Providers[0] != "Netflix" {
		t.Fatalf("unexpected GB outcome: %+v", gb)
	}
	us := fetcher.Fetch(ctx, "tt0111161", region.US)
	if us.Kind != availability.OutcomeNotFound {
		t.Fatalf("expected NotFound for region without offers, got %+v", us)
	}
	ca := fetcher.Fetch(ctx, "tt0111161", region.CA)
	if ca.Kind != availability.OutcomeNotFound {
		t.Fatalf("rent-only offers should not count as streaming, got %+v", ca)
	}
	if api.providerCalls.Load() != 1 {
		t.Fatalf("expected providers payload reused across regions, got %d calls", api.providerCalls.Load())
	}
}

func TestFetchUnresolvableTitleIsNotFound(t *testing.T) {
	api := shawshankAPI()
	fetcher := newFetcher(t, api, nil)

	outcome := fetcher.Fetch(context.Background(), "tt9999999", region.GB)
	if outcome.Kind != availability.OutcomeNotFound || !outcome.Cacheable() {
		t.Fatalf("expected cacheable NotFound, got %+v", outcome)
	}
	if api.providerCalls.Load() != 0 {
		t.Fatal("providers endpoint should not be called for unresolved titles")
	}
}

func TestFetchClassifiesErrors(t *testing.T) {
	rateLimited := shawshankAPI()
	rateLimited.providersErr = &tmdb.StatusError{Endpoint: "watch providers", StatusCode: 429}
	outcome := newFetcher(t, rateLimited, nil).Fetch(context.Background(), "tt0111161", region.GB)
	if outcome.Kind != availability.OutcomeRateLimited || outcome.Cacheable() {
		t.Fatalf("expected RateLimited, got %+v", outcome)
	}

	broken := shawshankAPI()
	broken.findErr = errors.New("connection reset")
	outcome = newFetcher(t, broken, nil).Fetch(context.Background(), "tt0111161", region.GB)
	if outcome.Kind != availability.OutcomeTransientError || outcome.Err == nil {
		t.Fatalf("expected TransientError, got %+v", outcome)
	}

	open := shawshankAPI()
	open.providersErr = tmdb.ErrCircuitOpen
	outcome = newFetcher(t, open, nil).Fetch(context.Background(), "tt0111161", region.GB)
	if outcome.Kind != availability.OutcomeTransientError {
		t.Fatalf("expected open circuit to be transient, got %+v", outcome)
	}
}

func TestFetchProvidersNotFoundIsNotFound(t *testing.T) {
	api := shawshankAPI()
	api.find["tt0000001"] = &tmdb.FindResponse{MovieResults: []tmdb.FindResult{{ID: 1}}}

	outcome := newFetcher(t, api, nil).Fetch(context.Background(), "tt0000001", region.GB)
	if outcome.Kind != availability.OutcomeNotFound {
		t.Fatalf("expected NotFound, got %+v", outcome)
	}
}

func TestResolverPrefersMovieUnlessHintedTV(t *testing.T) {
	api := &fakeAPI{find: map[string]*tmdb.FindResponse{
		"tt1": {MovieResults: []tmdb.FindResult{{ID: 10}}, TVResults: []tmdb.FindResult{{ID: 20}}},
		"tt2": {TVResults: []tmdb.FindResult{{ID: 30}}},
	}}
	resolver, err := tmdb.NewResolver(api, nil)
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	ctx := context.Background()

	ref, err := resolver.Resolve(ctx, "tt1", "")
	if err != nil || ref.TMDBID != 10 || ref.MediaType != tmdb.MediaMovie {
		t.Fatalf("expected movie match, got %+v err %v", ref, err)
	}
	ref, err = resolver.Resolve(ctx, "tt1", tmdb.MediaTV)
	if err != nil || ref.TMDBID != 20 || ref.MediaType != tmdb.MediaTV {
		t.Fatalf("expected tv match with hint, got %+v err %v", ref, err)
	}
	ref, err = resolver.Resolve(ctx, "tt2", tmdb.MediaMovie)
	if err != nil || ref.TMDBID != 30 || ref.MediaType != tmdb.MediaTV {
		t.Fatalf("expected tv-only match, got %+v err %v", ref, err)
	}
}

func TestResolverMemoizesInStore(t *testing.T) {
	store := testsupport.OpenStore(t, "")

	api := shawshankAPI()
	ctx := context.Background()
	for range 3 {
		resolver, err := tmdb.NewResolver(api, store)
		if err != nil {
			t.Fatalf("NewResolver returned error: %v", err)
		}
		ref, err := resolver.Resolve(ctx, "tt0111161", "")
		if err != nil || ref.TMDBID != 278 {
			t.Fatalf("unexpected ref %+v err %v", ref, err)
		}
	}
	if api.findCalls.Load() != 1 {
		t.Fatalf("expected a single find call, got %d", api.findCalls.Load())
	}
}

func TestResolverRetriesOldUnresolvedTitles(t *testing.T) {
	store := testsupport.OpenStore(t, "")

	now := time.Date(2025, 1, 12, 9, 0, 0, 0, time.UTC)
	api := &fakeAPI{}
	ctx := context.Background()

	first, _ := tmdb.NewResolver(api, store, tmdb.WithResolverClock(func() time.Time { return now }))
	if ref, err := first.Resolve(ctx, "tt404", ""); err != nil || ref.Resolved() {
		t.Fatalf("expected unresolved ref, got %+v err %v", ref, err)
	}

	soon, _ := tmdb.NewResolver(api, store, tmdb.WithResolverClock(func() time.Time { return now.Add(time.Hour) }))
	_, _ = soon.Resolve(ctx, "tt404", "")
	if api.findCalls.Load() != 1 {
		t.Fatalf("unresolved answer should be reused within retry window, got %d calls", api.findCalls.Load())
	}

	later, _ := tmdb.NewResolver(api, store,
		tmdb.WithResolverClock(func() time.Time { return now.Add(8 * 24 * time.Hour) }),
	)
	_, _ = later.Resolve(ctx, "tt404", "")
	if api.findCalls.Load() != 2 {
		t.Fatalf("expected unresolved title to be looked up again, got %d calls", api.findCalls.Load())
	}
}

func TestResolverCoalescesConcurrentLookups(t *testing.T) {
	api := shawshankAPI()
	api.gate = make(chan struct{})
	resolver, err := tmdb.NewResolver(api, nil)
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := resolver.Resolve(context.Background(), "tt0111161", ""); err != nil {
				t.Errorf("Resolve returned error: %v", err)
			}
		}()
	}
	for api.findCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(api.gate)
	wg.Wait()

	if got := api.findCalls.Load(); got != 1 {
		t.Fatalf("expected concurrent lookups to coalesce into 1 call, got %d", got)
	}
}

func TestResolverSharedLookupOutlivesCancelledCaller(t *testing.T) {
	api := shawshankAPI()
	api.gate = make(chan struct{})
	resolver, err := tmdb.NewResolver(api, nil)
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := resolver.Resolve(firstCtx, "tt0111161", "")
		firstErr <- err
	}()
	for api.findCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	type answer struct {
		id  int64
		err error
	}
	second := make(chan answer, 1)
	go func() {
		ref, err := resolver.Resolve(context.Background(), "tt0111161", "")
		second <- answer{id: ref.TMDBID, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller should stop waiting with context.Canceled, got %v", err)
	}
	close(api.gate)

	got := <-second
	if got.err != nil || got.id != 278 {
		t.Fatalf("second caller got id=%d err=%v", got.id, got.err)
	}
	if calls := api.findCalls.Load(); calls != 1 {
		t.Fatalf("expected one shared find call, got %d", calls)
	}
}

func TestFetcherUsesMediaHints(t *testing.T) {
	api := &fakeAPI{
		find: map[string]*tmdb.FindResponse{
			"tt5": {MovieResults: []tmdb.FindResult{{ID: 50}}, TVResults: []tmdb.FindResult{{ID: 60}}},
		},
		providers: map[int64]*tmdb.ProvidersResponse{
			60: {Results: map[string]tmdb.RegionProviders{"DE": {Flatrate: []tmdb.Provider{{Name: "WOW"}}}}},
		},
	}
	fetcher := newFetcher(t, api, nil, tmdb.WithMediaHints(func(string) string { return tmdb.MediaTV }))

	outcome := fetcher.Fetch(context.Background(), "tt5", region.DE)
	if outcome.Kind != availability.OutcomeFound || outcome.Providers[0] != "WOW" {
		t.Fatalf("expected hinted tv providers, got %+v", outcome)
	}
}
