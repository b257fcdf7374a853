package tmdb_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"watchlist/internal/tmdb"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := tmdb.New("", "https://example.com", "en-US"); err == nil {
		t.Fatal("expected error when api key missing")
	}
	if _, err := tmdb.New("key", " ", "en-US"); err == nil {
		t.Fatal("expected error when base url missing")
	}
}

func TestFindByIMDbID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/find/tt0111161" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("api_key") != "key" || query.Get("external_source") != "imdb_id" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"movie_results":[{"id":278,"title":"The Shawshank Redemption"}],"tv_results":[]}`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL+"/", "en-US")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	resp, err := client.FindByIMDbID(context.Background(), "tt0111161")
	if err != nil {
		t.Fatalf("FindByIMDbID returned error: %v", err)
	}
	if len(resp.MovieResults) != 1 || resp.MovieResults[0].ID != 278 {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestWatchProviders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1396/watch/providers" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":1396,"results":{"GB":{"flatrate":[{"provider_id":8,"provider_name":"Netflix"}]}}}`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	resp, err := client.WatchProviders(context.Background(), tmdb.MediaTV, 1396)
	if err != nil {
		t.Fatalf("WatchProviders returned error: %v", err)
	}
	if got := resp.Results["GB"].Flatrate; len(got) != 1 || got[0].Name != "Netflix" {
		t.Fatalf("unexpected providers: %#v", resp.Results)
	}

	if _, err := client.WatchProviders(context.Background(), "person", 1); err == nil {
		t.Fatal("expected error for unsupported media type")
	}
}

func TestStatusErrorsMapToSentinels(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, tmdb.ErrRateLimited},
		{http.StatusNotFound, tmdb.ErrNotFound},
		{http.StatusUnauthorized, tmdb.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(tc.status)
			}))
			t.Cleanup(server.Close)

			client, err := tmdb.New("key", server.URL, "")
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			_, err = client.FindByIMDbID(context.Background(), "tt1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var statusErr *tmdb.StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tc.status {
				t.Fatalf("expected StatusError with %d, got %v", tc.status, err)
			}
			if statusErr.RetryAfter != 3*time.Second {
				t.Fatalf("expected Retry-After of 3s, got %v", statusErr.RetryAfter)
			}
		})
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "", tmdb.WithBreaker(tmdb.BreakerSettings{
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	for range 2 {
		if _, err := client.FindByIMDbID(context.Background(), "tt1"); err == nil {
			t.Fatal("expected error from failing server")
		}
	}
	_, err = client.FindByIMDbID(context.Background(), "tt1")
	if !errors.Is(err, tmdb.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected breaker to stop requests, got %d calls", calls.Load())
	}
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "", tmdb.WithBreaker(tmdb.BreakerSettings{FailureThreshold: 1}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	for range 3 {
		_, err := client.WatchProviders(context.Background(), tmdb.MediaMovie, 1)
		if !errors.Is(err, tmdb.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
}

func TestDecodeErrorIsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "", tmdb.WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.FindByIMDbID(context.Background(), "tt1"); err == nil {
		t.Fatal("expected decode error")
	}
}
