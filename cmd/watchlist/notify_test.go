package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"watchlist/internal/availability"
	"watchlist/internal/region"
	"watchlist/internal/testsupport"
)

type ntfyCapture struct {
	mu     sync.Mutex
	titles []string
	bodies []string
}

func newNtfyServer(t *testing.T) (*httptest.Server, *ntfyCapture) {
	t.Helper()
	capture := &ntfyCapture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		capture.mu.Lock()
		capture.titles = append(capture.titles, r.Header.Get("Title"))
		capture.bodies = append(capture.bodies, string(body))
		capture.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, capture
}

func TestCheckNotifiesNewArrivals(t *testing.T) {
	env := setupCLITestEnv(t, shawshank)
	csvPath := writeShawshankList(t, env)
	ntfy, capture := newNtfyServer(t)
	t.Setenv("WATCHLIST_NTFY_TOPIC", ntfy.URL)

	store := testsupport.OpenStore(t, env.cfg.CachePath())
	err := store.Put(context.Background(), availability.Record{
		Key:       availability.NewKey("tt0111161", region.GB),
		Providers: []string{},
		FetchedAt: time.Now().Add(-72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	if _, _, err := runCLI(t, []string{"check", csvPath, "-r", "GB"}, env.configPath); err != nil {
		t.Fatalf("check: %v", err)
	}

	capture.mu.Lock()
	defer capture.mu.Unlock()
	if len(capture.bodies) != 1 {
		t.Fatalf("expected one notification, got %d: %v", len(capture.bodies), capture.bodies)
	}
	requireContains(t, capture.titles[0], "Now Streaming")
	requireContains(t, capture.bodies[0], "The Shawshank Redemption (GB: Netflix)")
}

func TestCheckFirstRunDoesNotNotify(t *testing.T) {
	env := setupCLITestEnv(t, shawshank)
	csvPath := writeShawshankList(t, env)
	ntfy, capture := newNtfyServer(t)
	t.Setenv("WATCHLIST_NTFY_TOPIC", ntfy.URL)

	if _, _, err := runCLI(t, []string{"check", csvPath}, env.configPath); err != nil {
		t.Fatalf("check: %v", err)
	}

	capture.mu.Lock()
	defer capture.mu.Unlock()
	if len(capture.bodies) != 0 {
		t.Fatalf("expected no notifications, got %v", capture.bodies)
	}
}

func TestDetectArrivalsReportsAddedProvidersOnly(t *testing.T) {
	key := availability.NewKey("tt0903747", region.US)
	fresh := availability.NewKey("tt0111161", region.US)
	result := &availability.BatchResult{Entries: []availability.Entry{{
		Key:       key,
		Status:    availability.StatusFresh,
		Record:    &availability.Record{Key: key, Providers: []string{"AMC+", "Netflix"}},
		Previous:  &availability.Record{Key: key, Providers: []string{"Netflix"}},
		Refreshed: true,
	}, {
		Key:       fresh,
		Status:    availability.StatusFresh,
		Record:    &availability.Record{Key: fresh, Providers: []string{"Netflix"}},
		Refreshed: true,
	}}}

	arrivals := detectArrivals(result, nil)
	if len(arrivals) != 1 {
		t.Fatalf("expected one arrival, got %+v", arrivals)
	}
	if arrivals[0].Title != "tt0903747" || len(arrivals[0].Providers) != 1 || arrivals[0].Providers[0] != "AMC+" {
		t.Fatalf("unexpected arrival: %+v", arrivals[0])
	}
}

func TestTestNotifyRequiresTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err == nil {
		t.Fatal("expected error without a topic")
	}

	ntfy, capture := newNtfyServer(t)
	t.Setenv("WATCHLIST_NTFY_TOPIC", ntfy.URL)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	capture.mu.Lock()
	defer capture.mu.Unlock()
	if len(capture.titles) != 1 || capture.titles[0] != "Watchlist - Test" {
		t.Fatalf("unexpected notifications: %v", capture.titles)
	}
}
