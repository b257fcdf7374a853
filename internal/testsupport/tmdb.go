package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// TMDBTitle describes one title served by the fake TMDB server.
type TMDBTitle struct {
	IMDbID    string
	TMDBID    int64
	MediaType string
	// Providers maps region codes to flat-rate provider names.
	Providers map[string][]string
}

// TMDBServer is an httptest server speaking the subset of the TMDB API the
// checker uses.
type TMDBServer struct {
	*httptest.Server
	Requests atomic.Int32
	// FailProviders makes the watch providers endpoint return this status.
	FailProviders atomic.Int32
}

// NewTMDBServer starts a fake TMDB API and registers cleanup.
func NewTMDBServer(t testing.TB, titles ...TMDBTitle) *TMDBServer {
	t.Helper()
	byIMDb := make(map[string]TMDBTitle, len(titles))
	byTMDB := make(map[string]TMDBTitle, len(titles))
	for _, title := range titles {
		if title.MediaType == "" {
			title.MediaType = "movie"
		}
		byIMDb[title.IMDbID] = title
		byTMDB[title.MediaType+"/"+strconv.FormatInt(title.TMDBID, 10)] = title
	}

	srv := &TMDBServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.Requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

		switch {
		case len(parts) == 1 && parts[0] == "configuration":
			_, _ = w.Write([]byte(`{"images":{}}`))
		case len(parts) == 2 && parts[0] == "find":
			payload := map[string][]map[string]any{"movie_results": {}, "tv_results": {}}
			if title, ok := byIMDb[parts[1]]; ok {
				listKey := "movie_results"
				if title.MediaType == "tv" {
					listKey = "tv_results"
				}
				payload[listKey] = []map[string]any{{"id": title.TMDBID}}
			}
			_ = json.NewEncoder(w).Encode(payload)
		case len(parts) == 4 && parts[2] == "watch" && parts[3] == "providers":
			if status := srv.FailProviders.Load(); status != 0 {
				w.WriteHeader(int(status))
				return
			}
			title, ok := byTMDB[parts[0]+"/"+parts[1]]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			results := map[string]any{}
			for code, names := range title.Providers {
				flatrate := make([]map[string]any, 0, len(names))
				for _, name := range names {
					flatrate = append(flatrate, map[string]any{"provider_name": name})
				}
				results[code] = map[string]any{"flatrate": flatrate}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": title.TMDBID, "results": results})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}
