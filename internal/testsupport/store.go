package testsupport

import (
	"path/filepath"
	"testing"

	"watchlist/internal/providerstore"
)

// OpenStore opens a cache database at path, or in a temp directory when path
// is empty, and closes it when the test ends.
func OpenStore(t testing.TB, path string) *providerstore.Store {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "cache.db")
	}
	store, err := providerstore.Open(path)
	if err != nil {
		t.Fatalf("open provider store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
