package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WatchlistRow is one title written by WriteWatchlist.
type WatchlistRow struct {
	IMDbID string
	Title  string
	Type   string
	Year   string
}

const watchlistHeader = "Position,Const,Created,Modified,Description,Title,URL,Title Type,IMDb Rating,Runtime (mins),Year,Genres,Num Votes,Release Date,Directors"

// WriteWatchlist writes an IMDb-style export containing rows and returns its path.
func WriteWatchlist(t testing.TB, path string, rows ...WatchlistRow) string {
	t.Helper()

	var b strings.Builder
	b.WriteString(watchlistHeader)
	b.WriteByte('\n')
	for i, row := range rows {
		kind := row.Type
		if kind == "" {
			kind = "movie"
		}
		fields := []string{
			itoa(i + 1), row.IMDbID, "", "", "", quote(row.Title), "", kind, "", "", row.Year, "", "", "", "",
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func quote(value string) string {
	if strings.ContainsAny(value, ",\"\n") {
		return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	}
	return value
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
