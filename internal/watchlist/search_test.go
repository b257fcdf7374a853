package watchlist_test

import (
	"testing"

	"watchlist/internal/watchlist"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Amélie", []string{"amelie"}},
		{"The Lord of the Rings: Part 2", []string{"the", "lord", "of", "the", "rings", "part", "2"}},
		{"  ", nil},
		{"Léon: The Professional", []string{"leon", "the", "professional"}},
	}
	for _, tc := range cases {
		got := watchlist.Tokenize(tc.in)
		if len(got) != len(tc.want) {
			t.Fatalf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
			}
		}
	}
}

func TestSearchRanksTitles(t *testing.T) {
	titles := []watchlist.Title{
		{IMDbID: "tt0111161", Name: "The Shawshank Redemption", Directors: "Frank Darabont", Genres: []string{"Drama"}},
		{IMDbID: "tt0120689", Name: "The Green Mile", Directors: "Frank Darabont", Genres: []string{"Crime", "Drama"}},
		{IMDbID: "tt0211915", Name: "Amélie", Directors: "Jean-Pierre Jeunet", Genres: []string{"Comedy", "Romance"}},
		{IMDbID: "tt0068646", Name: "The Godfather", Directors: "Francis Ford Coppola", Genres: []string{"Crime", "Drama"}},
	}

	matches := watchlist.Search(titles, "amelie", watchlist.DefaultMatchScore)
	if len(matches) != 1 || matches[0].Title.IMDbID != "tt0211915" || matches[0].Score != 1 {
		t.Fatalf("unexpected matches for amelie: %+v", matches)
	}

	matches = watchlist.Search(titles, "darabont", watchlist.DefaultMatchScore)
	if len(matches) != 2 {
		t.Fatalf("expected both Darabont films, got %+v", matches)
	}
	if matches[0].Title.IMDbID != "tt0111161" || matches[1].Title.IMDbID != "tt0120689" {
		t.Fatalf("expected the shorter document to rank first, got %+v", matches)
	}

	if got := watchlist.Search(titles, "the", 0.9); len(got) != 3 {
		t.Fatalf("expected substring matches for every 'the' title, got %d", len(got))
	}
	if got := watchlist.Search(titles, "zzz", watchlist.DefaultMatchScore); len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
	if got := watchlist.Search(titles, "", 0); got != nil {
		t.Fatalf("expected nil for empty query, got %+v", got)
	}
}
