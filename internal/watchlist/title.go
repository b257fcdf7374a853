package watchlist

import "strings"

// Title is one row of an IMDb watchlist export. Optional numeric fields are nil
// when the export leaves them blank or malformed.
type Title struct {
	IMDbID    string   `json:"imdb_id"`
	Name      string   `json:"title"`
	Type      string   `json:"type"`
	RawType   string   `json:"raw_type"`
	Position  *int     `json:"position,omitempty"`
	Year      *int     `json:"year,omitempty"`
	Rating    *float64 `json:"rating,omitempty"`
	Runtime   *int     `json:"runtime,omitempty"`
	Genres    []string `json:"genres"`
	Directors string   `json:"directors,omitempty"`
}

// MediaType returns the TMDB media type ("movie" or "tv") for the title.
func (t Title) MediaType() string {
	return MediaType(t.RawType)
}

var typeLabels = map[string]string{
	"movie":        "Movie",
	"tvSeries":     "TV Series",
	"tvMiniSeries": "TV Mini-Series",
	"tvEpisode":    "TV Episode",
	"short":        "Short",
	"video":        "Video",
	"tvMovie":      "TV Movie",
}

// TypeLabel turns an IMDb title type into a display label. Unknown types are
// returned unchanged.
func TypeLabel(raw string) string {
	raw = strings.TrimSpace(raw)
	if label, ok := typeLabels[raw]; ok {
		return label
	}
	return raw
}

var (
	movieTypes = map[string]struct{}{"movie": {}, "short": {}, "video": {}, "tvmovie": {}}
	tvTypes    = map[string]struct{}{"tvseries": {}, "tvminiseries": {}, "tvepisode": {}, "tvspecial": {}}
)

// MediaType maps an IMDb title type to the TMDB media type. Unknown types
// containing "tv" map to tv, everything else to movie. Display labels such as
// "TV Series" are accepted too.
func MediaType(imdbType string) string {
	normalized := strings.ToLower(strings.TrimSpace(imdbType))
	normalized = strings.NewReplacer(" ", "", "-", "").Replace(normalized)
	if _, ok := movieTypes[normalized]; ok {
		return "movie"
	}
	if _, ok := tvTypes[normalized]; ok {
		return "tv"
	}
	if strings.Contains(normalized, "tv") {
		return "tv"
	}
	return "movie"
}
