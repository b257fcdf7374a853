package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"watchlist/internal/availability"
	"watchlist/internal/region"
	"watchlist/internal/watchlist"
)

const (
	sortPosition = "position"
	sortTitle    = "title"
	sortYear     = "year"
)

const (
	markUnavailable = "—"
	markFailed      = "FAILED"
	markNotCached   = "not cached"
)

type checkReport struct {
	Watchlist string                `json:"watchlist"`
	Mode      string                `json:"mode"`
	Regions   []region.Code         `json:"regions"`
	Titles    []titleReport         `json:"titles"`
	Manifest  availability.Manifest `json:"manifest"`
}

type titleReport struct {
	IMDbID       string                       `json:"imdb_id"`
	Title        string                       `json:"title"`
	Type         string                       `json:"type"`
	Year         *int                         `json:"year,omitempty"`
	Position     *int                         `json:"position,omitempty"`
	Availability map[region.Code]regionReport `json:"availability"`
}

type regionReport struct {
	Status    availability.Status `json:"status"`
	Providers []string            `json:"providers"`
	FetchedAt time.Time           `json:"fetched_at,omitzero"`
	Error     string              `json:"error,omitempty"`
}

// available reports whether any region lists at least one provider.
func (t titleReport) available() bool {
	for _, cell := range t.Availability {
		if len(cell.Providers) > 0 {
			return true
		}
	}
	return false
}

func buildReport(name, mode string, codes []region.Code, titles []watchlist.Title, result *availability.BatchResult) checkReport {
	report := checkReport{
		Watchlist: name,
		Mode:      mode,
		Regions:   codes,
		Titles:    make([]titleReport, 0, len(titles)),
		Manifest:  result.Manifest,
	}
	seen := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		if _, dup := seen[title.IMDbID]; dup {
			continue
		}
		seen[title.IMDbID] = struct{}{}

		row := titleReport{
			IMDbID:       title.IMDbID,
			Title:        title.Name,
			Type:         title.Type,
			Year:         title.Year,
			Position:     title.Position,
			Availability: make(map[region.Code]regionReport, len(codes)),
		}
		for _, code := range codes {
			entry, ok := result.Get(availability.NewKey(title.IMDbID, code))
			if !ok {
				continue
			}
			row.Availability[code] = regionCell(entry)
		}
		report.Titles = append(report.Titles, row)
	}
	return report
}

func regionCell(entry availability.Entry) regionReport {
	cell := regionReport{Status: entry.Status, Providers: entry.Providers()}
	if entry.Record != nil {
		cell.FetchedAt = entry.Record.FetchedAt
	}
	if cell.Providers == nil {
		cell.Providers = []string{}
	}
	if entry.Outcome != nil && entry.Outcome.Err != nil {
		cell.Error = entry.Outcome.Err.Error()
	}
	return cell
}

func validateSort(sortBy string) error {
	switch strings.ToLower(strings.TrimSpace(sortBy)) {
	case sortPosition, sortTitle, sortYear, "":
		return nil
	default:
		return fmt.Errorf("unknown sort order %q (expected position, title, or year)", sortBy)
	}
}

func (r *checkReport) sortTitles(sortBy string) {
	col := collate.New(language.English, collate.IgnoreCase, collate.IgnoreDiacritics)
	byTitle := func(a, b titleReport) bool {
		if cmp := col.CompareString(a.Title, b.Title); cmp != 0 {
			return cmp < 0
		}
		return a.IMDbID < b.IMDbID
	}

	switch strings.ToLower(strings.TrimSpace(sortBy)) {
	case sortTitle:
		sort.SliceStable(r.Titles, func(i, j int) bool { return byTitle(r.Titles[i], r.Titles[j]) })
	case sortYear:
		// Newest first, undated titles last.
		sort.SliceStable(r.Titles, func(i, j int) bool {
			a, b := r.Titles[i], r.Titles[j]
			if (a.Year == nil) != (b.Year == nil) {
				return a.Year != nil
			}
			if a.Year != nil && *a.Year != *b.Year {
				return *a.Year > *b.Year
			}
			return byTitle(a, b)
		})
	default:
		// IMDb positions grow as titles are added, so the highest comes first.
		sort.SliceStable(r.Titles, func(i, j int) bool {
			a, b := r.Titles[i], r.Titles[j]
			if (a.Position == nil) != (b.Position == nil) {
				return a.Position != nil
			}
			if a.Position != nil && *a.Position != *b.Position {
				return *a.Position > *b.Position
			}
			return false
		})
	}
}

func (r *checkReport) filterAvailable() {
	kept := r.Titles[:0]
	for _, title := range r.Titles {
		if title.available() {
			kept = append(kept, title)
		}
	}
	r.Titles = kept
}

func renderReport(report checkReport, colorize bool) string {
	if len(report.Titles) == 0 {
		return "No titles to show.\n"
	}
	columns := []column{textColumn("Title"), numberColumn("Year"), textColumn("Type")}
	for _, code := range report.Regions {
		columns = append(columns, textColumn(string(code)))
	}

	rows := make([][]string, 0, len(report.Titles))
	for _, title := range report.Titles {
		year := ""
		if title.Year != nil {
			year = strconv.Itoa(*title.Year)
		}
		name := title.Title
		if name == "" {
			name = title.IMDbID
		}
		row := []string{name, year, title.Type}
		for _, code := range report.Regions {
			row = append(row, formatCell(title.Availability[code], colorize))
		}
		rows = append(rows, row)
	}
	return renderTable(columns, rows) + "\n"
}

func formatCell(cell regionReport, colorize bool) string {
	switch {
	case cell.Status == availability.StatusMissing:
		return paint(markNotCached, text.FgHiBlack, colorize)
	case cell.Status == availability.StatusFetchFailed && cell.FetchedAt.IsZero():
		return paint(markFailed, text.FgRed, colorize)
	case cell.Status == "":
		return ""
	}

	value := markUnavailable
	if len(cell.Providers) > 0 {
		value = paint(strings.Join(cell.Providers, ", "), text.FgGreen, colorize)
	}
	switch cell.Status {
	case availability.StatusStale:
		value += " (stale)"
	case availability.StatusFetchFailed:
		value += " " + paint("(stale, refresh failed)", text.FgYellow, colorize)
	}
	return value
}

func paint(value string, color text.Color, colorize bool) string {
	if !colorize {
		return value
	}
	return text.Colors{color}.Sprint(value)
}

func summarizeManifest(m availability.Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d lookups: %d cached, %d refreshed, %d failed",
		m.Unique, m.ServedFresh+m.ServedStale, m.Refreshed, m.Failed)
	if m.StaleFallbacks > 0 {
		fmt.Fprintf(&b, " (%d served stale)", m.StaleFallbacks)
	}
	if m.Missing > 0 {
		fmt.Fprintf(&b, ", %d not cached", m.Missing)
	}
	if m.WriteFailures > 0 {
		fmt.Fprintf(&b, ", %d not saved", m.WriteFailures)
	}
	if m.Degraded {
		b.WriteString("\nWarning: the cache could not be read; results came from TMDB only")
	}
	return b.String()
}
