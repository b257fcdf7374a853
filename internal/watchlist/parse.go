package watchlist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMissingColumn is returned when the export has no Const column.
var ErrMissingColumn = errors.New("watchlist export missing Const column")

const (
	colConst     = "Const"
	colTitle     = "Title"
	colType      = "Title Type"
	colPosition  = "Position"
	colYear      = "Year"
	colRating    = "IMDb Rating"
	colRuntime   = "Runtime (mins)"
	colGenres    = "Genres"
	colDirectors = "Directors"
)

// ParseFile reads an IMDb export from disk.
func ParseFile(path string) ([]Title, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open watchlist: %w", err)
	}
	defer file.Close()
	titles, err := ParseCSV(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return titles, nil
}

// ParseCSV reads an IMDb export. Rows without a Const value are skipped and
// rows are returned in file order.
func ParseCSV(r io.Reader) ([]Title, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		index[name] = i
	}
	if _, ok := index[colConst]; !ok {
		return nil, ErrMissingColumn
	}

	field := func(row []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var titles []Title
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		id := field(row, colConst)
		if id == "" {
			continue
		}
		rawType := field(row, colType)
		titles = append(titles, Title{
			IMDbID:    id,
			Name:      field(row, colTitle),
			Type:      TypeLabel(rawType),
			RawType:   rawType,
			Position:  optionalInt(field(row, colPosition)),
			Year:      optionalInt(field(row, colYear)),
			Rating:    optionalFloat(field(row, colRating)),
			Runtime:   optionalInt(field(row, colRuntime)),
			Genres:    splitGenres(field(row, colGenres)),
			Directors: field(row, colDirectors),
		})
	}
	return titles, nil
}

func optionalInt(value string) *int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &n
}

func optionalFloat(value string) *float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}

func splitGenres(value string) []string {
	genres := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			genres = append(genres, part)
		}
	}
	return genres
}
