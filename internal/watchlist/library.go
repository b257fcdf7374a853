package watchlist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"watchlist/internal/fileutil"
	"watchlist/internal/region"
)

var (
	// ErrNotFound is returned for watchlists that are not in the library.
	ErrNotFound = errors.New("watchlist not found")
	// ErrInvalidName is returned for names that cannot be used as file names.
	ErrInvalidName = errors.New("invalid watchlist name")
)

const refreshDateLayout = "2006-01-02"

// Metadata is persisted next to each watchlist as <name>.json.
type Metadata struct {
	ImportedAt    time.Time         `json:"imported_at"`
	Checksum      string            `json:"checksum"`
	TitleCount    int               `json:"title_count"`
	LastRefreshed map[string]string `json:"last_refreshed"`
}

// RefreshedOn returns the last refresh date recorded for code.
func (m Metadata) RefreshedOn(code region.Code) (string, bool) {
	date, ok := m.LastRefreshed[string(code)]
	return date, ok
}

// Entry describes a stored watchlist.
type Entry struct {
	Name     string
	Path     string
	Size     int64
	Modified time.Time
	Meta     Metadata
}

// Library stores uploaded watchlists in a directory.
type Library struct {
	dir string
	now func() time.Time
}

// NewLibrary opens the library rooted at dir, creating it when needed.
func NewLibrary(dir string) (*Library, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("watchlist library directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &Library{dir: dir, now: time.Now}, nil
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}

// NormalizeName derives a library name from a user supplied name or file path.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(filepath.Base(strings.TrimSpace(name)))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ' ':
		default:
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, r)
		}
	}
	return name, nil
}

func (l *Library) csvPath(name string) string  { return filepath.Join(l.dir, name+".csv") }
func (l *Library) metaPath(name string) string { return filepath.Join(l.dir, name+".json") }

// Import validates and stores a watchlist export, replacing any existing
// watchlist with the same name. Refresh history is kept only when the content
// is unchanged.
func (l *Library) Import(name string, r io.Reader) (Entry, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return Entry{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Entry{}, fmt.Errorf("read watchlist: %w", err)
	}
	titles, err := ParseCSV(bytes.NewReader(data))
	if err != nil {
		return Entry{}, err
	}

	checksum := fileutil.Checksum(data)
	previous, err := l.Metadata(name)
	if err != nil {
		previous = Metadata{}
	}

	if err := fileutil.WriteFileAtomic(l.csvPath(name), data, 0o644); err != nil {
		return Entry{}, err
	}
	meta := Metadata{
		ImportedAt:    l.now().UTC(),
		Checksum:      checksum,
		TitleCount:    len(titles),
		LastRefreshed: map[string]string{},
	}
	if previous.Checksum == checksum {
		meta.LastRefreshed = previous.LastRefreshed
	}
	if err := l.saveMetadata(name, meta); err != nil {
		return Entry{}, err
	}
	return l.Get(name)
}

// Get returns the stored watchlist named name.
func (l *Library) Get(name string) (Entry, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(l.csvPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("stat watchlist: %w", err)
	}
	meta, err := l.Metadata(name)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Name: name, Path: l.csvPath(name), Size: info.Size(), Modified: info.ModTime(), Meta: meta}, nil
}

// List returns all stored watchlists ordered by name.
func (l *Library) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read uploads directory: %w", err)
	}
	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".csv" {
			continue
		}
		entry, err := l.Get(strings.TrimSuffix(de.Name(), ".csv"))
		if errors.Is(err, ErrInvalidName) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Titles parses the stored watchlist.
func (l *Library) Titles(name string) ([]Title, error) {
	entry, err := l.Get(name)
	if err != nil {
		return nil, err
	}
	return ParseFile(entry.Path)
}

// Remove deletes the watchlist and its metadata.
func (l *Library) Remove(name string) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(l.csvPath(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("remove watchlist: %w", err)
	}
	if err := os.Remove(l.metaPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove watchlist metadata: %w", err)
	}
	return nil
}

// ExclusiveTitles returns the IMDb ids in name that no other stored watchlist
// references.
func (l *Library) ExclusiveTitles(name string) ([]string, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	own, err := l.Titles(name)
	if err != nil {
		return nil, err
	}
	entries, err := l.List()
	if err != nil {
		return nil, err
	}
	shared := make(map[string]struct{})
	for _, entry := range entries {
		if entry.Name == name {
			continue
		}
		titles, err := ParseFile(entry.Path)
		if err != nil {
			return nil, err
		}
		for _, title := range titles {
			shared[title.IMDbID] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(own))
	var exclusive []string
	for _, title := range own {
		if _, ok := shared[title.IMDbID]; ok {
			continue
		}
		if _, ok := seen[title.IMDbID]; ok {
			continue
		}
		seen[title.IMDbID] = struct{}{}
		exclusive = append(exclusive, title.IMDbID)
	}
	return exclusive, nil
}

// Metadata loads the metadata for name. A missing file yields empty metadata.
func (l *Library) Metadata(name string) (Metadata, error) {
	meta := Metadata{LastRefreshed: map[string]string{}}
	data, err := os.ReadFile(l.metaPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("read watchlist metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{LastRefreshed: map[string]string{}}, fmt.Errorf("decode watchlist metadata %s: %w", name, err)
	}
	if meta.LastRefreshed == nil {
		meta.LastRefreshed = map[string]string{}
	}
	return meta, nil
}

// MarkRefreshed records at as the refresh date for each region.
func (l *Library) MarkRefreshed(name string, codes []region.Code, at time.Time) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	meta, err := l.Metadata(name)
	if err != nil {
		return err
	}
	date := at.Format(refreshDateLayout)
	for _, code := range codes {
		meta.LastRefreshed[string(code)] = date
	}
	return l.saveMetadata(name, meta)
}

func (l *Library) saveMetadata(name string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode watchlist metadata: %w", err)
	}
	return fileutil.WriteFileAtomic(l.metaPath(name), append(data, '\n'), 0o644)
}
