package availability

import (
	"sort"
	"strings"
	"time"

	"watchlist/internal/region"
)

// Key identifies one (title, region) lookup. Keys are comparable and used as
// map keys throughout the package.
type Key struct {
	TitleID string
	Region  region.Code
}

// NewKey builds a key from an external title identifier and region code.
func NewKey(titleID string, code region.Code) Key {
	return Key{TitleID: strings.TrimSpace(titleID), Region: code}
}

func (k Key) String() string {
	return k.TitleID + "/" + string(k.Region)
}

// KeySet is an unordered set of keys.
type KeySet map[Key]struct{}

// NewKeySet builds a set from keys.
func NewKeySet(keys ...Key) KeySet {
	set := make(KeySet, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}

// Has reports whether key is in the set.
func (s KeySet) Has(key Key) bool {
	if s == nil {
		return false
	}
	_, ok := s[key]
	return ok
}

// Status describes how a record relates to the caller's freshness policy.
// It is always derived and never persisted.
type Status string

const (
	StatusFresh       Status = "fresh"
	StatusStale       Status = "stale"
	StatusMissing     Status = "missing"
	StatusFetchFailed Status = "fetch_failed"
)

// Record is a cached provider set for one key. An empty Providers slice means
// the remote source confirmed the title is not available in the region.
type Record struct {
	Key       Key
	Providers []string
	FetchedAt time.Time
}

// StatusAt classifies the record at now under ttl.
func (r Record) StatusAt(now time.Time, ttl time.Duration) Status {
	if now.Sub(r.FetchedAt) < ttl {
		return StatusFresh
	}
	return StatusStale
}

// Available reports whether at least one provider carries the title.
func (r Record) Available() bool {
	return len(r.Providers) > 0
}

// Equal reports whether two records carry the same key, providers, and
// fetch time.
func (r Record) Equal(other Record) bool {
	if r.Key != other.Key || !r.FetchedAt.Equal(other.FetchedAt) {
		return false
	}
	if len(r.Providers) != len(other.Providers) {
		return false
	}
	for i := range r.Providers {
		if r.Providers[i] != other.Providers[i] {
			return false
		}
	}
	return true
}

// NormalizeProviders trims, deduplicates, and sorts provider names. The
// result is never nil so an empty set survives serialization as [].
func NormalizeProviders(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
