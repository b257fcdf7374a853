package availability

// Entry is the resolved state of one key within a batch.
type Entry struct {
	Key    Key
	Status Status
	// Record is nil when no data exists for the key: never fetched, or a
	// failed refresh with nothing to fall back to.
	Record *Record
	// Previous is the record the store held before this batch, or nil when
	// there was none or the store could not be read.
	Previous *Record
	// Refreshed is true when the record was fetched during this batch.
	Refreshed bool
	// Outcome is the remote result for refreshed or failed keys.
	Outcome *Outcome
	// Persisted is false when a refreshed record could not be written back.
	Persisted bool
}

// Providers returns the record's providers, or nil when the key has no data.
func (e Entry) Providers() []string {
	if e.Record == nil {
		return nil
	}
	return e.Record.Providers
}

// Known reports whether the entry carries a provider set the caller can
// present, including stale data served after a failed refresh.
func (e Entry) Known() bool {
	return e.Record != nil
}

// Manifest summarizes how every unique key in a batch was resolved.
type Manifest struct {
	Requested   int `json:"requested"`
	Unique      int `json:"unique"`
	ServedFresh int `json:"served_fresh"`
	// ServedStale counts stale records accepted without a refresh attempt
	// (offline mode only).
	ServedStale int `json:"served_stale"`
	Refreshed   int `json:"refreshed"`
	Failed      int `json:"failed"`
	// StaleFallbacks counts failed keys that were answered with their
	// previous record.
	StaleFallbacks int `json:"stale_fallbacks"`
	// Missing counts keys left without data and without a fetch attempt.
	Missing       int `json:"missing"`
	WriteFailures int `json:"write_failures"`
	// Degraded is set when the store could not be read and the batch was
	// served from the remote source only.
	Degraded bool `json:"degraded"`
}

// BatchResult holds one entry per unique requested key in first-seen order.
type BatchResult struct {
	Entries  []Entry
	Manifest Manifest

	index map[Key]int
}

func newBatchResult(entries []Entry, manifest Manifest) *BatchResult {
	index := make(map[Key]int, len(entries))
	for i, entry := range entries {
		index[entry.Key] = i
	}
	return &BatchResult{Entries: entries, Manifest: manifest, index: index}
}

// Get returns the entry for key.
func (r *BatchResult) Get(key Key) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	i, ok := r.index[key]
	if !ok {
		return Entry{}, false
	}
	return r.Entries[i], true
}

// Len returns the number of unique keys.
func (r *BatchResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Entries)
}
