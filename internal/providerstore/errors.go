package providerstore

import "watchlist/internal/availability"

var (
	// ErrStoreUnavailable wraps every I/O failure reported by the store.
	ErrStoreUnavailable = availability.ErrStoreUnavailable
	// ErrCorrupt marks a stored row that cannot be decoded.
	ErrCorrupt = availability.ErrCorruptRecord
)
