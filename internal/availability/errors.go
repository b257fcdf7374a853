package availability

import (
	"errors"

	"watchlist/internal/region"
)

var (
	// ErrInvalidRegion is returned by Resolve when a key names a region
	// outside the supported set. It is raised before any store or remote
	// access happens.
	ErrInvalidRegion = region.ErrInvalidRegion
	// ErrInvalidKey is returned by Resolve when a key has no title identifier.
	ErrInvalidKey = errors.New("invalid availability key")
	// ErrStoreUnavailable marks store I/O failures. Resolve degrades to
	// remote-only mode instead of failing.
	ErrStoreUnavailable = errors.New("availability store unavailable")
	// ErrCorruptRecord marks a persisted record that cannot be decoded.
	// Resolve treats it as a hard failure.
	ErrCorruptRecord = errors.New("corrupt availability record")
)
