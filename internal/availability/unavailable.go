package availability

import (
	"context"
	"fmt"
)

// UnavailableStore stands in for a store that could not be opened. Every call
// fails with ErrStoreUnavailable, so Resolve serves the batch remote-only and
// reports it as degraded.
type UnavailableStore struct {
	Err error
}

func (s UnavailableStore) GetMany(context.Context, []Key) (map[Key]Record, error) {
	return nil, s.err()
}

func (s UnavailableStore) Put(context.Context, Record) error {
	return s.err()
}

func (s UnavailableStore) err() error {
	if s.Err == nil {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, s.Err)
}
