// Package availability reconciles requested (title, region) pairs against the
// local provider cache and the remote provider source.
//
// A Manager receives a batch of keys, reads every cached record in one bulk
// call, classifies each key as fresh, stale, or missing against the caller's
// TTL, and fetches only the keys that need refreshing. Fetches run
// concurrently up to Options.MaxConcurrentFetches and each successful result
// is written to the store as soon as it arrives. Failed refreshes never touch
// the store: the previous record, when one exists, is served back with
// StatusFetchFailed so callers can tell "confirmed unavailable" (an empty
// provider set) apart from "could not be determined right now".
//
// The remote source is abstracted behind Fetcher, whose Outcome variant is
// the only shape the rest of the package ever inspects. The store is
// abstracted behind Store; internal/providerstore supplies the SQLite
// implementation.
package availability
