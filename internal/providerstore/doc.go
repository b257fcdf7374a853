// Package providerstore persists provider availability records and resolved
// TMDB title references in SQLite.
//
// The Store implements availability.Store. Every I/O failure is wrapped with
// availability.ErrStoreUnavailable so the manager can degrade to remote-only
// mode, while rows that cannot be decoded surface as
// availability.ErrCorruptRecord. Writes are upserts keyed by (title, region)
// and never move fetched_at backwards.
//
// Schema changes bump schemaVersion in schema.go. Opening an older file drops
// and recreates the cache tables, since every row can be fetched again; a file
// from a newer release is refused with ErrSchemaMismatch.
package providerstore
