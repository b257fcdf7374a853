// Package preflight provides readiness checks for the directories, cache
// database and remote services the watchlist checker depends on.
//
// RunAll backs "watchlist status". Checks run concurrently, and apart from
// opening the cache database they only read: the TMDB probe hits the
// configuration endpoint and the ntfy probe hits the server health endpoint.
package preflight
