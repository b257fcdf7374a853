// Package tmdb talks to The Movie Database and adapts it to the availability
// Fetcher contract.
//
// Client wraps the two endpoints the checker needs: /find for mapping IMDb
// identifiers to TMDB ids and /watch/providers for per-region provider lists.
// Resolver memoizes the IMDb to TMDB mapping in the provider store and
// coalesces concurrent lookups for the same title. Fetcher turns raw responses
// into availability.Outcome values immediately so nothing downstream inspects
// TMDB payloads.
package tmdb
