// Package region defines the fixed set of territories the watchlist checker
// can report streaming availability for.
//
// Codes follow the ISO 3166-1 alpha-2 spelling TMDB uses for its
// watch-provider results. "UK" is accepted as an alias for GB because that is
// how most users type it.
package region
