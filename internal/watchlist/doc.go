// Package watchlist parses IMDb watchlist exports and manages the library of
// uploaded watchlists.
//
// ParseCSV reads the columns IMDb includes in its CSV export and skips rows
// without an identifier. Library stores each upload under the uploads
// directory alongside a small JSON metadata file that records when each region
// was last refreshed.
package watchlist
