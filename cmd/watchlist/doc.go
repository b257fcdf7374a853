// Package main hosts the watchlist CLI entrypoint and command graph.
//
// The Cobra command tree reads IMDb watchlist exports, resolves streaming
// availability through the availability cache, and renders the result as a
// table or JSON. It also exposes maintenance commands for stored watchlists,
// the provider cache and configuration scaffolding, plus status, log tailing
// and a notification test.
//
// Commands share a commandContext that lazily loads configuration, opens the
// cache database, and builds the logger so subcommands only wire what they
// use.
package main
