// Package logs reads the watchlist log file for the `watchlist logs` command.
//
// Tail returns the last N matching lines or everything written after an
// offset, optionally waiting for new lines. Filter understands both the JSON
// and console formats the logging package writes, so a run can be narrowed to
// one correlation ID, component, or minimum level regardless of the
// configured format.
package logs
