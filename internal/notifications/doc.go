// Package notifications delivers check results via ntfy.
//
// NewService returns a publisher bound to the configured topic URL, or a no-op
// when no topic is set. Callers publish enumerated events with a loose
// payload; the service owns the message wording, tags and priority so every
// command formats alerts the same way.
package notifications
