package tmdb

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrRateLimited marks HTTP 429 responses.
	ErrRateLimited = errors.New("tmdb rate limited")
	// ErrNotFound marks HTTP 404 responses.
	ErrNotFound = errors.New("tmdb resource not found")
	// ErrUnauthorized marks rejected API keys.
	ErrUnauthorized = errors.New("tmdb rejected api key")
	// ErrCircuitOpen is returned without contacting TMDB while the breaker is open.
	ErrCircuitOpen = errors.New("tmdb circuit open")
)

// StatusError describes a non-200 TMDB response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Latency    time.Duration
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb %s returned %d (latency=%v)", e.Endpoint, e.StatusCode, e.Latency)
}

// Is maps status codes onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// breakerNeutral reports errors that say nothing about TMDB health.
func breakerNeutral(err error) bool {
	return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized)
}
