package availability

import (
	"context"
	"fmt"

	"watchlist/internal/region"
)

// Fetcher performs a single-title, single-region lookup against the remote
// provider source. Implementations must not retry internally; retry policy
// belongs to the Manager's caller.
type Fetcher interface {
	Fetch(ctx context.Context, titleID string, code region.Code) Outcome
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, titleID string, code region.Code) Outcome

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, titleID string, code region.Code) Outcome {
	return f(ctx, titleID, code)
}

// OutcomeKind enumerates the normalized remote results.
type OutcomeKind int

const (
	OutcomeFound OutcomeKind = iota
	OutcomeNotFound
	OutcomeRateLimited
	OutcomeTransientError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTransientError:
		return "transient_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the normalized result of one remote lookup.
type Outcome struct {
	Kind      OutcomeKind
	Providers []string
	Err       error
}

// Found reports providers carrying the title.
func Found(providers []string) Outcome {
	return Outcome{Kind: OutcomeFound, Providers: NormalizeProviders(providers)}
}

// NotFound reports that the title is not available in the region.
func NotFound() Outcome {
	return Outcome{Kind: OutcomeNotFound}
}

// RateLimited reports a throttled lookup.
func RateLimited(err error) Outcome {
	return Outcome{Kind: OutcomeRateLimited, Err: err}
}

// TransientError reports a lookup that failed for reasons worth retrying
// later (network errors, timeouts, 5xx responses).
func TransientError(err error) Outcome {
	return Outcome{Kind: OutcomeTransientError, Err: err}
}

// Cacheable reports whether the outcome may be written to the store.
func (o Outcome) Cacheable() bool {
	return o.Kind == OutcomeFound || o.Kind == OutcomeNotFound
}

// providers returns the cacheable provider set; NotFound maps to empty.
func (o Outcome) providers() []string {
	if o.Kind != OutcomeFound {
		return []string{}
	}
	return NormalizeProviders(o.Providers)
}
