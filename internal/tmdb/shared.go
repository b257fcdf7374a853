package tmdb

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// sharedCallTimeout bounds a coalesced request once it no longer follows the
// caller that started it.
const sharedCallTimeout = 30 * time.Second

// sharedCall runs fn once per key for all concurrent callers. fn keeps the
// starting caller's context values but not its cancellation, and each caller
// stops waiting when its own ctx ends.
func sharedCall[T any](ctx context.Context, group *singleflight.Group, key string, fn func(context.Context) (T, error)) (T, error) {
	results := group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return fn(callCtx)
	})
	var zero T
	select {
	case res := <-results:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
