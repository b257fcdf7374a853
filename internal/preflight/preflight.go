package preflight

import (
	"context"

	"golang.org/x/sync/errgroup"

	"watchlist/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

func pass(name, detail string) Result { return Result{Name: name, Passed: true, Detail: detail} }

func fail(name, detail string) Result { return Result{Name: name, Detail: detail} }

type check func(context.Context) Result

// RunAll runs every check that applies to cfg concurrently and returns the
// results in a fixed order: directories, cache, TMDB, then notifications.
// Without an API key the TMDB entry is a failure that makes no request.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	checks := []check{
		directory("Data directory", cfg.Paths.DataDir),
		directory("Uploads directory", cfg.Paths.UploadsDir),
	}
	if cfg.Paths.LogDir != "" {
		checks = append(checks, directory("Log directory", cfg.Paths.LogDir))
	}
	checks = append(checks, func(ctx context.Context) Result { return CheckCache(ctx, cfg.CachePath()) })
	if cfg.TMDB.APIKey == "" {
		checks = append(checks, func(context.Context) Result {
			return fail(tmdbCheckName, "API key missing (set TMDB_API_KEY)")
		})
	} else {
		checks = append(checks, func(ctx context.Context) Result {
			return CheckTMDB(ctx, cfg.TMDB.BaseURL, cfg.TMDB.APIKey)
		})
	}
	if topic := cfg.Notifications.NtfyTopic; topic != "" {
		checks = append(checks, func(ctx context.Context) Result { return CheckNtfy(ctx, topic) })
	}

	results := make([]Result, len(checks))
	var group errgroup.Group
	for i, run := range checks {
		group.Go(func() error {
			results[i] = run(ctx)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func directory(name, path string) check {
	return func(context.Context) Result { return CheckDirectoryAccess(name, path) }
}
