package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"watchlist/internal/availability"
	"watchlist/internal/config"
	"watchlist/internal/logging"
	"watchlist/internal/notifications"
	"watchlist/internal/region"
	"watchlist/internal/tmdb"
	"watchlist/internal/watchlist"
)

const (
	modeAuto    = "auto"
	modeRefresh = "refresh"
	modeCached  = "cached"
)

type checkOptions struct {
	name          string
	regions       []string
	mode          string
	ttl           time.Duration
	concurrency   int
	sortBy        string
	match         string
	availableOnly bool
	jsonOutput    bool
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	opts := checkOptions{}

	cmd := &cobra.Command{
		Use:   "check <watchlist.csv|name>",
		Short: "Show which streaming services carry each title",
		Long: `Resolve streaming availability for every title in a watchlist.

The argument is either an IMDb CSV export, which is imported into the library
first, or the name of a watchlist that was imported earlier.

Modes:
  auto     serve cached providers younger than the TTL, fetch the rest
  refresh  fetch every title again
  cached   serve only what the cache holds and never contact TMDB`,
		Args: cobra.ExactArgs(1),
		RunE: ctx.withResources(func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, ctx, args[0], opts)
		}),
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Library name for an imported CSV (defaults to the file name)")
	cmd.Flags().StringSliceVarP(&opts.regions, "region", "r", nil, "Region to check (repeatable, defaults to the configured regions)")
	cmd.Flags().StringVar(&opts.mode, "mode", modeAuto, "Refresh mode: auto, refresh, or cached")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "Freshness window (defaults to availability.ttl_hours)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Maximum concurrent TMDB lookups")
	cmd.Flags().StringVar(&opts.sortBy, "sort", sortPosition, "Sort order: position, title, or year")
	cmd.Flags().StringVar(&opts.match, "match", "", "Only check titles matching this search (title, director, or genre)")
	cmd.Flags().BoolVar(&opts.availableOnly, "available", false, "Only show titles streaming in at least one region")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runCheck(cmd *cobra.Command, ctx *commandContext, target string, opts checkOptions) error {
	mode := strings.ToLower(strings.TrimSpace(opts.mode))
	switch mode {
	case modeAuto, modeRefresh, modeCached:
	default:
		return fmt.Errorf("unknown mode %q (expected auto, refresh, or cached)", opts.mode)
	}
	if err := validateSort(opts.sortBy); err != nil {
		return err
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	codes, err := selectRegions(cfg, opts.regions)
	if err != nil {
		return err
	}
	if mode != modeCached {
		if err := cfg.RequireTMDBKey(); err != nil {
			return err
		}
		if err := ctx.acquireWriteLock(); err != nil {
			return err
		}
	}

	lib, err := ctx.library()
	if err != nil {
		return err
	}
	name, err := resolveWatchlist(lib, target, opts.name)
	if err != nil {
		return err
	}
	titles, err := lib.Titles(name)
	if err != nil {
		return err
	}
	if query := strings.TrimSpace(opts.match); query != "" {
		titles = matchTitles(titles, query)
	}

	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	base := logging.WithWatchlist(ctx.baseContext(cmd.Context()), name)
	if err := ctx.startTelemetry(base); err != nil {
		logging.WarnWithContext(logger, "telemetry disabled",
			"telemetry_setup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check telemetry.endpoint"),
			logging.String(logging.FieldImpact, "traces are not exported for this run"))
	}

	var (
		store      availability.Store
		titleCache tmdb.TitleCache
	)
	opened, err := ctx.ensureStore()
	switch {
	case err == nil:
		store, titleCache = opened, opened
	case mode == modeCached:
		return err
	default:
		logging.WarnWithContext(logger, "availability cache unavailable; checking TMDB only",
			"availability_store_open_failed",
			logging.Error(err),
			logging.String("path", cfg.CachePath()),
			logging.String(logging.FieldErrorHint, "repair or delete the cache database"),
			logging.String(logging.FieldImpact, "results are not cached for this run"))
		store = availability.UnavailableStore{Err: err}
	}
	fetcher, err := newFetcher(cfg, mode, titleCache, titles, logger)
	if err != nil {
		return err
	}
	manager, err := availability.NewManager(store, fetcher, availability.WithLogger(logger))
	if err != nil {
		return err
	}

	keys := buildKeys(titles, codes)
	resolveOpts := availability.Options{
		TTL:                  cfg.TTL(),
		MaxConcurrentFetches: cfg.Availability.MaxConcurrentFetches,
		FetchTimeout:         cfg.FetchTimeout(),
	}
	if opts.ttl > 0 {
		resolveOpts.TTL = opts.ttl
	}
	if opts.concurrency > 0 {
		resolveOpts.MaxConcurrentFetches = opts.concurrency
	}
	switch mode {
	case modeRefresh:
		resolveOpts.ForceRefresh = availability.NewKeySet(keys...)
	case modeCached:
		resolveOpts.OfflineOnly = true
	}

	result, err := manager.Resolve(base, keys, resolveOpts)
	if err != nil {
		return fmt.Errorf("resolve availability: %w", err)
	}
	if notifier := notifications.NewService(cfg); notifier.Enabled() && mode != modeCached {
		publishCheckEvents(base, logger, notifier, name, result, titles)
	}

	if mode != modeCached {
		if refreshed := completedRegions(result, codes); len(refreshed) > 0 {
			if err := lib.MarkRefreshed(name, refreshed, time.Now()); err != nil {
				logging.WarnWithContext(logger, "failed to record refresh date",
					"watchlist_metadata_write_failed",
					logging.String("watchlist", name),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the uploads directory is writable"),
					logging.String(logging.FieldImpact, "last refreshed dates are out of date"))
			}
		}
	}

	report := buildReport(name, mode, codes, titles, result)
	report.sortTitles(opts.sortBy)
	if opts.availableOnly {
		report.filterAvailable()
	}

	if opts.jsonOutput {
		return writeJSON(cmd, report)
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, renderReport(report, shouldColorize(out)))
	fmt.Fprintln(out, summarizeManifest(report.Manifest))
	return nil
}

func selectRegions(cfg *config.Config, flags []string) ([]region.Code, error) {
	values := flags
	if len(values) == 0 {
		values = cfg.Availability.DefaultRegions
	}
	codes, err := region.ParseAll(values)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, errors.New("at least one region is required")
	}
	return codes, nil
}

// resolveWatchlist imports target when it is a file and otherwise treats it as
// a library name.
func resolveWatchlist(lib *watchlist.Library, target, name string) (string, error) {
	path, err := config.ExpandPath(strings.TrimSpace(target))
	if err != nil {
		return "", err
	}
	if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
		if strings.TrimSpace(name) == "" {
			name = path
		}
		return importWatchlist(lib, name, path)
	}
	entry, err := lib.Get(target)
	if err != nil {
		if errors.Is(err, watchlist.ErrNotFound) {
			return "", fmt.Errorf("%q is neither a file nor a stored watchlist", target)
		}
		return "", err
	}
	return entry.Name, nil
}

func importWatchlist(lib *watchlist.Library, name, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open watchlist: %w", err)
	}
	defer file.Close()
	entry, err := lib.Import(name, file)
	if err != nil {
		return "", err
	}
	return entry.Name, nil
}

func newFetcher(cfg *config.Config, mode string, cache tmdb.TitleCache, titles []watchlist.Title, logger *slog.Logger) (availability.Fetcher, error) {
	if mode == modeCached {
		return availability.FetcherFunc(func(context.Context, string, region.Code) availability.Outcome {
			return availability.TransientError(errors.New("remote lookups disabled in cached mode"))
		}), nil
	}

	client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		tmdb.WithTimeout(cfg.TMDBRequestTimeout()))
	if err != nil {
		return nil, err
	}
	resolver, err := tmdb.NewResolver(client, cache, tmdb.WithResolverLogger(logger))
	if err != nil {
		return nil, err
	}
	hints := make(map[string]string, len(titles))
	for _, title := range titles {
		hints[title.IMDbID] = title.MediaType()
	}
	fetcher, err := tmdb.NewFetcher(client, resolver,
		tmdb.WithFetcherLogger(logger),
		tmdb.WithMediaHints(func(titleID string) string { return hints[titleID] }))
	if err != nil {
		return nil, err
	}
	return fetcher, nil
}

// matchTitles keeps the titles matching query in watchlist order.
func matchTitles(titles []watchlist.Title, query string) []watchlist.Title {
	keep := make(map[string]struct{})
	for _, match := range watchlist.Search(titles, query, watchlist.DefaultMatchScore) {
		keep[match.Title.IMDbID] = struct{}{}
	}
	out := make([]watchlist.Title, 0, len(keep))
	for _, title := range titles {
		if _, ok := keep[title.IMDbID]; ok {
			out = append(out, title)
		}
	}
	return out
}

func buildKeys(titles []watchlist.Title, codes []region.Code) []availability.Key {
	keys := make([]availability.Key, 0, len(titles)*len(codes))
	for _, title := range titles {
		for _, code := range codes {
			keys = append(keys, availability.NewKey(title.IMDbID, code))
		}
	}
	return keys
}

// completedRegions lists the regions whose every key resolved without a
// fetch failure.
func completedRegions(result *availability.BatchResult, codes []region.Code) []region.Code {
	failed := make(map[region.Code]bool, len(codes))
	for _, entry := range result.Entries {
		if entry.Status == availability.StatusFetchFailed {
			failed[entry.Key.Region] = true
		}
	}
	out := make([]region.Code, 0, len(codes))
	for _, code := range codes {
		if !failed[code] {
			out = append(out, code)
		}
	}
	return out
}
