package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"watchlist/internal/availability"
	"watchlist/internal/providerstore"
	"watchlist/internal/region"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the provider cache",
	}
	cmd.AddCommand(newCacheStatsCommand(ctx))
	cmd.AddCommand(newCacheListCommand(ctx))
	cmd.AddCommand(newCacheRemoveCommand(ctx))
	cmd.AddCommand(newCacheClearCommand(ctx))
	return cmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize cached providers",
		RunE: ctx.withResources(func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			stats, err := store.Stats(ctx.baseContext(cmd.Context()), time.Now(), cfg.TTL())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, stats)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache:       %s\n", store.Path())
			fmt.Fprintf(out, "Records:     %d (%d fresh, %d stale, TTL %s)\n", stats.Records, stats.Fresh, stats.Stale, cfg.TTL())
			fmt.Fprintf(out, "Streaming:   %d\n", stats.Available)
			fmt.Fprintf(out, "Titles:      %d resolved, %d without a TMDB match\n", stats.Resolved, stats.Unresolved)
			if !stats.OldestFetch.IsZero() {
				fmt.Fprintf(out, "Oldest:      %s\n", stats.OldestFetch.Local().Format(time.DateTime))
				fmt.Fprintf(out, "Newest:      %s\n", stats.NewestFetch.Local().Format(time.DateTime))
			}
			if len(stats.ByRegion) > 0 {
				codes := make([]string, 0, len(stats.ByRegion))
				for code := range stats.ByRegion {
					codes = append(codes, string(code))
				}
				sort.Strings(codes)
				parts := make([]string, 0, len(codes))
				for _, code := range codes {
					parts = append(parts, fmt.Sprintf("%s %d", code, stats.ByRegion[region.Code(code)]))
				}
				fmt.Fprintf(out, "By region:   %s\n", strings.Join(parts, ", "))
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type cacheRecordView struct {
	TitleID   string              `json:"title_id"`
	Region    region.Code         `json:"region"`
	Providers []string            `json:"providers"`
	FetchedAt time.Time           `json:"fetched_at"`
	Status    availability.Status `json:"status"`
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var (
		titles     []string
		regionFlag string
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached provider records",
		RunE: ctx.withResources(func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter := providerstore.ListFilter{TitleIDs: titles, Limit: limit}
			if strings.TrimSpace(regionFlag) != "" {
				code, err := region.Parse(regionFlag)
				if err != nil {
					return err
				}
				filter.Region = code
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			records, err := store.List(ctx.baseContext(cmd.Context()), filter)
			if err != nil {
				return err
			}

			now := time.Now()
			views := make([]cacheRecordView, 0, len(records))
			for _, record := range records {
				views = append(views, cacheRecordView{
					TitleID:   record.Key.TitleID,
					Region:    record.Key.Region,
					Providers: record.Providers,
					FetchedAt: record.FetchedAt,
					Status:    record.StatusAt(now, cfg.TTL()),
				})
			}
			if jsonOutput {
				return writeJSON(cmd, views)
			}

			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}
			rows := make([][]string, 0, len(views))
			for _, view := range views {
				providers := markUnavailable
				if len(view.Providers) > 0 {
					providers = strings.Join(view.Providers, ", ")
				}
				rows = append(rows, []string{
					view.TitleID,
					string(view.Region),
					providers,
					view.FetchedAt.Local().Format(time.DateTime),
					string(view.Status),
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				textColumn("Title"),
				textColumn("Region"),
				textColumn("Providers"),
				textColumn("Fetched"),
				textColumn("Status"),
			}, rows))
			fmt.Fprintf(out, "%d records\n", len(views))
			return nil
		}),
	}
	cmd.Flags().StringSliceVarP(&titles, "title", "t", nil, "Only show these IMDb ids")
	cmd.Flags().StringVarP(&regionFlag, "region", "r", "", "Only show this region")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum records to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <imdb_id>...",
		Short: "Evict cached providers for titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: ctx.withResources(func(cmd *cobra.Command, args []string) error {
			ids := make([]string, 0, len(args))
			for _, arg := range args {
				if id := strings.TrimSpace(arg); id != "" {
					ids = append(ids, id)
				}
			}
			if len(ids) == 0 {
				return errors.New("at least one IMDb id is required")
			}
			if err := ctx.acquireWriteLock(); err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			removed, err := store.DeleteTitles(ctx.baseContext(cmd.Context()), ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached rows\n", removed)
			return nil
		}),
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached record",
		RunE: ctx.withResources(func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to clear the cache without --yes")
			}
			if err := ctx.acquireWriteLock(); err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			removed, err := store.Clear(ctx.baseContext(cmd.Context()))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached rows\n", removed)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm clearing the cache")
	return cmd
}
