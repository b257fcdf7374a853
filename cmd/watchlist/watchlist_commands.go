package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"watchlist/internal/logging"
	"watchlist/internal/watchlist"
)

func newWatchlistCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watchlist",
		Aliases: []string{"lists"},
		Short:   "Manage stored watchlists",
	}
	cmd.AddCommand(newWatchlistListCommand(ctx))
	cmd.AddCommand(newWatchlistImportCommand(ctx))
	cmd.AddCommand(newWatchlistRemoveCommand(ctx))
	return cmd
}

type watchlistView struct {
	Name          string            `json:"name"`
	Titles        int               `json:"titles"`
	ImportedAt    string            `json:"imported_at,omitempty"`
	LastRefreshed map[string]string `json:"last_refreshed"`
	Path          string            `json:"path"`
}

func newWatchlistListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored watchlists",
		RunE: ctx.withResources(func(cmd *cobra.Command, args []string) error {
			lib, err := ctx.library()
			if err != nil {
				return err
			}
			entries, err := lib.List()
			if err != nil {
				return err
			}
			views := make([]watchlistView, 0, len(entries))
			for _, entry := range entries {
				view := watchlistView{
					Name:          entry.Name,
					Titles:        entry.Meta.TitleCount,
					LastRefreshed: entry.Meta.LastRefreshed,
					Path:          entry.Path,
				}
				if !entry.Meta.ImportedAt.IsZero() {
					view.ImportedAt = entry.Meta.ImportedAt.UTC().Format("2006-01-02 15:04")
				}
				if view.LastRefreshed == nil {
					view.LastRefreshed = map[string]string{}
				}
				views = append(views, view)
			}

			if jsonOutput {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No watchlists stored. Import one with `watchlist watchlist import <file.csv>`.")
				return nil
			}
			rows := make([][]string, 0, len(views))
			for _, view := range views {
				rows = append(rows, []string{view.Name, strconv.Itoa(view.Titles), view.ImportedAt, formatRefreshed(view.LastRefreshed)})
			}
			fmt.Fprintln(out, renderTable([]column{
				textColumn("Name"),
				numberColumn("Titles"),
				textColumn("Imported"),
				textColumn("Last Refreshed"),
			}, rows))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func formatRefreshed(dates map[string]string) string {
	if len(dates) == 0 {
		return "never"
	}
	codes := make([]string, 0, len(dates))
	for code := range dates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		parts = append(parts, code+" "+dates[code])
	}
	return strings.Join(parts, ", ")
}

func newWatchlistImportCommand(ctx *commandContext) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import an IMDb watchlist export",
		Args:  cobra.ExactArgs(1),
		RunE: ctx.withResources(func(cmd *cobra.Command, args []string) error {
			lib, err := ctx.library()
			if err != nil {
				return err
			}
			if strings.TrimSpace(name) == "" {
				name = args[0]
			}
			imported, err := importWatchlist(lib, name, args[0])
			if err != nil {
				return err
			}
			entry, err := lib.Get(imported)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %q with %d titles\n", entry.Name, entry.Meta.TitleCount)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "Library name (defaults to the file name)")
	return cmd
}

func newWatchlistRemoveCommand(ctx *commandContext) *cobra.Command {
	var keepCache bool
	var all bool
	cmd := &cobra.Command{
		Use:   "remove <name> | --all",
		Short: "Remove stored watchlists and their cached providers",
		Long: `Remove a stored watchlist.

Cached providers for titles that no other stored watchlist references are
evicted as well unless --keep-cache is given. With --all every watchlist is
removed and the whole cache is cleared.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: ctx.withResources(func(cmd *cobra.Command, args []string) error {
			if all {
				return removeAllWatchlists(cmd, ctx, keepCache)
			}
			return removeWatchlist(cmd, ctx, args[0], keepCache)
		}),
	}
	cmd.Flags().BoolVar(&keepCache, "keep-cache", false, "Keep cached providers for the removed titles")
	cmd.Flags().BoolVar(&all, "all", false, "Remove every stored watchlist and clear the cache")
	return cmd
}

func removeWatchlist(cmd *cobra.Command, ctx *commandContext, rawName string, keepCache bool) error {
	lib, err := ctx.library()
	if err != nil {
		return err
	}
	name, err := watchlist.NormalizeName(rawName)
	if err != nil {
		return err
	}

	var exclusive []string
	if !keepCache {
		if exclusive, err = lib.ExclusiveTitles(name); err != nil {
			return err
		}
	}
	if err := lib.Remove(name); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Removed watchlist %q\n", name)
	if len(exclusive) == 0 {
		return nil
	}

	if err := ctx.acquireWriteLock(); err != nil {
		return err
	}
	store, err := ctx.ensureStore()
	if err != nil {
		return err
	}
	removed, err := store.DeleteTitles(ctx.baseContext(cmd.Context()), exclusive)
	if err != nil {
		return fmt.Errorf("evict cached providers: %w", err)
	}
	if logger, logErr := ctx.ensureLogger(); logErr == nil {
		logger.Info("evicted cached providers",
			logging.String("watchlist", name),
			logging.Int("titles", len(exclusive)),
			logging.Int64("rows", removed))
	}
	fmt.Fprintf(out, "Evicted %d cached rows for %d titles\n", removed, len(exclusive))
	return nil
}

func removeAllWatchlists(cmd *cobra.Command, ctx *commandContext, keepCache bool) error {
	lib, err := ctx.library()
	if err != nil {
		return err
	}
	entries, err := lib.List()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := lib.Remove(entry.Name); err != nil {
			return err
		}
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Removed %d watchlists\n", len(entries))
	if keepCache {
		return nil
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
		return fmt.Errorf("clear cache: %w", err)
	}
	fmt.Fprintf(out, "Cleared %d cached rows\n", removed)
	return nil
}
