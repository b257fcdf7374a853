package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"watchlist/internal/config"
	"watchlist/internal/preflight"
	"watchlist/internal/watchlist"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, cache, and TMDB readiness",
		RunE: ctx.withResources(func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			writeSection(out, "Configuration", colorize, configLines(cfg, colorize))

			results := preflight.RunAll(ctx.baseContext(cmd.Context()), cfg)
			lines := make([]string, 0, len(results))
			failed := 0
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failed++
				}
				lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			writeSection(out, "Readiness", colorize, lines)

			lib, err := ctx.library()
			if err != nil {
				return err
			}
			writeSection(out, "Watchlists", colorize, watchlistLines(lib, colorize))

			if failed > 0 {
				fmt.Fprintf(out, "%d check(s) failed\n", failed)
			}
			return nil
		}),
	}
}

func writeSection(out io.Writer, title string, colorize bool, lines []string) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)
}

func configLines(cfg *config.Config, colorize bool) []string {
	telemetry := "Disabled"
	if cfg.Telemetry.Enabled {
		telemetry = "Exporting to " + cfg.Telemetry.Endpoint
	}
	notify := "Disabled"
	if cfg.Notifications.NtfyTopic != "" {
		notify = "ntfy " + cfg.Notifications.NtfyTopic
	}
	logFile := "Disabled"
	if path := cfg.LogPath(); path != "" {
		logFile = path
	}
	return []string{
		renderStatusLine("Regions", statusInfo, strings.Join(cfg.Availability.DefaultRegions, ", "), colorize),
		renderStatusLine("Freshness", statusInfo, cfg.TTL().String(), colorize),
		renderStatusLine("Concurrency", statusInfo, fmt.Sprintf("%d fetches, %s timeout", cfg.Availability.MaxConcurrentFetches, cfg.FetchTimeout()), colorize),
		renderStatusLine("Notifications", statusInfo, notify, colorize),
		renderStatusLine("Log file", statusInfo, logFile, colorize),
		renderStatusLine("Telemetry", statusInfo, telemetry, colorize),
	}
}

func watchlistLines(lib *watchlist.Library, colorize bool) []string {
	entries, err := lib.List()
	if err != nil {
		return []string{renderStatusLine("Library", statusError, err.Error(), colorize)}
	}
	if len(entries) == 0 {
		return []string{renderStatusLine("Library", statusInfo, "No watchlists stored", colorize)}
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		kind := statusOK
		if len(entry.Meta.LastRefreshed) == 0 {
			kind = statusWarn
		}
		detail := fmt.Sprintf("%d titles, refreshed %s", entry.Meta.TitleCount, formatRefreshed(entry.Meta.LastRefreshed))
		lines = append(lines, renderStatusLine(entry.Name, kind, detail, colorize))
	}
	return lines
}
