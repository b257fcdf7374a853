package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"watchlist/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display the watchlist log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogPath()
			if path == "" {
				return errors.New("file logging is disabled (set paths.log_dir)")
			}

			offset := int64(-1)
			limit := lines
			if limit <= 0 {
				offset = 0
				limit = 0
			}
			printed := false
			runCtx := cmd.Context()

			for {
				result, err := logs.Tail(runCtx, path, logs.TailOptions{
					Offset: offset,
					Limit:  limit,
					Follow: follow,
					Wait:   time.Second,
					Filter: filter,
				})
				if err != nil {
					if follow && runCtx.Err() != nil {
						return nil
					}
					return fmt.Errorf("tail logs: %w", err)
				}
				for _, line := range result.Lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
					printed = true
				}
				offset = result.Offset
				if !follow {
					if !printed {
						fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
					}
					return nil
				}
				select {
				case <-runCtx.Done():
					return nil
				default:
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&filter.Component, "component", "", "Only show lines from this component")
	cmd.Flags().StringVar(&filter.Level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&filter.CorrelationID, "request", "", "Only show lines for this correlation ID")
	cmd.Flags().StringVar(&filter.Search, "search", "", "Only show lines whose message contains this text")
	return cmd
}
