package main

import (
	"github.com/spf13/cobra"
)

const (
	groupAvailability = "availability"
	groupMaintenance  = "maintenance"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCommand() *cobra.Command {
	var configFlag, logLevelFlag string
	ctx := newCommandContext(&configFlag, &logLevelFlag)

	root := &cobra.Command{
		Use:           "watchlist",
		Short:         "Check where an IMDb watchlist is streaming",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configOptional(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	flags.StringVar(&logLevelFlag, "log-level", "", "Override the configured log level")

	root.AddGroup(
		&cobra.Group{ID: groupAvailability, Title: "Availability:"},
		&cobra.Group{ID: groupMaintenance, Title: "Maintenance:"},
	)
	grouped := func(group string, cmds ...*cobra.Command) {
		for _, cmd := range cmds {
			cmd.GroupID = group
			root.AddCommand(cmd)
		}
	}
	grouped(groupAvailability,
		newCheckCommand(ctx),
		newWatchlistCommand(ctx),
	)
	grouped(groupMaintenance,
		newCacheCommand(ctx),
		newStatusCommand(ctx),
		newLogsCommand(ctx),
		newTestNotifyCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}

// configOptional reports whether cmd or an ancestor opted out of loading the
// configuration before running.
func configOptional(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
