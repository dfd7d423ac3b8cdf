// Package cmd implements Ardiex's CLI surface (spec.md §6): config
// management, one-shot backup/restore, and the long-lived run mode.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ardiex/internal/config"
	"ardiex/internal/logger"
	"ardiex/internal/metadata"
)

var (
	settingsPath string
	debug        bool

	log   logger.Logger
	store *metadata.Store
)

var rootCmd = &cobra.Command{
	Use:   "ardiex",
	Short: "Incremental file backup engine",
	Long: `Ardiex replicates source directories to backup destinations on a
cron schedule or in reaction to filesystem events, producing full or
incremental (whole-file or block-delta) snapshots, and restores a source
tree to any recorded point in time.`,
}

// Execute wires the persistent flags and runs the command tree under ctx.
func Execute(ctx context.Context, buildVersion string) error {
	rootCmd.Version = buildVersion
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", config.DefaultFileName, "path to settings.json")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := "info"
		if debug {
			level = "debug"
		}
		log = logger.New(level, "text")
		store = metadata.NewStore()
		return nil
	}

	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (*config.GlobalConfig, error) {
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", settingsPath, err)
	}
	return cfg, nil
}
