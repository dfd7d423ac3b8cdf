package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ardiex/internal/restore"
)

var (
	restorePoint string
	restoreClean bool
	restoreList  bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup_dir> [target_dir] [--list | --point <timestamp>]",
	Short: "Materialize a destination's backup chain into target_dir, or --list its snapshots",
	Args: func(cmd *cobra.Command, args []string) error {
		if restoreList {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		destDir := args[0]

		if restoreList {
			entries, err := restore.ListBackups(destDir)
			if err != nil {
				return err
			}
			for _, e := range entries {
				kind := "incremental"
				if e.IsFull {
					kind = "full"
				}
				fmt.Printf("%s  %s  %s\n", e.Name, kind, e.Timestamp)
			}
			return nil
		}

		target := args[1]
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mode := cfg.BackupMode

		r := restore.New(log)
		opts := restore.Options{Point: restorePoint, Clean: restoreClean}
		if err := r.RestoreToPoint(destDir, target, mode, opts); err != nil {
			return err
		}
		fmt.Printf("restored %s -> %s\n", destDir, target)
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restorePoint, "point", "", "restore up to and including this snapshot timestamp, the <ts> part of full_<ts>/inc_<ts> (default: the latest)")
	restoreCmd.Flags().BoolVar(&restoreClean, "clean", false, "remove target_dir's contents before replaying the chain")
	restoreCmd.Flags().BoolVar(&restoreList, "list", false, "list the snapshots recorded for backup_dir instead of restoring")
	rootCmd.AddCommand(restoreCmd)
}
