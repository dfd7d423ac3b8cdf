package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ardiex/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit settings.json",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create settings.json with defaults if it doesn't already exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return config.Save(settingsPath, cfg)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the effective settings.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := config.PrettyPrint(cfg)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var configAddSourceCmd = &cobra.Command{
	Use:   "add-source <source_dir>",
	Short: "Add a new source directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.AddSource(args[0]); err != nil {
			return err
		}
		return config.Save(settingsPath, cfg)
	},
}

var configRemoveSourceCmd = &cobra.Command{
	Use:   "remove-source <source_dir>",
	Short: "Remove a source directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.RemoveSource(args[0]); err != nil {
			return err
		}
		return config.Save(settingsPath, cfg)
	},
}

var configAddBackupCmd = &cobra.Command{
	Use:   "add-backup <source_dir> <backup_dir>",
	Short: "Add a destination to a source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.AddBackupDir(args[0], args[1]); err != nil {
			return err
		}
		return config.Save(settingsPath, cfg)
	},
}

var configRemoveBackupCmd = &cobra.Command{
	Use:   "remove-backup <source_dir> <backup_dir>",
	Short: "Remove a destination from a source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.RemoveBackupDir(args[0], args[1]); err != nil {
			return err
		}
		return config.Save(settingsPath, cfg)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a global setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.SetGlobal(args[0], args[1]); err != nil {
			return err
		}
		return config.Save(settingsPath, cfg)
	},
}

var configSetSourceCmd = &cobra.Command{
	Use:   "set-source <source_dir> <key> <value|reset>",
	Short: "Set a per-source override (or 'reset' to clear it)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.SetSource(args[0], args[1], args[2]); err != nil {
			return err
		}
		return config.Save(settingsPath, cfg)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configListCmd, configAddSourceCmd, configRemoveSourceCmd,
		configAddBackupCmd, configRemoveBackupCmd, configSetCmd, configSetSourceCmd)
	rootCmd.AddCommand(configCmd)
}
