package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"ardiex/internal/metadata"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize last backup time, type, and history length per source/destination",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Sources) == 0 {
			fmt.Println("no sources configured")
			return nil
		}
		for _, src := range cfg.Sources {
			resolved := cfg.Resolve(src)
			fmt.Printf("%s (enabled=%v)\n", resolved.SourceDir, resolved.Enabled)
			for _, destDir := range resolved.BackupDirs {
				doc, err := metadata.Load(filepath.Join(destDir, metadata.FileName))
				if err != nil {
					fmt.Printf("  -> %s: unreadable: %v\n", destDir, err)
					continue
				}
				if len(doc.BackupHistory) == 0 {
					fmt.Printf("  -> %s: no backups yet\n", destDir)
					continue
				}
				last := doc.BackupHistory[len(doc.BackupHistory)-1]
				fmt.Printf("  -> %s: last=%s (%s) at %s, %d round(s) in history\n",
					destDir, last.BackupName, last.BackupType,
					last.CreatedAt.Format("2006-01-02T15:04:05"), len(doc.BackupHistory))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
