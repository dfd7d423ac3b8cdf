package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ardiex/internal/config"
	"ardiex/internal/engine"
	"ardiex/internal/validator"
)

var (
	backupSourceFlag     string
	backupMaxBytesPerSec int64
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run one backup round for every enabled source (or a single --source)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		v, err := validator.New("")
		if err != nil {
			return err
		}
		res := v.Validate(cfg)
		if len(res.Fatal) > 0 {
			for _, d := range res.Fatal {
				log.Error("config diagnostic", "detail", d)
			}
			return fmt.Errorf("%d fatal configuration diagnostic(s), see above", len(res.Fatal))
		}

		eng := engine.New(store, log)
		if backupMaxBytesPerSec > 0 {
			eng.Limiter = engine.NewRateLimiter(backupMaxBytesPerSec)
		}

		var results []engine.BackupResult
		if backupSourceFlag != "" {
			src, ok := findSourceConfig(cfg, backupSourceFlag)
			if !ok {
				return fmt.Errorf("source not configured: %s", backupSourceFlag)
			}
			results = eng.RunSource(cmd.Context(), cfg, src, res.ForceFull)
		} else {
			results, err = eng.BackupAllSources(cmd.Context(), cfg, res.ForceFull)
			if err != nil {
				return err
			}
		}

		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				log.Error("backup round failed", "source", r.SourceDir, "dest", r.BackupDir, "error", r.Err)
				continue
			}
			fmt.Printf("%s -> %s: %s, %d files, %d bytes, %s\n",
				r.SourceDir, r.BackupDir, r.BackupType, r.FilesCount, r.Bytes, r.Duration)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d destination(s) failed", failed, len(results))
		}
		return nil
	},
}

func findSourceConfig(cfg *config.GlobalConfig, sourceDir string) (config.SourceConfig, bool) {
	for _, s := range cfg.Sources {
		if s.SourceDir == sourceDir {
			return s, true
		}
	}
	return config.SourceConfig{}, false
}

func init() {
	backupCmd.Flags().StringVar(&backupSourceFlag, "source", "", "restrict the round to one source_dir (default: all enabled sources)")
	backupCmd.Flags().Int64Var(&backupMaxBytesPerSec, "max-bytes-per-sec", 0, "throttle round I/O to this many bytes/sec (0 = unlimited)")
	rootCmd.AddCommand(backupCmd)
}
