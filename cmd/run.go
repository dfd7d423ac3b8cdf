package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"ardiex/internal/engine"
	"ardiex/internal/supervisor"
	"ardiex/internal/validator"
)

var (
	auditLogPath      string
	runMaxBytesPerSec int64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run continuously: cron/fsnotify triggers, hot-reloaded settings, until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditLogPath == "" {
			auditLogPath = filepath.Join(filepath.Dir(settingsPath), "audit.log")
		}
		v, err := validator.New(auditLogPath)
		if err != nil {
			return err
		}
		eng := engine.New(store, log)
		if runMaxBytesPerSec > 0 {
			eng.Limiter = engine.NewRateLimiter(runMaxBytesPerSec)
		}
		sup := supervisor.New(settingsPath, eng, v, log)
		return sup.Run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVar(&auditLogPath, "audit-log", "", "path to the JSON-lines audit log (default: audit.log next to settings)")
	runCmd.Flags().Int64Var(&runMaxBytesPerSec, "max-bytes-per-sec", 0, "throttle round I/O to this many bytes/sec (0 = unlimited)")
	rootCmd.AddCommand(runCmd)
}
