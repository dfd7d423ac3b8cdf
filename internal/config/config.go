// Package config holds Ardiex's settings model: the global defaults, the
// per-source overrides, and the resolution rules between them.
package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// BackupMode selects whole-file copies or block-level deltas for incremental
// snapshots.
type BackupMode string

const (
	ModeDelta BackupMode = "delta"
	ModeCopy  BackupMode = "copy"
)

// GlobalConfig is the top-level settings.json document.
type GlobalConfig struct {
	Sources                 []SourceConfig         `json:"sources"`
	EnablePeriodic           bool                   `json:"enable_periodic"`
	EnableEventDriven        bool                   `json:"enable_event_driven"`
	ExcludePatterns          []string               `json:"exclude_patterns"`
	MaxBackups               int                    `json:"max_backups"`
	MaxLogFileSizeMB         int                    `json:"max_log_file_size_mb"`
	BackupMode               BackupMode             `json:"backup_mode"`
	CronSchedule             string                 `json:"cron_schedule"`
	EnableMinIntervalBySize  bool                   `json:"enable_min_interval_by_size"`
	Metadata                 map[string]SourceState `json:"metadata"`
}

// SourceState is a slot for the resolved-at-runtime bookkeeping that the
// settings file reserves per source path (spec.md §3, "metadata{} keyed by
// absolute source path"). It is intentionally shallow: durable backup
// history lives in the metadata package, not here.
type SourceState struct {
	LastKnownGood time.Time `json:"last_known_good,omitempty"`
}

// SourceConfig is one entry of GlobalConfig.Sources. Any pointer-typed
// override left nil falls back to the corresponding GlobalConfig value.
type SourceConfig struct {
	SourceDir         string      `json:"source_dir"`
	BackupDirs        []string    `json:"backup_dirs"`
	Enabled           bool        `json:"enabled"`
	ExcludePatterns   []string    `json:"exclude_patterns,omitempty"`
	MaxBackups        *int        `json:"max_backups,omitempty"`
	BackupMode        *BackupMode `json:"backup_mode,omitempty"`
	CronSchedule      *string     `json:"cron_schedule,omitempty"`
	EnableEventDriven *bool       `json:"enable_event_driven,omitempty"`
	EnablePeriodic    *bool       `json:"enable_periodic,omitempty"`
}

// Resolved is the fully-resolved effective configuration for one source,
// after applying GlobalConfig fallbacks.
type Resolved struct {
	SourceDir         string
	BackupDirs        []string
	Enabled           bool
	ExcludePatterns   []string
	MaxBackups        int
	BackupMode        BackupMode
	CronSchedule      string
	EnableEventDriven bool
	EnablePeriodic    bool
}

// FullBackupInterval is the derived, never-serialized value described in
// spec.md §3: the number of incrementals the engine lets accumulate after a
// full before forcing the next one to be full again.
func (r Resolved) FullBackupInterval() int {
	if r.MaxBackups-1 < 1 {
		return 1
	}
	return r.MaxBackups - 1
}

// Resolve computes the effective configuration for one source, applying the
// fallback rule in spec.md §3: any source-level option left unset falls
// back to the global value.
func (g *GlobalConfig) Resolve(src SourceConfig) Resolved {
	r := Resolved{
		SourceDir:         src.SourceDir,
		BackupDirs:        src.BackupDirs,
		Enabled:           src.Enabled,
		MaxBackups:        g.MaxBackups,
		BackupMode:        g.BackupMode,
		CronSchedule:      g.CronSchedule,
		EnableEventDriven: g.EnableEventDriven,
		EnablePeriodic:    g.EnablePeriodic,
	}

	if len(src.ExcludePatterns) > 0 {
		r.ExcludePatterns = src.ExcludePatterns
	} else {
		r.ExcludePatterns = g.ExcludePatterns
	}
	if src.MaxBackups != nil {
		r.MaxBackups = *src.MaxBackups
	}
	if src.BackupMode != nil {
		r.BackupMode = *src.BackupMode
	}
	if src.CronSchedule != nil {
		r.CronSchedule = *src.CronSchedule
	}
	if src.EnableEventDriven != nil {
		r.EnableEventDriven = *src.EnableEventDriven
	}
	if src.EnablePeriodic != nil {
		r.EnablePeriodic = *src.EnablePeriodic
	}

	if len(r.BackupDirs) == 0 {
		r.BackupDirs = []string{filepath.Join(src.SourceDir, ".backup")}
	}
	return r
}

// Default returns the built-in defaults used to seed a fresh settings.json
// on first run.
func Default() *GlobalConfig {
	return &GlobalConfig{
		Sources:                 nil,
		EnablePeriodic:          true,
		EnableEventDriven:       false,
		ExcludePatterns:         []string{".git/**", "*.tmp"},
		MaxBackups:              10,
		MaxLogFileSizeMB:        10,
		BackupMode:              ModeDelta,
		CronSchedule:            "0 0 * * * *",
		EnableMinIntervalBySize: true,
		Metadata:                map[string]SourceState{},
	}
}

// Validate performs the cheap, always-fatal shape checks from spec.md §4.5
// that don't require touching the filesystem (path existence / type is
// validator.Validate's job, since it needs os.Stat).
func (g *GlobalConfig) Validate() error {
	if g.MaxBackups <= 0 {
		return fmt.Errorf("max_backups must be > 0, got %d", g.MaxBackups)
	}
	if g.MaxLogFileSizeMB <= 0 {
		return fmt.Errorf("max_log_file_size_mb must be > 0, got %d", g.MaxLogFileSizeMB)
	}
	if g.BackupMode != ModeDelta && g.BackupMode != ModeCopy {
		return fmt.Errorf("backup_mode must be %q or %q, got %q", ModeDelta, ModeCopy, g.BackupMode)
	}

	seenSources := map[string]bool{}
	for _, s := range g.Sources {
		if !filepath.IsAbs(s.SourceDir) {
			return fmt.Errorf("source_dir must be absolute: %s", s.SourceDir)
		}
		if seenSources[s.SourceDir] {
			return fmt.Errorf("duplicate source_dir: %s", s.SourceDir)
		}
		seenSources[s.SourceDir] = true

		for _, b := range s.BackupDirs {
			if !filepath.IsAbs(b) {
				return fmt.Errorf("backup_dir must be absolute: %s", b)
			}
		}
		if s.MaxBackups != nil && *s.MaxBackups <= 0 {
			return fmt.Errorf("source %s: max_backups must be > 0", s.SourceDir)
		}
		if s.BackupMode != nil && *s.BackupMode != ModeDelta && *s.BackupMode != ModeCopy {
			return fmt.Errorf("source %s: backup_mode must be %q or %q", s.SourceDir, ModeDelta, ModeCopy)
		}
	}

	// Cross-source checks (spec.md §3: "no source path equals any backup
	// path", applied across the whole configuration, not just within one
	// source's own entry).
	seenBackups := map[string]string{} // backup_dir -> owning source_dir
	for _, s := range g.Sources {
		for _, b := range s.BackupDirs {
			if owner, dup := seenBackups[b]; dup {
				return fmt.Errorf("backup_dir %s is used by both source %s and source %s", b, owner, s.SourceDir)
			}
			seenBackups[b] = s.SourceDir
		}
	}
	for _, s := range g.Sources {
		for _, b := range s.BackupDirs {
			if seenSources[b] {
				return fmt.Errorf("backup_dir %s equals another source's source_dir", b)
			}
		}
	}
	return nil
}
