package config

import (
	"fmt"
	"strconv"
)

// AddSource appends a new, enabled source with no overrides. Returns an
// error if the path is already configured.
func (g *GlobalConfig) AddSource(absPath string) error {
	for _, s := range g.Sources {
		if s.SourceDir == absPath {
			return fmt.Errorf("source already configured: %s", absPath)
		}
	}
	g.Sources = append(g.Sources, SourceConfig{SourceDir: absPath, Enabled: true})
	return nil
}

// RemoveSource deletes the source with the given path. Returns an error if
// it isn't configured.
func (g *GlobalConfig) RemoveSource(absPath string) error {
	for i, s := range g.Sources {
		if s.SourceDir == absPath {
			g.Sources = append(g.Sources[:i], g.Sources[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("source not configured: %s", absPath)
}

func (g *GlobalConfig) findSource(absPath string) (*SourceConfig, error) {
	for i := range g.Sources {
		if g.Sources[i].SourceDir == absPath {
			return &g.Sources[i], nil
		}
	}
	return nil, fmt.Errorf("source not configured: %s", absPath)
}

// AddBackupDir appends a destination to the named source.
func (g *GlobalConfig) AddBackupDir(sourceDir, backupDir string) error {
	src, err := g.findSource(sourceDir)
	if err != nil {
		return err
	}
	for _, b := range src.BackupDirs {
		if b == backupDir {
			return fmt.Errorf("backup_dir already configured for %s: %s", sourceDir, backupDir)
		}
	}
	src.BackupDirs = append(src.BackupDirs, backupDir)
	return nil
}

// RemoveBackupDir removes a destination from the named source.
func (g *GlobalConfig) RemoveBackupDir(sourceDir, backupDir string) error {
	src, err := g.findSource(sourceDir)
	if err != nil {
		return err
	}
	for i, b := range src.BackupDirs {
		if b == backupDir {
			src.BackupDirs = append(src.BackupDirs[:i], src.BackupDirs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("backup_dir not configured for %s: %s", sourceDir, backupDir)
}

// SetGlobal applies a `config set <key> <value>` mutation to a global key.
func (g *GlobalConfig) SetGlobal(key, value string) error {
	switch key {
	case "enable_periodic":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("enable_periodic: %w", err)
		}
		g.EnablePeriodic = b
	case "enable_event_driven":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("enable_event_driven: %w", err)
		}
		g.EnableEventDriven = b
	case "max_backups":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("max_backups: %w", err)
		}
		g.MaxBackups = n
	case "max_log_file_size_mb":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("max_log_file_size_mb: %w", err)
		}
		g.MaxLogFileSizeMB = n
	case "backup_mode":
		m := BackupMode(value)
		if m != ModeDelta && m != ModeCopy {
			return fmt.Errorf("backup_mode must be %q or %q", ModeDelta, ModeCopy)
		}
		g.BackupMode = m
	case "cron_schedule":
		g.CronSchedule = value
	case "enable_min_interval_by_size":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("enable_min_interval_by_size: %w", err)
		}
		g.EnableMinIntervalBySize = b
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// SetSource applies a `config set-source <src> <key> <value|reset>`
// mutation to a per-source override; "reset" clears the override so the
// source falls back to the global value again.
func (g *GlobalConfig) SetSource(sourceDir, key, value string) error {
	src, err := g.findSource(sourceDir)
	if err != nil {
		return err
	}
	reset := value == "reset"

	switch key {
	case "max_backups":
		if reset {
			src.MaxBackups = nil
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("max_backups: %w", err)
		}
		src.MaxBackups = &n
	case "backup_mode":
		if reset {
			src.BackupMode = nil
			return nil
		}
		m := BackupMode(value)
		if m != ModeDelta && m != ModeCopy {
			return fmt.Errorf("backup_mode must be %q or %q", ModeDelta, ModeCopy)
		}
		src.BackupMode = &m
	case "cron_schedule":
		if reset {
			src.CronSchedule = nil
			return nil
		}
		src.CronSchedule = &value
	case "enable_event_driven":
		if reset {
			src.EnableEventDriven = nil
			return nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("enable_event_driven: %w", err)
		}
		src.EnableEventDriven = &b
	case "enable_periodic":
		if reset {
			src.EnablePeriodic = nil
			return nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("enable_periodic: %w", err)
		}
		src.EnablePeriodic = &b
	case "enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("enabled: %w", err)
		}
		src.Enabled = b
	default:
		return fmt.Errorf("unknown source key: %s", key)
	}
	return nil
}
