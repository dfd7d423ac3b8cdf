// Package supervisor runs Ardiex's long-lived "run" mode: a select loop
// over backup triggers, a 2s settings hot-reload tick, and shutdown
// (spec.md §4.8 "Hot reload", §5).
package supervisor

import (
	"context"
	"sync"
	"time"

	"ardiex/internal/config"
	"ardiex/internal/engine"
	"ardiex/internal/logger"
	"ardiex/internal/trigger"
	"ardiex/internal/validator"
)

const hotReloadInterval = 2 * time.Second

// Supervisor owns the running scheduler, the engine, and the config path it
// watches for hot reload.
type Supervisor struct {
	SettingsPath string
	Engine       *engine.Engine
	Validator    *validator.Validator
	Log          logger.Logger

	mu             sync.Mutex
	cfg            *config.GlobalConfig
	fingerprint    string
	badFingerprint string
	scheduler      *trigger.Scheduler

	pendingMu sync.Mutex
	pending   map[string]bool
	running   map[string]bool
}

// New creates a Supervisor for the settings file at settingsPath.
func New(settingsPath string, eng *engine.Engine, v *validator.Validator, log logger.Logger) *Supervisor {
	return &Supervisor{
		SettingsPath: settingsPath,
		Engine:       eng,
		Validator:    v,
		Log:          log,
		pending:      map[string]bool{},
		running:      map[string]bool{},
	}
}

// Run blocks until ctx is cancelled, driving the trigger → engine pipeline
// and the hot-reload tick.
func (s *Supervisor) Run(ctx context.Context) error {
	cfg, err := config.Load(s.SettingsPath)
	if err != nil {
		return err
	}
	fp, err := config.Fingerprint(cfg)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.fingerprint = fp

	if res := s.Validator.Validate(cfg); len(res.Fatal) > 0 {
		return fatalError(res.Fatal)
	}

	sched := trigger.NewScheduler(s.Log)
	if err := sched.Start(s.sourceSpecs(cfg)); err != nil {
		return err
	}
	s.scheduler = sched

	ticker := time.NewTicker(hotReloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sched.Stop()
			return nil
		case ev := <-sched.Events:
			s.handleTrigger(ctx, ev)
		case <-ticker.C:
			s.checkHotReload(ctx)
		}
	}
}

// handleTrigger runs a backup for ev.SourceDir, coalescing triggers that
// arrive while a round for the same source is already in flight (spec.md
// §5: "incoming triggers for the same source collapse to at most one
// pending trigger").
func (s *Supervisor) handleTrigger(ctx context.Context, ev trigger.Event) {
	s.pendingMu.Lock()
	if s.running[ev.SourceDir] {
		s.pending[ev.SourceDir] = true
		s.pendingMu.Unlock()
		return
	}
	s.running[ev.SourceDir] = true
	s.pendingMu.Unlock()

	go s.runSourceAndDrainPending(ctx, ev.SourceDir)
}

func (s *Supervisor) runSourceAndDrainPending(ctx context.Context, sourceDir string) {
	for {
		s.mu.Lock()
		cfg := s.cfg
		s.mu.Unlock()

		src, ok := findSource(cfg, sourceDir)
		if ok {
			results := s.Engine.RunSource(ctx, cfg, src, nil)
			for _, r := range results {
				if r.Err != nil {
					s.Log.Error("backup round failed", "source", r.SourceDir, "dest", r.BackupDir, "error", r.Err)
				} else {
					s.Log.Info("backup round complete", "source", r.SourceDir, "dest", r.BackupDir,
						"type", r.BackupType, "files", r.FilesCount, "bytes", r.Bytes, "duration", r.Duration)
				}
			}
		}

		s.pendingMu.Lock()
		if s.pending[sourceDir] {
			delete(s.pending, sourceDir)
			s.pendingMu.Unlock()
			continue
		}
		delete(s.running, sourceDir)
		s.pendingMu.Unlock()
		return
	}
}

func findSource(cfg *config.GlobalConfig, sourceDir string) (config.SourceConfig, bool) {
	for _, s := range cfg.Sources {
		if s.SourceDir == sourceDir {
			return s, true
		}
	}
	return config.SourceConfig{}, false
}

// checkHotReload implements spec.md §4.8's reload rule.
func (s *Supervisor) checkHotReload(ctx context.Context) {
	candidate, err := config.Load(s.SettingsPath)
	if err != nil {
		s.Log.Warn("hot-reload: failed to read settings", "error", err)
		return
	}
	fp, err := config.Fingerprint(candidate)
	if err != nil {
		s.Log.Warn("hot-reload: failed to fingerprint settings", "error", err)
		return
	}

	s.mu.Lock()
	unchanged := fp == s.fingerprint
	alreadyRejected := fp == s.badFingerprint
	s.mu.Unlock()
	if unchanged || alreadyRejected {
		return
	}

	res := s.Validator.Validate(candidate)
	if len(res.Fatal) > 0 {
		s.mu.Lock()
		s.badFingerprint = fp
		s.mu.Unlock()
		s.Log.Warn("[HOT-RELOAD] Rejected invalid configuration", "diagnostics", res.Fatal)
		return
	}

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	sched := trigger.NewScheduler(s.Log)
	if err := sched.Start(s.sourceSpecs(candidate)); err != nil {
		s.Log.Warn("[HOT-RELOAD] Rejected invalid configuration", "error", err)
		s.mu.Lock()
		s.badFingerprint = fp
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.cfg = candidate
	s.fingerprint = fp
	s.badFingerprint = ""
	s.scheduler = sched
	s.mu.Unlock()

	pretty, _ := config.PrettyPrint(candidate)
	s.Log.Info("[HOT-RELOAD] Applied successfully")
	s.Log.Info("[CONFIG] " + pretty)
}

func (s *Supervisor) sourceSpecs(cfg *config.GlobalConfig) []trigger.SourceSpec {
	specs := make([]trigger.SourceSpec, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		r := cfg.Resolve(src)
		specs = append(specs, trigger.SourceSpec{
			SourceDir:               r.SourceDir,
			BackupDirs:              r.BackupDirs,
			ExcludePatterns:         r.ExcludePatterns,
			CronSchedule:            r.CronSchedule,
			EnablePeriodic:          r.EnablePeriodic,
			EnableEventDriven:       r.EnableEventDriven,
			EnableMinIntervalBySize: cfg.EnableMinIntervalBySize,
		})
	}
	return specs
}

type fatalError []string

func (f fatalError) Error() string {
	msg := "invalid configuration:"
	for _, d := range f {
		msg += "\n  - " + d
	}
	return msg
}
