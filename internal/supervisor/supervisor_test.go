package supervisor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ardiex/internal/config"
	"ardiex/internal/engine"
	"ardiex/internal/logger"
	"ardiex/internal/metadata"
	"ardiex/internal/trigger"
	"ardiex/internal/validator"
)

func newTestSupervisor(t *testing.T, settingsPath string) *Supervisor {
	t.Helper()
	log := logger.New("error", "text")
	eng := engine.New(metadata.NewStore(), log)
	v, err := validator.New("")
	if err != nil {
		t.Fatal(err)
	}
	return New(settingsPath, eng, v, log)
}

func writeSettings(t *testing.T, path string, cfg *config.GlobalConfig) {
	t.Helper()
	if err := config.Save(path, cfg); err != nil {
		t.Fatal(err)
	}
}

func TestCheckHotReloadAppliesValidChange(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.json")
	cfg := config.Default()
	writeSettings(t, settingsPath, cfg)

	s := newTestSupervisor(t, settingsPath)
	s.cfg = cfg
	fp, _ := config.Fingerprint(cfg)
	s.fingerprint = fp

	cfg2 := config.Default()
	cfg2.MaxBackups = 99
	writeSettings(t, settingsPath, cfg2)

	s.checkHotReload(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxBackups != 99 {
		t.Errorf("expected reload to apply new max_backups, got %d", s.cfg.MaxBackups)
	}
}

func TestCheckHotReloadRejectsInvalidChangeOnce(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.json")
	cfg := config.Default()
	writeSettings(t, settingsPath, cfg)

	s := newTestSupervisor(t, settingsPath)
	s.cfg = cfg
	fp, _ := config.Fingerprint(cfg)
	s.fingerprint = fp

	// Write a structurally-invalid candidate directly (bypassing Save's
	// marshaling of GlobalConfig) so Validate trips a fatal diagnostic.
	bad := map[string]any{"max_backups": -1}
	data, _ := json.Marshal(bad)
	os.WriteFile(settingsPath, data, 0644)

	s.checkHotReload(context.Background())

	s.mu.Lock()
	keptOriginal := s.cfg.MaxBackups == cfg.MaxBackups
	badFP := s.badFingerprint
	s.mu.Unlock()
	if !keptOriginal {
		t.Error("expected the running config to be retained after a rejected candidate")
	}
	if badFP == "" {
		t.Error("expected the bad fingerprint to be remembered")
	}
}

func TestHandleTriggerCoalescesWhileRunning(t *testing.T) {
	s := newTestSupervisor(t, filepath.Join(t.TempDir(), "settings.json"))
	srcDir := t.TempDir()
	destDir := t.TempDir()
	os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("v1"), 0644)

	cfg := config.Default()
	cfg.Sources = []config.SourceConfig{{SourceDir: srcDir, BackupDirs: []string{destDir}, Enabled: true}}
	s.cfg = cfg

	s.pendingMu.Lock()
	s.running[srcDir] = true
	s.pendingMu.Unlock()

	s.handleTrigger(context.Background(), trigger.Event{SourceDir: srcDir, Reason: "cron"})

	s.pendingMu.Lock()
	pending := s.pending[srcDir]
	s.pendingMu.Unlock()
	if !pending {
		t.Error("expected the trigger to coalesce into a pending flag while a round is running")
	}

	s.pendingMu.Lock()
	delete(s.running, srcDir)
	s.pendingMu.Unlock()

	// Give a real trigger a chance to run end to end.
	s.handleTrigger(context.Background(), trigger.Event{SourceDir: srcDir, Reason: "cron"})
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s.pendingMu.Lock()
		done := !s.running[srcDir]
		s.pendingMu.Unlock()
		if done {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the background round to finish within the deadline")
}
