package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ardiex/internal/config"
	"ardiex/internal/logger"
	"ardiex/internal/metadata"
)

func newTestEngine() *Engine {
	return New(metadata.NewStore(), logger.New("error", "text"))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRunSourceFirstRunIsFull(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "hello world")

	e := newTestEngine()
	results := e.RunSource(context.Background(), &config.GlobalConfig{BackupMode: config.ModeDelta}, config.SourceConfig{SourceDir: src, BackupDirs: []string{dest}, Enabled: true}, nil)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	res := results[0]
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.BackupType != metadata.Full {
		t.Errorf("expected full backup, got %s", res.BackupType)
	}
	if res.FilesCount != 1 {
		t.Errorf("expected 1 file backed up, got %d", res.FilesCount)
	}
}

func TestRunSourceSecondRunWithNoChangesIsEmptyIncremental(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "hello world")

	e := newTestEngine()
	cfg := &config.GlobalConfig{BackupMode: config.ModeDelta, MaxBackups: 10}
	scfg := config.SourceConfig{SourceDir: src, BackupDirs: []string{dest}, Enabled: true}

	e.RunSource(context.Background(), cfg, scfg, nil)
	e.Now = func() time.Time { return time.Now().Add(time.Second) }
	results := e.RunSource(context.Background(), cfg, scfg, nil)

	res := results[0]
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.BackupType != metadata.Incremental {
		t.Errorf("expected incremental, got %s", res.BackupType)
	}
	if res.FilesCount != 0 {
		t.Errorf("expected 0 files changed, got %d", res.FilesCount)
	}
}

func TestRunSourceDeltaRoundOnEditedFile(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	// Large enough to span several 4KiB delta blocks so that editing one
	// byte only replaces one block, keeping the serialized delta well
	// under half the file size (spec.md §4.2's discard threshold).
	content := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 500)
	writeFile(t, filepath.Join(src, "a.txt"), content)

	e := newTestEngine()
	cfg := &config.GlobalConfig{BackupMode: config.ModeDelta, MaxBackups: 10}
	scfg := config.SourceConfig{SourceDir: src, BackupDirs: []string{dest}, Enabled: true}

	e.RunSource(context.Background(), cfg, scfg, nil)

	edited := content[:10] + "X" + content[11:]
	writeFile(t, filepath.Join(src, "a.txt"), edited)
	e.Now = func() time.Time { return time.Now().Add(time.Second) }
	results := e.RunSource(context.Background(), cfg, scfg, nil)

	res := results[0]
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.BackupType != metadata.Incremental {
		t.Fatalf("expected incremental, got %s", res.BackupType)
	}
	if res.FilesCount != 1 {
		t.Fatalf("expected 1 file changed, got %d", res.FilesCount)
	}

	if !hasDeltaArtifact(t, dest) {
		t.Errorf("expected a .delta artifact somewhere under %s", dest)
	}
}

// hasDeltaArtifact reports whether any round directory under dest contains
// a .delta file.
func hasDeltaArtifact(t *testing.T, dest string) bool {
	t.Helper()
	found := false
	filepath.WalkDir(dest, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".delta" {
			found = true
		}
		return nil
	})
	return found
}

func TestRunSourceForcedFullIgnoresInterval(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "v1")

	e := newTestEngine()
	cfg := &config.GlobalConfig{BackupMode: config.ModeDelta, MaxBackups: 10}
	scfg := config.SourceConfig{SourceDir: src, BackupDirs: []string{dest}, Enabled: true}

	e.RunSource(context.Background(), cfg, scfg, nil)
	e.Now = func() time.Time { return time.Now().Add(time.Second) }
	results := e.RunSource(context.Background(), cfg, scfg, map[string]bool{dest: true})

	if results[0].BackupType != metadata.Full {
		t.Errorf("expected forced full, got %s", results[0].BackupType)
	}
}

func TestRunSourceRetentionEvictsOldestChain(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "v1")

	e := newTestEngine()
	cfg := &config.GlobalConfig{BackupMode: config.ModeCopy}
	scfg := config.SourceConfig{SourceDir: src, BackupDirs: []string{dest}, Enabled: true}

	// maxBackups=1 via source override gives interval=1, so the rounds run
	// full, inc, full: the inc round pushes history to 2 entries and
	// retention evicts that whole full+inc chain, leaving only the third
	// round's new full on disk.
	one := 1
	scfg.MaxBackups = &one

	base := time.Now()
	for i := 0; i < 3; i++ {
		e.Now = func(offset int) func() time.Time {
			return func() time.Time { return base.Add(time.Duration(offset) * time.Second) }
		}(i)
		writeFile(t, filepath.Join(src, "a.txt"), "v"+string(rune('1'+i)))
		e.RunSource(context.Background(), cfg, scfg, nil)
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	fullDirs := 0
	for _, en := range entries {
		if en.IsDir() {
			fullDirs++
		}
	}
	if fullDirs != 1 {
		t.Errorf("expected exactly 1 surviving round directory after retention, got %d", fullDirs)
	}
}

// TestRunSourceRetentionTotalEntriesNotJustFullChains mirrors spec.md §8
// scenario 6: max_backups=2 and a full/inc/full/inc sequence. Eviction is
// keyed on the total entry count, not the full-backup count alone, so the
// oldest full+inc chain is gone by the end and exactly 2 history entries
// (and round directories) survive.
func TestRunSourceRetentionTotalEntriesNotJustFullChains(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	e := newTestEngine()
	cfg := &config.GlobalConfig{BackupMode: config.ModeCopy}
	two := 2
	scfg := config.SourceConfig{SourceDir: src, BackupDirs: []string{dest}, Enabled: true, MaxBackups: &two}

	base := time.Now()
	for i := 0; i < 4; i++ {
		e.Now = func(offset int) func() time.Time {
			return func() time.Time { return base.Add(time.Duration(offset) * time.Second) }
		}(i)
		writeFile(t, filepath.Join(src, "a.txt"), "v"+string(rune('1'+i)))
		res := e.RunSource(context.Background(), cfg, scfg, nil)
		if res[0].Err != nil {
			t.Fatalf("round %d: unexpected error: %v", i, res[0].Err)
		}
	}

	doc, err := e.Store.GetOrLoad(dest)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if len(doc.BackupHistory) != 2 {
		t.Errorf("expected 2 surviving history entries, got %d: %+v", len(doc.BackupHistory), doc.BackupHistory)
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	dirs := 0
	for _, en := range entries {
		if en.IsDir() {
			dirs++
		}
	}
	if dirs != 2 {
		t.Errorf("expected 2 surviving round directories, got %d", dirs)
	}
}

func TestRunSourceExcludePatternsSkipMatchedFiles(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFile(t, filepath.Join(src, "keep.txt"), "keep me")
	writeFile(t, filepath.Join(src, "skip.tmp"), "drop me")

	e := newTestEngine()
	cfg := &config.GlobalConfig{BackupMode: config.ModeCopy, ExcludePatterns: []string{"*.tmp"}}
	scfg := config.SourceConfig{SourceDir: src, BackupDirs: []string{dest}, Enabled: true}

	results := e.RunSource(context.Background(), cfg, scfg, nil)
	res := results[0]
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.FilesCount != 1 {
		t.Errorf("expected 1 file (excludes applied), got %d", res.FilesCount)
	}
}

func TestBackupAllSourcesSkipsDisabled(t *testing.T) {
	src1 := t.TempDir()
	src2 := t.TempDir()
	dest1 := t.TempDir()
	dest2 := t.TempDir()
	writeFile(t, filepath.Join(src1, "a.txt"), "hi")
	writeFile(t, filepath.Join(src2, "b.txt"), "hi")

	e := newTestEngine()
	cfg := &config.GlobalConfig{
		BackupMode: config.ModeCopy,
		Sources: []config.SourceConfig{
			{SourceDir: src1, BackupDirs: []string{dest1}, Enabled: true},
			{SourceDir: src2, BackupDirs: []string{dest2}, Enabled: false},
		},
	}

	results, err := e.BackupAllSources(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result (disabled source skipped), got %d", len(results))
	}
	if results[0].SourceDir != src1 {
		t.Errorf("expected result for enabled source %s, got %s", src1, results[0].SourceDir)
	}
}
