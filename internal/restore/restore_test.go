package restore

import (
	"os"
	"path/filepath"
	"testing"

	"ardiex/internal/config"
	"ardiex/internal/deltacodec"
	"ardiex/internal/layout"
	"ardiex/internal/logger"
)

func testRestorer() *Restorer { return New(logger.New("error", "text")) }

func TestListBackupsOrdersByTimestamp(t *testing.T) {
	dest := t.TempDir()
	os.MkdirAll(filepath.Join(dest, "inc_20260101_000200.000"), 0755)
	os.MkdirAll(filepath.Join(dest, "full_20260101_000100.000"), 0755)

	entries, err := ListBackups(dest)
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].IsFull {
		t.Error("expected the full snapshot first (earlier timestamp)")
	}
}

func TestRestoreToPointCopyModeFullOnly(t *testing.T) {
	dest := t.TempDir()
	target := t.TempDir()
	fullDir := filepath.Join(dest, "full_20260101_000100.000")
	os.MkdirAll(fullDir, 0755)
	os.WriteFile(filepath.Join(fullDir, "a.txt"), []byte("v1"), 0644)

	r := testRestorer()
	if err := r.RestoreToPoint(dest, target, config.ModeCopy, Options{}); err != nil {
		t.Fatalf("RestoreToPoint: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(target, "a.txt"))
	if err != nil {
		t.Fatalf("reading restored file: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("got %q, want v1", got)
	}
}

func TestRestoreToPointCopyModeAppliesIncrementalOverwrite(t *testing.T) {
	dest := t.TempDir()
	target := t.TempDir()
	fullDir := filepath.Join(dest, "full_20260101_000100.000")
	os.MkdirAll(fullDir, 0755)
	os.WriteFile(filepath.Join(fullDir, "a.txt"), []byte("v1"), 0644)

	incDir := filepath.Join(dest, "inc_20260101_000200.000")
	os.MkdirAll(incDir, 0755)
	os.WriteFile(filepath.Join(incDir, "a.txt"), []byte("v2"), 0644)

	r := testRestorer()
	if err := r.RestoreToPoint(dest, target, config.ModeCopy, Options{}); err != nil {
		t.Fatalf("RestoreToPoint: %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(target, "a.txt"))
	if string(got) != "v2" {
		t.Errorf("got %q, want v2 (latest incremental should win)", got)
	}
}

func TestRestoreToPointDeltaModeAppliesPatch(t *testing.T) {
	dest := t.TempDir()
	target := t.TempDir()
	v1 := []byte("the quick brown fox jumps over the lazy dog, repeated padding for block math, repeated padding")
	v2 := append([]byte{}, v1...)
	v2[4] = 'X'

	fullDir := filepath.Join(dest, "full_20260101_000100.000")
	os.MkdirAll(fullDir, 0755)
	os.WriteFile(filepath.Join(fullDir, "a.txt"), v1, 0644)

	incDir := filepath.Join(dest, "inc_20260101_000200.000")
	os.MkdirAll(incDir, 0755)
	delta, err := deltacodec.CreateBytes(v1, v2)
	if err != nil {
		t.Fatalf("CreateBytes: %v", err)
	}
	if err := deltacodec.SaveFile(filepath.Join(incDir, "a.txt"+layout.DeltaSuffix), delta); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	r := testRestorer()
	if err := r.RestoreToPoint(dest, target, config.ModeDelta, Options{}); err != nil {
		t.Fatalf("RestoreToPoint: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(target, "a.txt"))
	if err != nil {
		t.Fatalf("reading restored file: %v", err)
	}
	if string(got) != string(v2) {
		t.Errorf("got %q, want %q", got, v2)
	}
}

func TestRestoreToPointSelectsPrefixUpToPoint(t *testing.T) {
	dest := t.TempDir()
	target := t.TempDir()
	fullDir := filepath.Join(dest, "full_20260101_000100.000")
	os.MkdirAll(fullDir, 0755)
	os.WriteFile(filepath.Join(fullDir, "a.txt"), []byte("v1"), 0644)

	incDir := filepath.Join(dest, "inc_20260101_000200.000")
	os.MkdirAll(incDir, 0755)
	os.WriteFile(filepath.Join(incDir, "a.txt"), []byte("v2"), 0644)

	r := testRestorer()
	// Restore to a point before the incremental: only the full applies.
	if err := r.RestoreToPoint(dest, target, config.ModeCopy, Options{Point: "20260101_000150.000"}); err != nil {
		t.Fatalf("RestoreToPoint: %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(target, "a.txt"))
	if string(got) != "v1" {
		t.Errorf("got %q, want v1 (incremental is after the point)", got)
	}
}

func TestRestoreToPointCleanRemovesStaleFiles(t *testing.T) {
	dest := t.TempDir()
	target := t.TempDir()
	os.WriteFile(filepath.Join(target, "stale.txt"), []byte("leftover"), 0644)

	fullDir := filepath.Join(dest, "full_20260101_000100.000")
	os.MkdirAll(fullDir, 0755)
	os.WriteFile(filepath.Join(fullDir, "a.txt"), []byte("v1"), 0644)

	r := testRestorer()
	if err := r.RestoreToPoint(dest, target, config.ModeCopy, Options{Clean: true}); err != nil {
		t.Fatalf("RestoreToPoint: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "stale.txt")); !os.IsNotExist(err) {
		t.Error("expected stale.txt to be removed by Clean")
	}
}

func TestRestoreToPointNoSnapshotIsError(t *testing.T) {
	dest := t.TempDir()
	target := t.TempDir()
	r := testRestorer()
	if err := r.RestoreToPoint(dest, target, config.ModeCopy, Options{}); err == nil {
		t.Error("expected an error when no snapshot exists")
	}
}
