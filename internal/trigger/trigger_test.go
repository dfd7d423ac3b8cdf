package trigger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ardiex/internal/logger"
	"ardiex/internal/scanner"
)

func TestMinIntervalForSizeTable(t *testing.T) {
	const mib = 1 << 20
	const gib = 1 << 30
	cases := []struct {
		bytes int64
		want  time.Duration
	}{
		{5 * mib, time.Second},
		{50 * mib, time.Minute},
		{500 * mib, time.Hour},
		{gib, time.Hour},
		{int64(2.5 * gib), 3 * time.Hour},
	}
	for _, c := range cases {
		if got := minIntervalForSize(c.bytes); got != c.want {
			t.Errorf("minIntervalForSize(%d) = %v, want %v", c.bytes, got, c.want)
		}
	}
}

func TestDirSizeSumsFiles(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), make([]byte, 100), 0644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	os.WriteFile(filepath.Join(dir, "sub", "b.txt"), make([]byte, 50), 0644)

	if got := dirSize(dir); got != 150 {
		t.Errorf("dirSize = %d, want 150", got)
	}
}

func TestMatchSourceDropsBackupDirAndExcluded(t *testing.T) {
	src := t.TempDir()
	backupDir := filepath.Join(src, ".backup")
	os.MkdirAll(backupDir, 0755)

	m, err := scanner.NewMatcher([]string{"*.tmp"})
	if err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(logger.New("error", "text"))
	sources := []SourceSpec{{SourceDir: src, BackupDirs: []string{backupDir}, ExcludePatterns: []string{"*.tmp"}}}
	matchers := map[string]*scanner.Matcher{src: m}

	if got := s.matchSource(filepath.Join(backupDir, "x.txt"), sources, matchers); got != nil {
		t.Error("expected path inside backup_dir to be dropped")
	}
	if got := s.matchSource(filepath.Join(src, "a.tmp"), sources, matchers); got != nil {
		t.Error("expected excluded path to be dropped")
	}
	if got := s.matchSource(filepath.Join(src, "a.txt"), sources, matchers); got == nil {
		t.Error("expected a plain in-tree path to match its source")
	}
}

func TestDebounceCoalescesRapidEvents(t *testing.T) {
	s := NewScheduler(logger.New("error", "text"))
	src := SourceSpec{SourceDir: t.TempDir()}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.debounce(ctx, src)
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case ev := <-s.Events:
		if ev.SourceDir != src.SourceDir || ev.Reason != "fsnotify" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected exactly one coalesced trigger within the debounce window")
	}

	select {
	case ev := <-s.Events:
		t.Errorf("expected no second event, got %+v", ev)
	case <-time.After(500 * time.Millisecond):
	}
}
