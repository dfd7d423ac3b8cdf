// Package trigger implements spec.md §4.8's scheduling layer: one cron task
// per source, a recursive FS-event watcher with debounce, and a size-gated
// minimum interval for cron fires. Both feed a single backup-trigger
// channel the supervisor drains.
package trigger

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"ardiex/internal/logger"
	"ardiex/internal/scanner"
)

// Event is posted on the trigger channel whenever a source should run a
// backup round.
type Event struct {
	SourceDir string
	Reason    string // "cron" or "fsnotify"
}

const debounceWindow = 300 * time.Millisecond

// minIntervalForSize implements spec.md §4.8's size-gated table.
func minIntervalForSize(bytes int64) time.Duration {
	const mib = 1 << 20
	const gib = 1 << 30
	switch {
	case bytes <= 10*mib:
		return time.Second
	case bytes <= 100*mib:
		return time.Minute
	case bytes <= gib:
		return time.Hour
	default:
		gibCount := math.Ceil(float64(bytes) / float64(gib))
		return time.Duration(gibCount) * time.Hour
	}
}

// dirSize sums file sizes recursively; used only for the min-interval gate,
// so errors are tolerated by skipping the offending entry rather than
// failing the whole computation.
func dirSize(root string) int64 {
	var total int64
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, statErr := d.Info(); statErr == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// SourceSpec is the subset of a resolved source configuration the trigger
// layer needs.
type SourceSpec struct {
	SourceDir               string
	BackupDirs              []string
	ExcludePatterns         []string
	CronSchedule            string
	EnablePeriodic          bool
	EnableEventDriven       bool
	EnableMinIntervalBySize bool
}

// Scheduler owns the cron tasks and the FS watcher for one set of sources,
// feeding Events into a shared channel until Stop is called.
type Scheduler struct {
	Log     logger.Logger
	Events  chan Event
	cron    *cron.Cron
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	mu           sync.Mutex
	lastTrigger  map[string]time.Time
	debounceMu   sync.Mutex
	debounceJobs map[string]*time.Timer
}

// NewScheduler builds a Scheduler whose Events channel is buffered (64
// entries) so cron/watcher goroutines don't block on a slow supervisor;
// once the buffer is full, further events are dropped with a warning.
func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{
		Log:          log,
		Events:       make(chan Event, 64),
		lastTrigger:  map[string]time.Time{},
		debounceJobs: map[string]*time.Timer{},
	}
}

// Start builds cron tasks for every periodic source and a single recursive
// watcher across every event-driven source, per spec.md §4.8.
func (s *Scheduler) Start(sources []SourceSpec) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.cron = cron.New(cron.WithSeconds())
	for _, src := range sources {
		if !src.EnablePeriodic || src.CronSchedule == "" {
			continue
		}
		src := src
		if _, err := s.cron.AddFunc(src.CronSchedule, func() { s.fireCron(ctx, src) }); err != nil {
			return err
		}
	}
	s.cron.Start()

	watched := make([]SourceSpec, 0, len(sources))
	for _, src := range sources {
		if src.EnableEventDriven {
			watched = append(watched, src)
		}
	}
	if len(watched) == 0 {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = w
	matchers := make(map[string]*scanner.Matcher, len(watched))
	for _, src := range watched {
		m, err := scanner.NewMatcher(src.ExcludePatterns)
		if err != nil {
			return err
		}
		matchers[src.SourceDir] = m
		if err := addRecursive(w, src.SourceDir); err != nil {
			return err
		}
	}
	go s.watchEvents(ctx, watched, matchers)
	return nil
}

// addRecursive registers every directory under root with the watcher;
// fsnotify.Watcher only watches the directories it's told about, not their
// children, so a recursive source tree needs one Add per subdirectory
// (mirrors the teacher-adjacent watcher's addRecursivePaths pattern).
func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

func (s *Scheduler) fireCron(ctx context.Context, src SourceSpec) {
	if src.EnableMinIntervalBySize {
		size := dirSize(src.SourceDir)
		minInterval := minIntervalForSize(size)

		s.mu.Lock()
		last, ok := s.lastTrigger[src.SourceDir]
		s.mu.Unlock()
		if ok {
			wait := last.Add(minInterval).Sub(time.Now())
			if wait > 0 {
				t := time.NewTimer(wait)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return
				}
			}
		}
	}
	s.mu.Lock()
	s.lastTrigger[src.SourceDir] = time.Now()
	s.mu.Unlock()
	s.post(Event{SourceDir: src.SourceDir, Reason: "cron"})
}

func (s *Scheduler) watchEvents(ctx context.Context, sources []SourceSpec, matchers map[string]*scanner.Matcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			src := s.matchSource(ev.Name, sources, matchers)
			if src == nil {
				continue
			}
			s.debounce(ctx, *src)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.Log.Warn("fs watcher error", "error", err)
		}
	}
}

// matchSource finds which watched source owns path, dropping it if it
// falls inside any of that source's own backup_dirs or matches its exclude
// patterns (spec.md §4.8).
func (s *Scheduler) matchSource(path string, sources []SourceSpec, matchers map[string]*scanner.Matcher) *SourceSpec {
	for i := range sources {
		src := &sources[i]
		rel, err := filepath.Rel(src.SourceDir, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		inBackupDir := false
		for _, b := range src.BackupDirs {
			if r, err := filepath.Rel(b, path); err == nil && !strings.HasPrefix(r, "..") {
				inBackupDir = true
				break
			}
		}
		if inBackupDir {
			continue
		}
		if m := matchers[src.SourceDir]; m != nil && m.Match(filepath.ToSlash(rel)) {
			continue
		}
		return src
	}
	return nil
}

// debounce resets a trailing 300ms window per source; one Event fires once
// the window closes with no further activity (spec.md §4.8).
func (s *Scheduler) debounce(ctx context.Context, src SourceSpec) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	if t, ok := s.debounceJobs[src.SourceDir]; ok {
		t.Stop()
	}
	s.debounceJobs[src.SourceDir] = time.AfterFunc(debounceWindow, func() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.post(Event{SourceDir: src.SourceDir, Reason: "fsnotify"})
	})
}

func (s *Scheduler) post(ev Event) {
	select {
	case s.Events <- ev:
	default:
		s.Log.Warn("trigger channel full, dropping event", "source", ev.SourceDir, "reason", ev.Reason)
	}
}

// Stop cancels cron and watcher tasks. In-flight rounds are unaffected;
// the supervisor is responsible for letting them finish (spec.md §5).
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.debounceMu.Lock()
	for _, t := range s.debounceJobs {
		t.Stop()
	}
	s.debounceMu.Unlock()
}
