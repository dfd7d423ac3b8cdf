// Package engine orchestrates a backup round: for each enabled source and
// each of its destinations, it decides full vs incremental, scans and
// hashes, writes artifacts, updates the metadata ledger, and enforces
// retention (spec.md §4.6).
package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ardiex/internal/apperr"
	"ardiex/internal/config"
	"ardiex/internal/diskspace"
	"ardiex/internal/incsum"
	"ardiex/internal/layout"
	"ardiex/internal/logger"
	"ardiex/internal/metadata"
	"ardiex/internal/scanner"
)

// BackupResult summarizes one completed (or aborted) round.
type BackupResult struct {
	// RoundID correlates this result with the round's log lines, assigned
	// before the round's timestamp directory name is known (e.g. a round
	// that aborts while loading metadata never gets a directory name to log
	// by).
	RoundID    string
	SourceDir  string
	BackupDir  string
	BackupType metadata.BackupType
	FilesCount int
	Bytes      int64
	Duration   time.Duration
	Err        error
}

// Engine runs backup rounds against a metadata.Store. It holds no global
// state of its own beyond the destination-lock map and an injectable clock,
// so multiple Engines (e.g. in tests) never interfere with each other.
type Engine struct {
	Store *metadata.Store
	Log   logger.Logger
	// Now is the clock used for round timestamps; overridable in tests.
	Now func() time.Time
	// Limiter throttles the bytes/sec spent writing round artifacts, if
	// set. Nil means unlimited, generalizing the teacher's retry-backoff
	// rate limiter (internal/security/ratelimit.go) into a per-round I/O
	// throttle instead of a connection-retry gate.
	Limiter *rate.Limiter

	destMu   sync.Mutex
	destLock map[string]*sync.Mutex
}

// New creates an Engine backed by store, logging through log.
func New(store *metadata.Store, log logger.Logger) *Engine {
	return &Engine{
		Store:    store,
		Log:      log,
		Now:      time.Now,
		destLock: map[string]*sync.Mutex{},
	}
}

// NewRateLimiter builds the token-bucket limiter for Engine.Limiter from a
// bytes/sec ceiling, with a burst generous enough to admit one large file
// without starving smaller ones behind it.
func NewRateLimiter(bytesPerSec int64) *rate.Limiter {
	burst := int(bytesPerSec)
	if burst < 1<<20 {
		burst = 1 << 20
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

func (e *Engine) lockForDest(destDir string) *sync.Mutex {
	e.destMu.Lock()
	defer e.destMu.Unlock()
	l, ok := e.destLock[destDir]
	if !ok {
		l = &sync.Mutex{}
		e.destLock[destDir] = l
	}
	return l
}

// BackupAllSources runs one round for every enabled source in cfg, across
// all of that source's destinations. Sources run concurrently; forceFull is
// keyed by destination directory and typically comes from the validator.
// Returns every destination's result (including aborted ones, recorded via
// BackupResult.Err) plus the first unexpected (non-per-destination) error.
func (e *Engine) BackupAllSources(ctx context.Context, cfg *config.GlobalConfig, forceFull map[string]bool) ([]BackupResult, error) {
	var mu sync.Mutex
	var results []BackupResult

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range cfg.Sources {
		src := src
		if !src.Enabled {
			continue
		}
		g.Go(func() error {
			res := e.RunSource(gctx, cfg, src, forceFull)
			mu.Lock()
			results = append(results, res...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// RunSource runs one round for every destination of a single source,
// sequentially, under that source's metadata lock (spec.md §4.6: "sources
// may run concurrently" but a single source's destinations and metadata
// writes are processed one at a time).
func (e *Engine) RunSource(ctx context.Context, cfg *config.GlobalConfig, src config.SourceConfig, forceFull map[string]bool) []BackupResult {
	resolved := cfg.Resolve(src)
	var results []BackupResult

	_ = e.Store.WithSource(resolved.SourceDir, func() error {
		for _, destDir := range resolved.BackupDirs {
			start := time.Now()
			res := e.runDestinationLocked(ctx, resolved, destDir, forceFull[destDir])
			res.Duration = time.Since(start)
			results = append(results, res)
		}
		return nil
	})
	return results
}

// runDestinationLocked executes spec.md §4.6 steps a-l for one destination.
// The caller must already hold the source's metadata lock; this method
// additionally takes the destination lock so at most one round targets a
// given destination directory at a time.
func (e *Engine) runDestinationLocked(ctx context.Context, r config.Resolved, destDir string, forceFull bool) BackupResult {
	dl := e.lockForDest(destDir)
	dl.Lock()
	defer dl.Unlock()

	res := BackupResult{RoundID: uuid.New().String(), SourceDir: r.SourceDir, BackupDir: destDir}
	e.Log.Debug("round starting", "round_id", res.RoundID, "source", r.SourceDir, "dest", destDir)

	if err := ctx.Err(); err != nil {
		res.Err = apperr.New(apperr.Cancelled, "engine.round", err).WithSource(r.SourceDir).WithDestination(destDir)
		return res
	}

	doc, err := e.Store.GetOrLoad(destDir)
	if err != nil {
		res.Err = apperr.New(apperr.Io, "engine.round.load_metadata", err).WithDestination(destDir)
		return res
	}

	isFull := forceFull || doc.LatestFullIndex() < 0 || doc.IncrementalsSinceLastFull() >= r.FullBackupInterval()
	res.BackupType = metadata.Incremental
	if isFull {
		res.BackupType = metadata.Full
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		res.Err = apperr.New(apperr.Io, "engine.round.mkdir_dest", err).WithDestination(destDir)
		return res
	}
	name, roundDir, ts := layout.UniqueTimestampDir(destDir, isFull, e.Now)
	if err := os.MkdirAll(roundDir, 0755); err != nil {
		res.Err = apperr.New(apperr.Io, "engine.round.mkdir_round", err).WithDestination(destDir)
		return res
	}

	matcher, err := scanner.NewMatcher(r.ExcludePatterns)
	if err != nil {
		res.Err = apperr.New(apperr.Config, "engine.round.exclude_patterns", err).WithSource(r.SourceDir)
		return res
	}
	entries, err := scanner.Scan(r.SourceDir, matcher)
	if err != nil {
		res.Err = apperr.New(apperr.Io, "engine.round.scan", err).WithSource(r.SourceDir)
		return res
	}
	currentHashes, err := scanner.HashAll(entries)
	if err != nil {
		res.Err = apperr.New(apperr.Io, "engine.round.hash", err).WithSource(r.SourceDir)
		return res
	}

	var toProcess []scanner.Entry
	var deleted []string
	if isFull {
		toProcess = entries
	} else {
		cs := scanner.Diff(currentHashes, doc.FileHashes)
		changed := map[string]bool{}
		for _, c := range cs.Changed {
			changed[c] = true
		}
		for _, en := range entries {
			if changed[en.RelPath] {
				toProcess = append(toProcess, en)
			}
		}
		deleted = cs.Deleted
	}

	var required int64
	for _, en := range toProcess {
		required += en.Size
	}
	if check, err := diskspace.Statfs(destDir); err == nil && !check.HasHeadroom(required) {
		res.Err = apperr.New(apperr.Io, "engine.round.disk_space", fmt.Errorf(
			"%d bytes available, %d required on %s", check.AvailableBytes, required, check.Path)).WithDestination(destDir)
		os.RemoveAll(roundDir)
		return res
	} else if err != nil {
		e.Log.Warn("disk space check failed, proceeding without a guard", "dest", destDir, "error", err)
	}

	plan := e.writeRound(ctx, r, doc, destDir, roundDir, toProcess, res.BackupType, name)
	res.FilesCount = plan.filesCount
	res.Bytes = plan.bytes
	e.logProgress(r, destDir, res.RoundID, plan.filesCount, len(toProcess))

	failed := make(map[string]bool, len(plan.failed))
	for _, f := range plan.failed {
		failed[f] = true
	}
	newHashes := make(map[string]string, len(currentHashes))
	for k, v := range currentHashes {
		if failed[k] {
			// Preserve whatever was last successfully recorded for this
			// file rather than claiming it was backed up this round.
			if prev, had := doc.FileHashes[k]; had {
				newHashes[k] = prev
			}
			continue
		}
		newHashes[k] = v
	}
	doc.ReplaceHashes(newHashes)

	entry := metadata.HistoryEntry{
		BackupName:     name,
		BackupType:     res.BackupType,
		CreatedAt:      ts,
		FilesBackedUp:  plan.filesCount,
		BytesProcessed: plan.bytes,
	}
	if res.BackupType == metadata.Incremental {
		entry.IncChecksum = incsum.Compute(plan.artifacts)
	}
	doc.UpsertHistory(entry)

	doc.LastBackup = ts
	if isFull {
		doc.LastFullBackup = ts
	}

	if err := e.Store.Persist(destDir); err != nil {
		res.Err = apperr.New(apperr.Io, "engine.round.persist_metadata", err).WithDestination(destDir)
		return res
	}

	if removed, retErr := ApplyRetention(doc, destDir, r.MaxBackups); retErr != nil {
		e.Log.Warn("retention eviction failed", "dest", destDir, "error", retErr)
	} else if len(removed) > 0 {
		if err := e.Store.Persist(destDir); err != nil {
			e.Log.Warn("failed to persist metadata after retention", "dest", destDir, "error", err)
		}
		e.Log.Info("retention evicted chain", "dest", destDir, "removed", removed)
	}

	_ = deleted // deletions are reflected in file_hashes only; see spec.md §4.4 and §9.
	return res
}

func (e *Engine) logProgress(r config.Resolved, destDir, roundID string, done, total int) {
	if total == 0 {
		return
	}
	step := total / 10
	if step == 0 {
		step = 1
	}
	if done%step == 0 || done == total {
		e.Log.Info("backup progress", "round_id", roundID, "source", r.SourceDir, "dest", destDir,
			"files", fmt.Sprintf("%d/%d", done, total))
	}
}
