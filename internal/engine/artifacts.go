package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"ardiex/internal/apperr"
	"ardiex/internal/chain"
	"ardiex/internal/config"
	"ardiex/internal/deltacodec"
	"ardiex/internal/hasher"
	"ardiex/internal/incsum"
	"ardiex/internal/layout"
	"ardiex/internal/metadata"
	"ardiex/internal/scanner"
)

type roundPlan struct {
	filesCount int
	bytes      int64
	artifacts  []incsum.Artifact
	// failed holds relative paths whose artifact write failed; the caller
	// preserves their previous hash rather than treating them as backed up
	// (spec.md §4.6 failure semantics: a per-file failure degrades to
	// "skipped" with Warn, not an aborted round).
	failed []string
}

// writeRound materializes toProcess into roundDir, choosing copy or delta
// per spec.md §4.2, and returns a summary plus the per-file results needed
// for the inc_checksum and for preserving hashes of skipped files.
func (e *Engine) writeRound(ctx context.Context, r config.Resolved, doc *metadata.SourceMetadata, destDir, roundDir string, toProcess []scanner.Entry, backupType metadata.BackupType, roundName string) roundPlan {
	var plan roundPlan
	useDelta := r.BackupMode == config.ModeDelta && backupType == metadata.Incremental

	for _, entry := range toProcess {
		if e.Limiter != nil {
			n := int(entry.Size)
			if n > e.Limiter.Burst() {
				n = e.Limiter.Burst()
			}
			if n > 0 {
				if err := e.Limiter.WaitN(ctx, n); err != nil {
					plan.failed = append(plan.failed, entry.RelPath)
					continue
				}
			}
		}

		destPath := filepath.Join(roundDir, entry.RelPath)
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			e.Log.Warn("skipping file: cannot create directory", "file", entry.RelPath, "error", err)
			plan.failed = append(plan.failed, entry.RelPath)
			continue
		}

		var (
			kind    incsum.ArtifactKind
			size    int64
			sha     string
			wroteAt string
			err     error
		)
		if useDelta {
			kind, size, sha, wroteAt, err = e.writeDeltaOrWhole(destDir, doc, entry, destPath)
		} else {
			kind, size, sha, wroteAt, err = writeCopy(entry, destPath)
		}
		if err != nil {
			e.Log.Warn("skipping file: artifact write failed", "file", entry.RelPath, "error", err)
			plan.failed = append(plan.failed, entry.RelPath)
			continue
		}
		_ = wroteAt
		plan.filesCount++
		plan.bytes += size
		plan.artifacts = append(plan.artifacts, incsum.Artifact{RelPath: entry.RelPath, Kind: kind, SHA256: sha})
	}
	return plan
}

func writeCopy(entry scanner.Entry, destPath string) (incsum.ArtifactKind, int64, string, string, error) {
	src, err := os.Open(entry.AbsPath)
	if err != nil {
		return "", 0, "", "", apperr.New(apperr.Io, "engine.copy", err).WithSource(entry.AbsPath)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return "", 0, "", "", apperr.New(apperr.Io, "engine.copy", err).WithDestination(destPath)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return "", 0, "", "", apperr.New(apperr.Io, "engine.copy", err).WithDestination(destPath)
	}
	sha, err := hasher.HashFile(destPath)
	if err != nil {
		return "", 0, "", "", err
	}
	return incsum.KindCopy, n, sha, destPath, nil
}

// writeDeltaOrWhole implements spec.md §4.2's delta-vs-copy decision: no
// prior version anywhere in the chain means write whole; otherwise diff
// against the latest materialized version, and discard the delta (writing
// whole instead) unless its serialized size is below half the current
// file's size.
func (e *Engine) writeDeltaOrWhole(destDir string, doc *metadata.SourceMetadata, entry scanner.Entry, destPath string) (incsum.ArtifactKind, int64, string, string, error) {
	previous, ok, err := chain.LatestFileBytes(destDir, doc.BackupHistory, len(doc.BackupHistory)-1, entry.RelPath)
	if err != nil {
		e.Log.Warn("delta base lookup failed, writing whole file", "file", entry.RelPath, "error", err)
		ok = false
	}
	if !ok {
		return writeCopy(entry, destPath)
	}

	current, err := os.ReadFile(entry.AbsPath)
	if err != nil {
		return "", 0, "", "", apperr.New(apperr.Io, "engine.delta", err).WithSource(entry.AbsPath)
	}

	delta, err := deltacodec.CreateBytes(previous, current)
	if err != nil {
		return "", 0, "", "", err
	}
	deltaSize, err := deltacodec.SerializedSize(delta)
	if err != nil {
		return "", 0, "", "", err
	}
	if deltaSize >= int64(float64(len(current))*0.5) || len(current) == 0 {
		return writeCopy(entry, destPath)
	}

	deltaPath := destPath + layout.DeltaSuffix
	if err := deltacodec.SaveFile(deltaPath, delta); err != nil {
		return "", 0, "", "", err
	}
	sha, err := hasher.HashFile(deltaPath)
	if err != nil {
		return "", 0, "", "", err
	}
	return incsum.KindDelta, deltaSize, sha, deltaPath, nil
}
