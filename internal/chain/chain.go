// Package chain reconstructs a single file's latest materialized content as
// of a point in a destination's backup history, by walking backward through
// full/incremental snapshot directories and replaying deltas. It is the
// shared primitive behind the engine's delta basis (what does this file
// look like right now, before this round writes a new version?) and the
// validator's delta-chain integrity check (spec.md §4.5, §9 open question
// #4: "each .delta patches the latest materialized version ... as of the
// preceding snapshot").
package chain

import (
	"os"
	"path/filepath"

	"ardiex/internal/apperr"
	"ardiex/internal/deltacodec"
	"ardiex/internal/layout"
	"ardiex/internal/metadata"
)

// LatestFileBytes returns relPath's content as of history[0:upto+1] (the
// most recent entry considered is history[upto]), or ok=false if the file
// has no recorded version in that prefix of history. destDir is the
// containing destination directory; entry directories are
// destDir/<entry.BackupName>.
func LatestFileBytes(destDir string, history []metadata.HistoryEntry, upto int, relPath string) (data []byte, ok bool, err error) {
	for i := upto; i >= 0; i-- {
		entry := history[i]
		dir := filepath.Join(destDir, entry.BackupName)
		deltaPath := filepath.Join(dir, relPath+layout.DeltaSuffix)
		copyPath := filepath.Join(dir, relPath)

		if _, statErr := os.Stat(deltaPath); statErr == nil {
			base, baseOK, baseErr := LatestFileBytes(destDir, history, i-1, relPath)
			if baseErr != nil {
				return nil, false, baseErr
			}
			if !baseOK {
				return nil, false, apperr.New(apperr.Corrupt, "chain.latest_file_bytes",
					errMissingDeltaBase).WithDestination(deltaPath)
			}
			delta, loadErr := deltacodec.LoadFile(deltaPath)
			if loadErr != nil {
				return nil, false, loadErr
			}
			result, applyErr := deltacodec.ApplyBytes(base, delta)
			if applyErr != nil {
				return nil, false, applyErr
			}
			return result, true, nil
		}

		if _, statErr := os.Stat(copyPath); statErr == nil {
			data, readErr := os.ReadFile(copyPath)
			if readErr != nil {
				return nil, false, apperr.New(apperr.Io, "chain.latest_file_bytes", readErr).WithDestination(copyPath)
			}
			return data, true, nil
		}

		if entry.BackupType == metadata.Full {
			// A full snapshot records every file present at that time;
			// absence here means the file didn't exist yet.
			return nil, false, nil
		}
		// Unchanged this round: keep walking backward.
	}
	return nil, false, nil
}
