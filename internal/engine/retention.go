package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"ardiex/internal/metadata"
)

// ApplyRetention evicts whole full+incremental chains from the oldest end of
// doc.BackupHistory until at most maxBackups entries remain in total (spec.md
// §4.6.1: "count(entries in history) > max_backups"), physically removing
// each evicted round's directory under destDir. It mutates doc in place; the
// caller is responsible for persisting the metadata afterward.
func ApplyRetention(doc *metadata.SourceMetadata, destDir string, maxBackups int) ([]string, error) {
	var removed []string
	for len(doc.BackupHistory) > maxBackups {
		names := doc.EvictOldestChain()
		if len(names) == 0 {
			break
		}
		for _, name := range names {
			if err := os.RemoveAll(filepath.Join(destDir, name)); err != nil {
				return removed, fmt.Errorf("failed to remove evicted backup %s: %w", name, err)
			}
		}
		removed = append(removed, names...)
	}
	return removed, nil
}
