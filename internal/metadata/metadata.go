// Package metadata is the per-source, per-destination ledger that makes a
// backup chain verifiable: it tracks the current file-hash map and the
// ordered history of full/incremental rounds (spec.md §4.3).
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/renameio/v2"
)

// BackupType distinguishes a full snapshot from an incremental one.
type BackupType string

const (
	Full        BackupType = "full"
	Incremental BackupType = "inc"
)

// HistoryEntry records one completed round for a destination.
type HistoryEntry struct {
	BackupName     string     `json:"backup_name"`
	BackupType     BackupType `json:"backup_type"`
	CreatedAt      time.Time  `json:"created_at"`
	FilesBackedUp  int        `json:"files_backed_up"`
	BytesProcessed int64      `json:"bytes_processed"`
	// IncChecksum is set only for Incremental entries: sha256 over the
	// canonical snapshot of the inc_* directory (spec.md §4.6 step g).
	IncChecksum string `json:"inc_checksum,omitempty"`
}

// SourceMetadata is the document persisted as metadata.json inside one
// destination directory. It is scoped per destination: the same source may
// have divergent chains across destinations once one is pruned or reset.
type SourceMetadata struct {
	LastFullBackup time.Time         `json:"last_full_backup"`
	LastBackup     time.Time         `json:"last_backup"`
	FileHashes     map[string]string `json:"file_hashes"`
	BackupHistory  []HistoryEntry    `json:"backup_history"`
}

// New returns an empty SourceMetadata ready for a destination's first round.
func New() *SourceMetadata {
	return &SourceMetadata{FileHashes: map[string]string{}}
}

// Load reads a destination's metadata.json. A missing file is not an
// error: it returns a fresh, empty SourceMetadata, matching the lifecycle
// rule in spec.md §3 ("metadata is created on the first successful backup
// of a source").
func Load(path string) (*SourceMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to read metadata file %s: %w", path, err)
	}
	m := New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata at %s: %w", path, err)
	}
	if m.FileHashes == nil {
		m.FileHashes = map[string]string{}
	}
	return m, nil
}

// Save persists m to path atomically (write-temp + rename), matching
// spec.md §4.3 ("written atomically ... at the end of each successful
// round") and the teacher's encryption.go rename idiom, generalized via
// renameio.
func Save(path string, m *SourceMetadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file %s: %w", path, err)
	}
	return nil
}

// UpsertHistory appends entry to the history, keeping the total order by
// CreatedAt (spec.md invariant: "backup_history is totally ordered by
// created_at").
func (m *SourceMetadata) UpsertHistory(entry HistoryEntry) {
	m.BackupHistory = append(m.BackupHistory, entry)
	sort.SliceStable(m.BackupHistory, func(i, j int) bool {
		return m.BackupHistory[i].CreatedAt.Before(m.BackupHistory[j].CreatedAt)
	})
}

// ReplaceHashes swaps the file-hash map wholesale; the engine computes the
// full replacement set (adds, updates, and deletions already applied) and
// calls this once per round.
func (m *SourceMetadata) ReplaceHashes(hashes map[string]string) {
	m.FileHashes = hashes
}

// LatestFullIndex returns the index into BackupHistory of the most recent
// Full entry, or -1 if there is none yet.
func (m *SourceMetadata) LatestFullIndex() int {
	for i := len(m.BackupHistory) - 1; i >= 0; i-- {
		if m.BackupHistory[i].BackupType == Full {
			return i
		}
	}
	return -1
}

// IncrementalsSinceLastFull counts inc entries after the most recent full,
// used by the validator's auto-interval check (spec.md §4.5).
func (m *SourceMetadata) IncrementalsSinceLastFull() int {
	idx := m.LatestFullIndex()
	if idx < 0 {
		return 0
	}
	count := 0
	for _, e := range m.BackupHistory[idx+1:] {
		if e.BackupType == Incremental {
			count++
		}
	}
	return count
}

// EvictOldestChain removes the oldest full entry together with every
// incremental that depends on it (every entry up to, not including, the
// next full), applying spec.md §4.6.1's retention rule. Returns the removed
// backup names so the caller can delete the corresponding directories.
func (m *SourceMetadata) EvictOldestChain() []string {
	if len(m.BackupHistory) == 0 || m.BackupHistory[0].BackupType != Full {
		return nil
	}
	end := 1
	for end < len(m.BackupHistory) && m.BackupHistory[end].BackupType != Full {
		end++
	}
	removed := make([]string, 0, end)
	for _, e := range m.BackupHistory[:end] {
		removed = append(removed, e.BackupName)
	}
	m.BackupHistory = m.BackupHistory[end:]
	return removed
}
