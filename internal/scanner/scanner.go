// Package scanner walks a source directory, applies exclude patterns, and
// hashes the resulting file set (spec.md §4.4).
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"ardiex/internal/apperr"
	"ardiex/internal/hasher"
)

// Entry is one non-excluded file found under a source directory.
type Entry struct {
	RelPath  string // forward-slash-separated, relative to source_dir
	AbsPath  string
	Size     int64
}

// Scan recursively enumerates sourceDir, skipping anything matched by
// exclude. Symlinks to files are followed (their target's content is
// hashed); symlinks to directories are not traversed, to avoid cycles.
// Results are sorted by RelPath for deterministic output.
func Scan(sourceDir string, exclude *Matcher) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return apperr.New(apperr.Io, "scanner.scan", err).WithSource(sourceDir)
		}
		if path == sourceDir {
			return nil
		}

		rel, relErr := filepath.Rel(sourceDir, path)
		if relErr != nil {
			return apperr.New(apperr.Io, "scanner.scan", relErr).WithSource(sourceDir)
		}
		rel = filepath.ToSlash(rel)

		if exclude.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return apperr.New(apperr.Io, "scanner.scan", infoErr).WithSource(path)
		}

		if d.IsDir() {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, statErr := os.Stat(path)
			if statErr != nil {
				// Broken symlink: skip it, it's neither a file nor a directory.
				return nil
			}
			if target.IsDir() {
				return nil
			}
			entries = append(entries, Entry{RelPath: rel, AbsPath: path, Size: target.Size()})
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		entries = append(entries, Entry{RelPath: rel, AbsPath: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })
	return entries, nil
}

// HashAll computes the SHA-256 of every entry's content, returning a map
// keyed by RelPath.
func HashAll(entries []Entry) (map[string]string, error) {
	hashes := make(map[string]string, len(entries))
	for _, e := range entries {
		h, err := hasher.HashFile(e.AbsPath)
		if err != nil {
			return nil, err
		}
		hashes[e.RelPath] = h
	}
	return hashes, nil
}
