package scanner

// ChangeSet is the result of diffing a freshly hashed file set against the
// previous round's file_hashes (spec.md §4.4 "Change detection").
type ChangeSet struct {
	// Changed holds relative paths that are new or whose content hash
	// differs from the previous round.
	Changed []string
	// Deleted holds relative paths that were hashed previously but are
	// absent from the current scan.
	Deleted []string
}

// Diff compares current (this round's freshly computed hashes) against
// previous (the prior round's file_hashes). A full round should pass a nil
// or empty previous map so every current file counts as changed.
func Diff(current, previous map[string]string) ChangeSet {
	var cs ChangeSet
	for path, hash := range current {
		if prevHash, ok := previous[path]; !ok || prevHash != hash {
			cs.Changed = append(cs.Changed, path)
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			cs.Deleted = append(cs.Deleted, path)
		}
	}
	return cs
}
