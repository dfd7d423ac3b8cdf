// Package incsum computes the deterministic "inc_checksum" used to detect
// on-disk tampering or corruption in an incremental snapshot directory
// (spec.md §4.6 step g, §4.5, §9 open question #2).
package incsum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ardiex/internal/hasher"
	"ardiex/internal/layout"
)

// ArtifactKind records how a changed file was stored inside an inc_*
// directory.
type ArtifactKind string

const (
	// KindCopy covers every artifact stored as a plain whole-file copy,
	// whether that's because the round is in copy mode or because delta
	// mode fell back to a whole file (spec.md §4.2: no prior version, or
	// the delta wasn't smaller). The two cases are indistinguishable on
	// disk, so they share one kind label to keep ScanDir's recomputation
	// independent of which mode wrote the artifact.
	KindCopy ArtifactKind = "copy"
	// KindDelta covers artifacts stored as a ".delta" block diff.
	KindDelta ArtifactKind = "delta"
)

// Artifact is one entry of the set the checksum is computed over.
type Artifact struct {
	RelPath string
	Kind    ArtifactKind
	SHA256  string // sha256 of the artifact's on-disk bytes
}

// Compute hashes a canonically-ordered serialization of artifacts: sorted
// lexicographically by RelPath (forward slashes), each entry contributing
// "relpath\x00kind\x00sha256\n" to the running hash. This is the stable
// order recommended by spec.md §9 open question #2, fixed so the result is
// independent of filesystem enumeration order and consistent cross-platform.
func Compute(artifacts []Artifact) string {
	sorted := make([]Artifact, len(artifacts))
	copy(sorted, artifacts)
	sort.Slice(sorted, func(i, j int) bool {
		return filepath.ToSlash(sorted[i].RelPath) < filepath.ToSlash(sorted[j].RelPath)
	})

	h := sha256.New()
	for _, a := range sorted {
		fmt.Fprintf(h, "%s\x00%s\x00%s\n", filepath.ToSlash(a.RelPath), a.Kind, a.SHA256)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ScanDir walks an inc_* directory and reconstructs the Artifact set,
// inferring Kind from the layout.DeltaSuffix naming convention. Used by the
// validator to recompute a checksum independently of what the engine wrote.
func ScanDir(incDir string) ([]Artifact, error) {
	var artifacts []Artifact
	err := filepath.WalkDir(incDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(incDir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		kind := KindCopy
		if strings.HasSuffix(rel, layout.DeltaSuffix) {
			kind = KindDelta
			rel = strings.TrimSuffix(rel, layout.DeltaSuffix)
		}

		sum, hashErr := hasher.HashFile(path)
		if hashErr != nil {
			return hashErr
		}
		artifacts = append(artifacts, Artifact{RelPath: rel, Kind: kind, SHA256: sum})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return artifacts, nil
}
