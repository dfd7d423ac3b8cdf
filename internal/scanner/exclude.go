package scanner

import (
	"runtime"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher compiles a source or source+global exclude pattern list once and
// tests candidate paths against it. A path is excluded if any pattern
// matches either the full relative path or any single path segment
// (spec.md §4.4), case-sensitive on POSIX and case-insensitive on Windows.
type Matcher struct {
	globs         []glob.Glob
	caseInsensitive bool
}

// NewMatcher compiles patterns. `**` crosses path separators; `*` and `?`
// do not.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{caseInsensitive: runtime.GOOS == "windows"}
	for _, p := range patterns {
		compiled, err := glob.Compile(m.normalize(p), '/')
		if err != nil {
			return nil, err
		}
		m.globs = append(m.globs, compiled)
	}
	return m, nil
}

func (m *Matcher) normalize(s string) string {
	if m.caseInsensitive {
		return strings.ToLower(s)
	}
	return s
}

// Match reports whether relPath (forward-slash separated) should be
// excluded.
func (m *Matcher) Match(relPath string) bool {
	if len(m.globs) == 0 {
		return false
	}
	candidate := m.normalize(relPath)

	for _, g := range m.globs {
		if g.Match(candidate) {
			return true
		}
	}

	for _, segment := range strings.Split(candidate, "/") {
		if segment == "" {
			continue
		}
		for _, g := range m.globs {
			if g.Match(segment) {
				return true
			}
		}
	}
	return false
}
