// Package diskspace checks free space on a backup destination's filesystem
// before a round starts, so a round that would fail partway through running
// out of disk degrades to a clean abort instead (spec.md's resource-guard
// supplement; adapted from the teacher's internal/checks disk_check*.go
// platform dispatch).
package diskspace

import "path/filepath"

// Check is one filesystem's space snapshot.
type Check struct {
	Path           string
	TotalBytes     uint64
	AvailableBytes uint64
	UsedBytes      uint64
	UsedPercent    float64
}

// HasHeadroom reports whether at least requiredBytes plus a safety margin
// (10% of requiredBytes, minimum 64MiB) is available.
func (c *Check) HasHeadroom(requiredBytes int64) bool {
	margin := uint64(requiredBytes) / 10
	const minMargin = 64 << 20
	if margin < minMargin {
		margin = minMargin
	}
	return c.AvailableBytes >= uint64(requiredBytes)+margin
}

func absOrSelf(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
