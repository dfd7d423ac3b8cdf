//go:build openbsd

package diskspace

import "syscall"

// Statfs reports free space for path's filesystem (OpenBSD's Statfs_t uses
// F_-prefixed field names, unlike Linux/Darwin).
func Statfs(path string) (*Check, error) {
	abs := absOrSelf(path)
	var stat syscall.Statfs_t
	if err := syscall.Statfs(abs, &stat); err != nil {
		return nil, err
	}
	total := uint64(stat.F_blocks) * uint64(stat.F_bsize)
	available := uint64(stat.F_bavail) * uint64(stat.F_bsize)
	used := total - available
	var usedPct float64
	if total > 0 {
		usedPct = float64(used) / float64(total) * 100
	}
	return &Check{
		Path:           abs,
		TotalBytes:     total,
		AvailableBytes: available,
		UsedBytes:      used,
		UsedPercent:    usedPct,
	}, nil
}
