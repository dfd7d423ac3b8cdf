//go:build linux || darwin || freebsd

package diskspace

import "syscall"

// Statfs reports free space for path's filesystem using statfs(2).
func Statfs(path string) (*Check, error) {
	abs := absOrSelf(path)
	var stat syscall.Statfs_t
	if err := syscall.Statfs(abs, &stat); err != nil {
		return nil, err
	}
	total := uint64(stat.Blocks) * uint64(stat.Bsize)
	available := uint64(stat.Bavail) * uint64(stat.Bsize)
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
