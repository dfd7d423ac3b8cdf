//go:build windows

package diskspace

import (
	"path/filepath"
	"syscall"
	"unsafe"
)

var (
	kernel32           = syscall.NewLazyDLL("kernel32.dll")
	getDiskFreeSpaceEx = kernel32.NewProc("GetDiskFreeSpaceExW")
)

// Statfs reports free space for path's volume via GetDiskFreeSpaceExW.
func Statfs(path string) (*Check, error) {
	abs := absOrSelf(path)
	vol := filepath.VolumeName(abs)
	if vol == "" {
		vol = "."
	}

	var freeAvailable, total, totalFree uint64
	pathPtr, err := syscall.UTF16PtrFromString(vol)
	if err != nil {
		return nil, err
	}
	ret, _, callErr := getDiskFreeSpaceEx.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeAvailable)),
		uintptr(unsafe.Pointer(&total)),
		uintptr(unsafe.Pointer(&totalFree)))
	if ret == 0 {
		return nil, callErr
	}

	used := total - totalFree
	var usedPct float64
	if total > 0 {
		usedPct = float64(used) / float64(total) * 100
	}
	return &Check{
		Path:           abs,
		TotalBytes:     total,
		AvailableBytes: freeAvailable,
		UsedBytes:      used,
		UsedPercent:    usedPct,
	}, nil
}
