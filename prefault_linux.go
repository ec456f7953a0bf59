//go:build linux

package memsearch

import "golang.org/x/sys/unix"

// MADV_POPULATE_READ was added in Linux 5.14.
// On older kernels, madvise returns EINVAL which we ignore.
const madvPopulateRead = 22

// prefaultRegion asks the kernel to fault in a read-only mapping up front so
// the first capture pass does not stall on page faults.
// Best-effort: ignore all errors (EINVAL on old kernels, or other failures)
func prefaultRegion(data []byte) {
	if len(data) == 0 {
		return
	}
	if err := unix.Madvise(data, madvPopulateRead); err != nil {
		_ = unix.Madvise(data, unix.MADV_WILLNEED)
	}
}
