//go:build linux

package memsearch

import "golang.org/x/sys/unix"

// fadviseSequential hints to the kernel that the dump will be read front to
// back. Applied before the dump is mapped.
// Best-effort: errors are silently ignored.
func fadviseSequential(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_SEQUENTIAL)
}
