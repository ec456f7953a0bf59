//go:build !linux

package memsearch

// fadviseSequential is a no-op on non-Linux platforms. A read-only dump is
// correct without readahead hints; they only shorten the first capture.
func fadviseSequential(fd int, offset, length int64) {}
