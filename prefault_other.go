//go:build !linux

package memsearch

// prefaultRegion is a no-op on non-Linux platforms. Pages of the read-only
// mapping fault in on first read instead, so only the first capture is slower.
func prefaultRegion(data []byte) {}
