// Package smallbuf provides a fixed-footprint byte buffer that keeps small
// payloads inline and moves larger ones to the heap.
//
// A Buffer does not record its own length. The owner passes the same length
// to every call for the lifetime of the allocation; this keeps the resident
// footprint at one pointer plus InlineSize bytes regardless of payload size.
//
// A Buffer must not be copied by value once allocated: a copy would alias the
// heap allocation. Use CloneFrom or MoveFrom instead.
package smallbuf

import "unsafe"

// InlineSize is the largest payload stored without a heap allocation.
const InlineSize = 16

// Buffer holds either an inline array or a pointer to a heap allocation.
// heap == nil selects the inline array.
type Buffer struct {
	heap   *byte
	inline [InlineSize]byte
}

// IsInline reports whether a buffer of n bytes lives in the inline array.
func IsInline(n uint32) bool {
	return n <= InlineSize
}

// Alloc prepares zeroed storage for n bytes.
// An existing heap allocation is reused, so n must match the previous call.
func (b *Buffer) Alloc(n uint32) {
	if IsInline(n) {
		b.heap = nil
		clear(b.inline[:])
		return
	}
	if b.heap != nil {
		clear(unsafe.Slice(b.heap, n))
		return
	}
	s := make([]byte, n)
	b.heap = &s[0]
}

// Bytes returns the live n-byte view of the buffer.
// The view aliases the buffer; writes through it are visible to later calls.
func (b *Buffer) Bytes(n uint32) []byte {
	if IsInline(n) {
		return b.inline[:n:n]
	}
	if b.heap == nil {
		panic("smallbuf: Bytes on unallocated heap buffer")
	}
	return unsafe.Slice(b.heap, n)
}

// Allocated reports whether a heap allocation is held.
func (b *Buffer) Allocated() bool {
	return b.heap != nil
}

// CloneFrom replaces b with an independent copy of the first n bytes of src.
func (b *Buffer) CloneFrom(src *Buffer, n uint32) {
	if IsInline(n) {
		b.heap = nil
		b.inline = src.inline
		return
	}
	s := make([]byte, n)
	copy(s, src.Bytes(n))
	b.heap = &s[0]
}

// MoveFrom transfers ownership of src's storage to b and leaves src empty.
// No heap bytes are copied.
func (b *Buffer) MoveFrom(src *Buffer) {
	b.heap = src.heap
	b.inline = src.inline
	src.Release()
}

// Release drops any heap allocation and zeroes the inline array.
func (b *Buffer) Release() {
	b.heap = nil
	clear(b.inline[:])
}
