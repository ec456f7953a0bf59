// Package block implements SearchBlock, the per-range candidate tracker of a
// memory search.
//
// A SearchBlock owns a raw snapshot of one contiguous sub-range of an emulated
// address space and records which candidate offsets in that range still match
// the active search. While every candidate matches, no bitmap exists; absence
// of a bitmap always means "everything matches", never "nothing matches".
//
// SearchBlock is not safe for concurrent use. Disjoint blocks share no state
// and may be processed in parallel.
//
// Contract violations (out-of-range addresses passed to mutators, mismatched
// block shapes, unsorted survivor lists) panic: they indicate a bug in the
// calling engine, not a runtime condition.
package block

import (
	"fmt"
	"iter"

	"github.com/tamirms/memsearch/internal/bits"
	"github.com/tamirms/memsearch/internal/smallbuf"
)

// Address is a position in the emulated address space.
type Address uint32

// String returns the hexadecimal representation of the address.
func (a Address) String() string {
	return fmt.Sprintf("0x%06X", uint32(a))
}

// SearchBlock tracks candidate addresses [base, base+maxAddresses).
//
// The resident size is fixed at 64 bytes regardless of range size: both the
// snapshot and the bitmap are stored inline when they fit smallbuf.InlineSize
// and on the heap otherwise, each decided independently.
//
// A SearchBlock must not be copied by value; use Clone or Move.
type SearchBlock struct {
	snapshot smallbuf.Buffer
	matching smallbuf.Buffer

	base          Address
	snapshotLen   uint32
	maxAddresses  uint32
	matchingCount uint32
}

// New creates a block whose snapshot covers snapshotLen bytes starting at base,
// of which the first maxAddresses offsets are candidates. The block starts with
// every candidate matching and no bitmap allocated.
//
// maxAddresses may be smaller than snapshotLen when the trailing bytes are only
// needed to read a full value at the last candidate offset.
func New(base Address, snapshotLen, maxAddresses uint32) *SearchBlock {
	if maxAddresses > snapshotLen {
		panic(fmt.Sprintf("block: candidate count %d exceeds snapshot length %d", maxAddresses, snapshotLen))
	}
	if uint64(base)+uint64(snapshotLen) > 1<<32 {
		panic(fmt.Sprintf("block: range %s+%d overflows the address space", base, snapshotLen))
	}

	b := &SearchBlock{
		base:          base,
		snapshotLen:   snapshotLen,
		maxAddresses:  maxAddresses,
		matchingCount: maxAddresses,
	}
	b.snapshot.Alloc(snapshotLen)
	return b
}

// BaseAddress returns the address of offset 0.
func (b *SearchBlock) BaseAddress() Address { return b.base }

// SnapshotLen returns the snapshot length in bytes.
func (b *SearchBlock) SnapshotLen() uint32 { return b.snapshotLen }

// MaxAddresses returns the number of candidate addresses.
func (b *SearchBlock) MaxAddresses() uint32 { return b.maxAddresses }

// Snapshot returns the raw snapshot bytes. The slice aliases the block; the
// engine overwrites it with fresh memory between passes.
func (b *SearchBlock) Snapshot() []byte {
	return b.snapshot.Bytes(b.snapshotLen)
}

// AllMatching reports whether the block is in the all-match state.
func (b *SearchBlock) AllMatching() bool {
	return b.matchingCount == b.maxAddresses
}

// SameShape reports whether o covers the same candidate range as b.
func (b *SearchBlock) SameShape(o *SearchBlock) bool {
	return b.base == o.base && b.maxAddresses == o.maxAddresses
}

func (b *SearchBlock) bitmapSize() uint32 {
	return bits.Size(b.maxAddresses)
}

// bitmap returns the live bitmap. Only valid outside the all-match state.
func (b *SearchBlock) bitmap() []byte {
	return b.matching.Bytes(b.bitmapSize())
}

func (b *SearchBlock) offset(addr Address) (uint32, bool) {
	if addr < b.base {
		return 0, false
	}
	off := uint32(addr - b.base)
	return off, off < b.maxAddresses
}

func (b *SearchBlock) mustOffset(addr Address) uint32 {
	off, ok := b.offset(addr)
	if !ok {
		panic(fmt.Sprintf("block: address %s outside block %s+%d", addr, b.base, b.maxAddresses))
	}
	return off
}

// ContainsAddress reports whether addr is a candidate address of the block.
func (b *SearchBlock) ContainsAddress(addr Address) bool {
	_, ok := b.offset(addr)
	return ok
}

// SetMatchingAddresses replaces the matching set with
// survivors[firstIndex:lastIndex+1]. lastIndex == firstIndex-1 selects an
// empty set.
//
// The survivors must be strictly ascending and inside the block. Under that
// contract a range as long as the candidate count enumerates every offset
// exactly once, so the block returns to the all-match state without building
// a bitmap.
func (b *SearchBlock) SetMatchingAddresses(survivors []Address, firstIndex, lastIndex int) {
	if firstIndex < 0 || lastIndex < firstIndex-1 || lastIndex >= len(survivors) {
		panic(fmt.Sprintf("block: survivor range [%d, %d] invalid for %d survivors", firstIndex, lastIndex, len(survivors)))
	}
	count := uint32(lastIndex - firstIndex + 1)
	if count > b.maxAddresses {
		panic(fmt.Sprintf("block: %d survivors exceed candidate count %d", count, b.maxAddresses))
	}

	selected := survivors[firstIndex : lastIndex+1]
	var prev uint32
	for i, addr := range selected {
		off := b.mustOffset(addr)
		if i > 0 && off <= prev {
			panic(fmt.Sprintf("block: survivor %s not strictly ascending", addr))
		}
		prev = off
	}

	// Validated; a panic above leaves the block unchanged.
	if count == b.maxAddresses {
		b.matching.Release()
	} else {
		b.matching.Alloc(b.bitmapSize())
		bm := b.bitmap()
		for _, addr := range selected {
			bits.Set(bm, uint32(addr-b.base))
		}
	}

	b.matchingCount = count
}

// CopyMatchingAddresses replaces the matching set of b with that of src.
// Both blocks must have the same candidate count.
func (b *SearchBlock) CopyMatchingAddresses(src *SearchBlock) {
	if src.maxAddresses != b.maxAddresses {
		panic(fmt.Sprintf("block: cannot copy matches from a block of %d candidates into one of %d",
			src.maxAddresses, b.maxAddresses))
	}
	if src == b {
		return
	}

	if src.AllMatching() {
		b.matching.Release()
		b.matchingCount = b.maxAddresses
		return
	}

	b.matching.Alloc(b.bitmapSize())
	copy(b.bitmap(), src.bitmap())
	b.matchingCount = src.matchingCount
}

// ExcludeMatchingAddress removes addr from the matching set. Excluding an
// address that no longer matches is a no-op.
func (b *SearchBlock) ExcludeMatchingAddress(addr Address) {
	off := b.mustOffset(addr)

	if b.AllMatching() {
		b.matching.Alloc(b.bitmapSize())
		bits.SetAll(b.bitmap(), b.maxAddresses)
	}

	if bits.Clear(b.bitmap(), off) {
		b.matchingCount--
	}
}

// ContainsMatchingAddress reports whether addr is a candidate that currently
// matches.
func (b *SearchBlock) ContainsMatchingAddress(addr Address) bool {
	off, ok := b.offset(addr)
	if !ok {
		return false
	}
	if b.AllMatching() {
		return true
	}
	return bits.Test(b.bitmap(), off)
}

// MatchingAddressPointer returns the live bitmap, or nil in the all-match
// state. Callers that modify the bitmap must report the new population with
// SetMatchingAddressCount.
func (b *SearchBlock) MatchingAddressPointer() []byte {
	if b.AllMatching() {
		return nil
	}
	return b.bitmap()
}

// Bitmap is a view of a block's matching set tagged with the shape of the
// block it came from. Nil Bits means every candidate matches.
type Bitmap struct {
	Base         Address
	MaxAddresses uint32
	Bits         []byte
}

// MatchingAddresses returns a shape-tagged view of the matching set that can
// be tested against another block of the same shape with HasMatchingAddress.
func (b *SearchBlock) MatchingAddresses() Bitmap {
	return Bitmap{
		Base:         b.base,
		MaxAddresses: b.maxAddresses,
		Bits:         b.MatchingAddressPointer(),
	}
}

// HasMatchingAddress tests addr against a bitmap taken from a block of the
// same shape as b, without materializing either block's all-match state.
// Out-of-range addresses never match. Panics if the shapes differ.
func (b *SearchBlock) HasMatchingAddress(bm Bitmap, addr Address) bool {
	if bm.Base != b.base || bm.MaxAddresses != b.maxAddresses {
		panic(fmt.Sprintf("block: bitmap of %s+%d tested against block %s+%d",
			bm.Base, bm.MaxAddresses, b.base, b.maxAddresses))
	}
	off, ok := b.offset(addr)
	if !ok {
		return false
	}
	if bm.Bits == nil {
		return true
	}
	return bits.Test(bm.Bits, off)
}

// MatchingAddressCount returns the number of matching addresses.
func (b *SearchBlock) MatchingAddressCount() uint32 {
	return b.matchingCount
}

// SetMatchingAddressCount records the population of a bitmap that the caller
// edited through MatchingAddressPointer. Setting n to the candidate count
// returns the block to the all-match state and drops the bitmap.
func (b *SearchBlock) SetMatchingAddressCount(n uint32) {
	if n > b.maxAddresses {
		panic(fmt.Sprintf("block: count %d exceeds candidate count %d", n, b.maxAddresses))
	}
	if n == b.maxAddresses {
		b.matching.Release()
	} else if b.AllMatching() {
		panic("block: count lowered without a materialized bitmap")
	}
	b.matchingCount = n
}

// NthMatchingAddress returns the index-th matching address in ascending order.
// Returns false if index is not below MatchingAddressCount.
func (b *SearchBlock) NthMatchingAddress(index uint32) (Address, bool) {
	if index >= b.matchingCount {
		return 0, false
	}
	if b.AllMatching() {
		return b.base + Address(index), true
	}
	off, ok := bits.NthSet(b.bitmap(), index)
	if !ok {
		return 0, false
	}
	return b.base + Address(off), true
}

// Matches yields the matching addresses in ascending order.
// The block must not be mutated during iteration.
func (b *SearchBlock) Matches() iter.Seq[Address] {
	return func(yield func(Address) bool) {
		if b.AllMatching() {
			for off := range b.maxAddresses {
				if !yield(b.base + Address(off)) {
					return
				}
			}
			return
		}

		bm := b.bitmap()
		for off, ok := bits.NextSet(bm, 0); ok; off, ok = bits.NextSet(bm, off+1) {
			if !yield(b.base + Address(off)) {
				return
			}
		}
	}
}

// Clone returns an independent block with the same snapshot and matching set.
// An all-match source yields an all-match clone with no bitmap.
func (b *SearchBlock) Clone() *SearchBlock {
	c := &SearchBlock{
		base:          b.base,
		snapshotLen:   b.snapshotLen,
		maxAddresses:  b.maxAddresses,
		matchingCount: b.matchingCount,
	}
	c.snapshot.CloneFrom(&b.snapshot, b.snapshotLen)
	if !b.AllMatching() {
		c.matching.CloneFrom(&b.matching, b.bitmapSize())
	}
	return c
}

// Move transfers both buffers to a new block and leaves b empty: zero length,
// no candidates, no owned storage.
func (b *SearchBlock) Move() *SearchBlock {
	m := &SearchBlock{
		base:          b.base,
		snapshotLen:   b.snapshotLen,
		maxAddresses:  b.maxAddresses,
		matchingCount: b.matchingCount,
	}
	m.snapshot.MoveFrom(&b.snapshot)
	m.matching.MoveFrom(&b.matching)
	b.Release()
	return m
}

// Release drops the block's buffers and leaves it empty. Releasing an empty
// block is a no-op.
func (b *SearchBlock) Release() {
	*b = SearchBlock{}
}
