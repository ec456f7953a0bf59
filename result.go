package memsearch

import (
	"encoding/binary"
	"iter"
	"sort"

	"github.com/cespare/xxhash/v2"

	mserrors "github.com/tamirms/memsearch/errors"
	"github.com/tamirms/memsearch/internal/block"
)

// Result is the set of matching addresses after a capture or comparison,
// together with the memory snapshot that produced it.
//
// Blocks with no remaining matches are dropped; the rest are kept in
// ascending address order. A Result is not safe for concurrent mutation.
type Result struct {
	blocks []*block.SearchBlock
	layout layout
	count  uint64
}

// layout is the partition a result's blocks were cut from. Results with equal
// layouts have identical block bases for every address they share.
type layout struct {
	origin    Address
	valueSize ValueSize
	blockSize uint32
}

func newResult(blocks []*block.SearchBlock, l layout) *Result {
	r := &Result{blocks: blocks, layout: l}
	for _, b := range blocks {
		r.count += uint64(b.MatchingAddressCount())
	}
	return r
}

// Count returns the number of matching addresses.
func (r *Result) Count() uint64 { return r.count }

// Blocks returns the number of blocks that still hold matches.
func (r *Result) Blocks() int { return len(r.blocks) }

// ValueSize returns the value size the result was evaluated at.
func (r *Result) ValueSize() ValueSize { return r.layout.valueSize }

// Address returns the i-th matching address in ascending order.
func (r *Result) Address(i uint64) (Address, bool) {
	for _, b := range r.blocks {
		n := uint64(b.MatchingAddressCount())
		if i < n {
			return b.NthMatchingAddress(uint32(i))
		}
		i -= n
	}
	return 0, false
}

// All yields every matching address in ascending order.
func (r *Result) All() iter.Seq[Address] {
	return func(yield func(Address) bool) {
		for _, b := range r.blocks {
			for addr := range b.Matches() {
				if !yield(addr) {
					return
				}
			}
		}
	}
}

// find returns the index of the block whose candidate range holds addr, or -1.
func (r *Result) find(addr Address) int {
	i := sort.Search(len(r.blocks), func(i int) bool {
		return r.blocks[i].BaseAddress() > addr
	}) - 1
	if i < 0 || !r.blocks[i].ContainsAddress(addr) {
		return -1
	}
	return i
}

// Contains reports whether addr currently matches.
func (r *Result) Contains(addr Address) bool {
	i := r.find(addr)
	return i >= 0 && r.blocks[i].ContainsMatchingAddress(addr)
}

// Value returns the value at addr in the snapshot that produced this result.
// Returns false if addr is not a candidate of a retained block.
func (r *Result) Value(addr Address) (uint32, bool) {
	i := r.find(addr)
	if i < 0 {
		return 0, false
	}
	b := r.blocks[i]
	return r.layout.valueSize.read(b.Snapshot()[addr-b.BaseAddress():]), true
}

// Exclude removes addr from the matching set. Returns false if addr did not
// match.
func (r *Result) Exclude(addr Address) bool {
	i := r.find(addr)
	if i < 0 || !r.blocks[i].ContainsMatchingAddress(addr) {
		return false
	}
	b := r.blocks[i]
	b.ExcludeMatchingAddress(addr)
	r.count--
	if b.MatchingAddressCount() == 0 {
		b.Release()
		r.blocks = append(r.blocks[:i], r.blocks[i+1:]...)
	}
	return true
}

// Branch returns an independent copy that can be narrowed separately.
func (r *Result) Branch() *Result {
	blocks := make([]*block.SearchBlock, len(r.blocks))
	for i, b := range r.blocks {
		c := block.New(b.BaseAddress(), b.SnapshotLen(), b.MaxAddresses())
		copy(c.Snapshot(), b.Snapshot())
		c.CopyMatchingAddresses(b)
		blocks[i] = c
	}
	return newResult(blocks, r.layout)
}

// Intersect returns the addresses that match in both r and other, with r's
// snapshot. Both results must come from searches with the same region start,
// block size and value size; otherwise ErrLayoutMismatch is returned.
func (r *Result) Intersect(other *Result) (*Result, error) {
	if r.layout != other.layout {
		return nil, mserrors.ErrLayoutMismatch
	}

	var blocks []*block.SearchBlock
	var survivors []Address
	i, j := 0, 0
	for i < len(r.blocks) && j < len(other.blocks) {
		a, b := r.blocks[i], other.blocks[j]
		switch {
		case a.BaseAddress() < b.BaseAddress():
			i++
			continue
		case a.BaseAddress() > b.BaseAddress():
			j++
			continue
		}
		if !a.SameShape(b) {
			for _, blk := range blocks {
				blk.Release()
			}
			return nil, mserrors.ErrLayoutMismatch
		}

		bm := b.MatchingAddresses()
		survivors = survivors[:0]
		for addr := range a.Matches() {
			if a.HasMatchingAddress(bm, addr) {
				survivors = append(survivors, addr)
			}
		}
		if len(survivors) > 0 {
			c := a.Clone()
			c.SetMatchingAddresses(survivors, 0, len(survivors)-1)
			blocks = append(blocks, c)
		}
		i++
		j++
	}
	return newResult(blocks, r.layout), nil
}

// Digest returns the xxHash64 of the matching addresses in ascending order
// (4-byte little-endian each). Equal digests almost certainly mean equal
// matching sets.
func (r *Result) Digest() uint64 {
	h := xxhash.New()
	var buf [4]byte
	for addr := range r.All() {
		binary.LittleEndian.PutUint32(buf[:], uint32(addr))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// take moves every block into a new Result and leaves r empty.
func (r *Result) take() *Result {
	blocks := make([]*block.SearchBlock, len(r.blocks))
	for i, b := range r.blocks {
		blocks[i] = b.Move()
	}
	moved := newResult(blocks, r.layout)
	r.blocks = nil
	r.count = 0
	return moved
}

// Release drops all blocks. The result is empty afterwards.
func (r *Result) Release() {
	for _, b := range r.blocks {
		b.Release()
	}
	r.blocks = nil
	r.count = 0
}
