// Package bits provides bit-level primitives over byte-addressed bitmaps.
//
// Bit i lives in byte i>>3 under mask 1<<(i&7). Bits past the logical length
// of a bitmap are kept clear by every writer in this package, so scans never
// report an offset beyond it.
package bits

import (
	"encoding/binary"
	"math/bits"
)

// Size returns the number of bytes needed to hold n bits.
func Size(n uint32) uint32 {
	return (n + 7) >> 3
}

// Test reports whether bit i is set.
func Test(bm []byte, i uint32) bool {
	return bm[i>>3]&(1<<(i&7)) != 0
}

// Set sets bit i.
func Set(bm []byte, i uint32) {
	bm[i>>3] |= 1 << (i & 7)
}

// Clear clears bit i and reports whether it was previously set.
func Clear(bm []byte, i uint32) bool {
	mask := byte(1) << (i & 7)
	idx := i >> 3
	if bm[idx]&mask == 0 {
		return false
	}
	bm[idx] &^= mask
	return true
}

// SetAll sets bits [0, n) and clears every remaining bit of bm.
func SetAll(bm []byte, n uint32) {
	full := n >> 3
	for i := range full {
		bm[i] = 0xFF
	}
	if rem := n & 7; rem != 0 {
		bm[full] = byte(1)<<rem - 1
		full++
	}
	clear(bm[full:])
}

// Count returns the number of set bits.
func Count(bm []byte) uint32 {
	var n int
	i := 0
	for ; i+8 <= len(bm); i += 8 {
		n += bits.OnesCount64(binary.LittleEndian.Uint64(bm[i:]))
	}
	for ; i < len(bm); i++ {
		n += bits.OnesCount8(bm[i])
	}
	return uint32(n)
}

// NthSet returns the offset of the n-th (0-based) set bit in ascending order.
// Returns false if fewer than n+1 bits are set.
//
// Zero runs are skipped eight bytes at a time, then one byte at a time; a
// non-zero byte that cannot contain the target is skipped by popcount. Only the
// byte holding the answer is walked mask by mask.
func NthSet(bm []byte, n uint32) (uint32, bool) {
	idx := 0
	for idx < len(bm) {
		if idx+8 <= len(bm) && binary.LittleEndian.Uint64(bm[idx:]) == 0 {
			idx += 8
			continue
		}

		v := bm[idx]
		if v == 0 {
			idx++
			continue
		}

		c := uint32(bits.OnesCount8(v))
		if n >= c {
			n -= c
			idx++
			continue
		}

		bit := uint32(0)
		for mask := byte(1); mask != 0; mask <<= 1 {
			if v&mask != 0 {
				if n == 0 {
					return uint32(idx)<<3 | bit, true
				}
				n--
			}
			bit++
		}
	}
	return 0, false
}

// NextSet returns the offset of the first set bit at or after from.
// Returns false if there is none.
func NextSet(bm []byte, from uint32) (uint32, bool) {
	idx := int(from >> 3)
	if idx >= len(bm) {
		return 0, false
	}

	if v := bm[idx] & (0xFF << (from & 7)); v != 0 {
		return uint32(idx)<<3 | uint32(bits.TrailingZeros8(v)), true
	}
	idx++

	for ; idx+8 <= len(bm); idx += 8 {
		if w := binary.LittleEndian.Uint64(bm[idx:]); w != 0 {
			return uint32(idx)<<3 + uint32(bits.TrailingZeros64(w)), true
		}
	}
	for ; idx < len(bm); idx++ {
		if v := bm[idx]; v != 0 {
			return uint32(idx)<<3 | uint32(bits.TrailingZeros8(v)), true
		}
	}
	return 0, false
}
