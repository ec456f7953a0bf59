// Package encoding reads and writes fixed-width unsigned values in raw
// memory snapshots.
//
// Widths are 1 to 4 bytes. Callers guarantee len(buf) >= size; the sizes 1, 2
// and 4 take a single-load path, 3 falls back to a byte loop.
package encoding

import "encoding/binary"

// MaxSize is the widest supported value in bytes.
const MaxSize = 4

// ReadLE reads a little-endian value of size bytes from buf.
// Panics for sizes outside [1, MaxSize].
func ReadLE(buf []byte, size int) uint32 {
	switch size {
	case 1:
		return uint32(buf[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(buf))
	case 4:
		return binary.LittleEndian.Uint32(buf)
	case 3:
		_ = buf[2]
		return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16
	default:
		panic("encoding: ReadLE: unsupported size")
	}
}

// ReadBE reads a big-endian value of size bytes from buf.
// Panics for sizes outside [1, MaxSize].
func ReadBE(buf []byte, size int) uint32 {
	switch size {
	case 1:
		return uint32(buf[0])
	case 2:
		return uint32(binary.BigEndian.Uint16(buf))
	case 4:
		return binary.BigEndian.Uint32(buf)
	case 3:
		_ = buf[2]
		return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
	default:
		panic("encoding: ReadBE: unsupported size")
	}
}

// PutLE writes the low size bytes of v to buf in little-endian order.
func PutLE(buf []byte, size int, v uint32) {
	if size < 1 || size > MaxSize {
		panic("encoding: PutLE: unsupported size")
	}
	_ = buf[size-1]
	for i := range size {
		buf[i] = byte(v >> (i * 8))
	}
}

// PutBE writes the low size bytes of v to buf in big-endian order.
func PutBE(buf []byte, size int, v uint32) {
	if size < 1 || size > MaxSize {
		panic("encoding: PutBE: unsupported size")
	}
	_ = buf[size-1]
	for i := range size {
		buf[size-1-i] = byte(v >> (i * 8))
	}
}

// Mask returns the largest value representable in size bytes.
func Mask(size int) uint32 {
	if size >= MaxSize {
		return 0xFFFFFFFF
	}
	return uint32(1)<<(size*8) - 1
}
