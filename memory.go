package memsearch

import (
	"fmt"

	mserrors "github.com/tamirms/memsearch/errors"
)

// MemoryReader is the emulator memory boundary. ReadMemory fills buf with the
// bytes at [addr, addr+len(buf)) or returns an error. Implementations used by
// parallel searches must allow concurrent reads.
type MemoryReader interface {
	ReadMemory(addr Address, buf []byte) error
}

// Memory is a MemoryReader over an in-memory byte slice mapped at a base
// address. The caller must not modify data while a pass is reading it.
type Memory struct {
	base Address
	data []byte
}

// NewMemory maps data at base.
func NewMemory(base Address, data []byte) *Memory {
	return &Memory{base: base, data: data}
}

// Base returns the address of data[0].
func (m *Memory) Base() Address { return m.base }

// Len returns the mapped length in bytes.
func (m *Memory) Len() int { return len(m.data) }

// Bytes returns the backing slice.
func (m *Memory) Bytes() []byte { return m.data }

// ReadMemory implements MemoryReader.
func (m *Memory) ReadMemory(addr Address, buf []byte) error {
	if addr < m.base || uint64(addr-m.base)+uint64(len(buf)) > uint64(len(m.data)) {
		return fmt.Errorf("%w: %s+%d", mserrors.ErrAddressNotMapped, addr, len(buf))
	}
	copy(buf, m.data[addr-m.base:])
	return nil
}
