package memsearch

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
	"github.com/zeebo/xxh3"

	mserrors "github.com/tamirms/memsearch/errors"
)

// Dump is a read-only memory-mapped memory dump mapped at a base address.
//
// Thread Safety:
// - ReadMemory, Fingerprint and the accessors are safe for concurrent use
// - Close is NOT safe to call concurrently with reads
// - After Close returns, ReadMemory returns ErrDumpClosed
type Dump struct {
	mmap mmap.MMap
	mem  Memory

	closed atomic.Bool
}

// OpenDump opens a dump file, memory-maps it, and closes the file descriptor.
func OpenDump(path string, base Address) (*Dump, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump file: %w", err)
	}
	defer file.Close()
	return OpenDumpFile(file, base)
}

// OpenDumpFile memory-maps the given file at base.
// The caller is responsible for closing f. Per POSIX mmap(2), f may be
// closed immediately after OpenDumpFile returns.
func OpenDumpFile(f *os.File, base Address) (*Dump, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat dump file: %w", err)
	}
	size := stat.Size()
	if size == 0 {
		return nil, mserrors.ErrTruncatedDump
	}
	if uint64(base)+uint64(size) > 1<<32 {
		return nil, mserrors.ErrRegionTooLarge
	}

	fadviseSequential(int(f.Fd()), 0, size)

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap dump file: %w", err)
	}
	prefaultRegion(mm)

	return &Dump{
		mmap: mm,
		mem:  Memory{base: base, data: []byte(mm)},
	}, nil
}

// Base returns the address of the first dump byte.
func (d *Dump) Base() Address { return d.mem.base }

// Len returns the dump length in bytes.
func (d *Dump) Len() int { return len(d.mem.data) }

// ReadMemory implements MemoryReader.
func (d *Dump) ReadMemory(addr Address, buf []byte) error {
	if d.closed.Load() {
		return mserrors.ErrDumpClosed
	}
	return d.mem.ReadMemory(addr, buf)
}

// Fingerprint returns the xxHash3-64 of the dump contents. Two dumps with the
// same fingerprint almost certainly hold identical memory.
func (d *Dump) Fingerprint() (uint64, error) {
	if d.closed.Load() {
		return 0, mserrors.ErrDumpClosed
	}
	return xxh3.Hash(d.mem.data), nil
}

// Close unmaps the dump. Closing twice is a no-op.
func (d *Dump) Close() error {
	if d.closed.Swap(true) {
		return nil // Already closed
	}
	d.mem.data = nil
	if d.mmap != nil {
		if err := d.mmap.Unmap(); err != nil {
			return fmt.Errorf("unmap dump: %w", err)
		}
	}
	return nil
}
