package memsearch

import (
	"context"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/tamirms/memsearch/internal/encoding"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// fillFromRNG fills buf with pseudo-random bytes from rng.
func fillFromRNG(rng *rand.Rand, buf []byte) {
	for i := 0; i+8 <= len(buf); i += 8 {
		binary.LittleEndian.PutUint64(buf[i:], rng.Uint64())
	}
	if tail := len(buf) % 8; tail > 0 {
		v := rng.Uint64()
		start := len(buf) - tail
		for j := 0; j < tail; j++ {
			buf[start+j] = byte(v >> (j * 8))
		}
	}
}

// readValue decodes the value of size at addr in mem.
func readValue(mem *Memory, size ValueSize, addr Address) uint32 {
	buf := mem.Bytes()[addr-mem.Base():]
	if size.bigEndian() {
		return encoding.ReadBE(buf, size.Bytes())
	}
	return encoding.ReadLE(buf, size.Bytes())
}

// writeValue encodes v at addr in mem.
func writeValue(mem *Memory, size ValueSize, addr Address, v uint32) {
	buf := mem.Bytes()[addr-mem.Base():]
	if size.bigEndian() {
		encoding.PutBE(buf, size.Bytes(), v)
		return
	}
	encoding.PutLE(buf, size.Bytes(), v)
}

// referenceSearch tracks the expected candidate set with a plain map.
type referenceSearch struct {
	mem  *Memory
	size ValueSize
	last map[Address]uint32
}

func newReferenceSearch(mem *Memory, start Address, length uint32, size ValueSize) *referenceSearch {
	ref := &referenceSearch{mem: mem, size: size, last: make(map[Address]uint32)}
	for off := uint32(0); off+uint32(size.Bytes()) <= length; off++ {
		addr := start + Address(off)
		ref.last[addr] = readValue(mem, size, addr)
	}
	return ref
}

func (r *referenceSearch) compare(op Comparison, target Target) {
	for addr, prev := range r.last {
		cur := readValue(r.mem, r.size, addr)
		against := prev
		if target.IsConstant() {
			against = target.Value()
		}
		if op.Holds(cur, against) {
			r.last[addr] = cur
		} else {
			delete(r.last, addr)
		}
	}
}

func (r *referenceSearch) addresses() []Address {
	out := make([]Address, 0, len(r.last))
	for addr := range r.last {
		out = append(out, addr)
	}
	slices.Sort(out)
	return out
}

// checkResult compares a result against the reference, including values.
func checkResult(t *testing.T, res *Result, ref *referenceSearch) {
	t.Helper()
	want := ref.addresses()
	if res.Count() != uint64(len(want)) {
		t.Fatalf("Count() = %d, want %d", res.Count(), len(want))
	}
	got := slices.Collect(res.All())
	if !slices.Equal(got, want) {
		t.Fatalf("All() differs from reference: got %d addresses, want %d", len(got), len(want))
	}
	// Address is linear in the block count; sample it.
	step := 1 + len(want)/200
	for i := 0; i < len(want); i += step {
		a, ok := res.Address(uint64(i))
		if !ok || a != want[i] {
			t.Fatalf("Address(%d) = (%s, %v), want %s", i, a, ok, want[i])
		}
	}
	for _, addr := range want {
		v, ok := res.Value(addr)
		if !ok || v != ref.last[addr] {
			t.Fatalf("Value(%s) = (%d, %v), want %d", addr, v, ok, ref.last[addr])
		}
		if !res.Contains(addr) {
			t.Fatalf("Contains(%s) = false", addr)
		}
	}
	if _, ok := res.Address(uint64(len(want))); ok {
		t.Fatalf("Address(%d) found an address past the end", len(want))
	}
}

var errInjected = errors.New("injected read failure")

// failingReader fails every read after the first `after` successful reads.
type failingReader struct {
	MemoryReader
	after int64
	reads atomic.Int64
}

func (f *failingReader) ReadMemory(addr Address, buf []byte) error {
	if f.reads.Add(1) > f.after {
		return errInjected
	}
	return f.MemoryReader.ReadMemory(addr, buf)
}

// cancellingReader cancels ctx on the n-th read and keeps serving reads.
type cancellingReader struct {
	MemoryReader
	cancel context.CancelFunc
	at     int64
	reads  atomic.Int64
}

func (c *cancellingReader) ReadMemory(addr Address, buf []byte) error {
	if c.reads.Add(1) == c.at {
		c.cancel()
	}
	return c.MemoryReader.ReadMemory(addr, buf)
}
