// Package memsearch implements an interactive memory search ("cheat search")
// over a snapshot of an emulated system's address space.
//
// A search partitions a contiguous region into fixed-size blocks. Each block
// keeps a raw snapshot of its range and a matching-address bitmap that is only
// materialized once the first candidate is eliminated. Every comparison pass
// re-reads memory, evaluates the surviving candidates against either their
// last known value or a constant, and narrows each block in place.
//
// # Basic Usage
//
// Starting a search over a memory dump:
//
//	dump, err := memsearch.OpenDump("wram.bin", 0x0000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dump.Close()
//
//	s, err := memsearch.New(ctx, dump, 0x0000, uint32(dump.Len()),
//	    memsearch.WithValueSize(memsearch.Size16))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Narrowing after the emulator has run:
//
//	res, err := s.Compare(ctx, memsearch.NotEqual, memsearch.LastKnownValue())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for addr := range res.All() {
//	    v, _ := res.Value(addr)
//	    fmt.Printf("%s = %d\n", addr, v)
//	}
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Public API: search.go (New, Compare, Reset, Restore), result.go (Result)
//   - Configuration: options.go (Option, With* functions)
//   - Predicates: value.go (ValueSize), comparison.go (Comparison, Target)
//   - Memory access: memory.go (MemoryReader, Memory), dump.go (Dump)
//   - Pass execution: pass.go (parallel per-block workers)
//   - Block tracking: internal/block (SearchBlock), internal/smallbuf (inline
//     vs heap storage), internal/bits (bitmap scans)
//   - Platform: fadvise_*.go, prefault_*.go (OS-specific hints)
package memsearch
