package memsearch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	mserrors "github.com/tamirms/memsearch/errors"
)

func TestNewValidation(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(0, make([]byte, 64))

	tests := []struct {
		name   string
		start  Address
		length uint32
		opts   []Option
		want   error
	}{
		{"zero length", 0, 0, nil, mserrors.ErrEmptyRegion},
		{"shorter than value", 0, 3, []Option{WithValueSize(Size32)}, mserrors.ErrEmptyRegion},
		{"past address space", 0xFFFFFFF0, 0x20, nil, mserrors.ErrRegionTooLarge},
		{"zero block size", 0, 64, []Option{WithBlockSize(0)}, mserrors.ErrInvalidBlockSize},
		{"huge block size", 0, 64, []Option{WithBlockSize(maxBlockSize + 1)}, mserrors.ErrInvalidBlockSize},
		{"bad value size", 0, 64, []Option{WithValueSize(numValueSizes)}, mserrors.ErrInvalidValueSize},
		{"negative workers", 0, 64, []Option{WithWorkers(-1)}, mserrors.ErrInvalidWorkers},
		{"unmapped region", 0, 128, nil, mserrors.ErrAddressNotMapped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(ctx, mem, tt.start, tt.length, tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPartition(t *testing.T) {
	tests := []struct {
		length, blockSize uint32
		width             int
		wantBlocks        int
		wantLastCand      uint32
	}{
		{16, 16, 1, 1, 16},
		{16, 16, 4, 1, 13},
		{100, 32, 2, 4, 3}, // 99 candidates: 32+32+32+3
		{3, 8, 4, 0, 0},
		{4, 8, 4, 1, 1},
	}
	for _, tt := range tests {
		shapes := partition(0x100, tt.length, tt.blockSize, tt.width)
		if len(shapes) != tt.wantBlocks {
			t.Errorf("partition(len=%d, bs=%d, w=%d) = %d blocks, want %d",
				tt.length, tt.blockSize, tt.width, len(shapes), tt.wantBlocks)
			continue
		}

		var total uint64
		next := Address(0x100)
		for i, sh := range shapes {
			if sh.base != next {
				t.Errorf("block %d base %s, want %s", i, sh.base, next)
			}
			if sh.snapshotLen != sh.candidates+uint32(tt.width)-1 {
				t.Errorf("block %d snapshot %d for %d candidates at width %d", i, sh.snapshotLen, sh.candidates, tt.width)
			}
			if uint64(sh.base)+uint64(sh.snapshotLen) > 0x100+uint64(tt.length) {
				t.Errorf("block %d snapshot reads past the region", i)
			}
			total += uint64(sh.candidates)
			next += Address(sh.candidates)
		}
		if want := uint64(tt.length) - uint64(tt.width) + 1; len(shapes) > 0 && total != want {
			t.Errorf("partition(len=%d) covers %d candidates, want %d", tt.length, total, want)
		}
		if len(shapes) > 0 && shapes[len(shapes)-1].candidates != tt.wantLastCand {
			t.Errorf("last block has %d candidates, want %d", shapes[len(shapes)-1].candidates, tt.wantLastCand)
		}
	}
}

func TestInitialCaptureMatchesEverything(t *testing.T) {
	mem := NewMemory(0x1000, make([]byte, 0x300))
	s, err := New(context.Background(), mem, 0x1000, 0x300, WithBlockSize(0x100), WithValueSize(Size16))
	if err != nil {
		t.Fatal(err)
	}
	res := s.Results()
	if res.Count() != 0x2FF {
		t.Fatalf("Count() = %d, want %d", res.Count(), 0x2FF)
	}
	if res.Blocks() != 3 {
		t.Fatalf("Blocks() = %d, want 3", res.Blocks())
	}
	if addr, ok := res.Address(0x2FE); !ok || addr != 0x12FE {
		t.Fatalf("Address(0x2FE) = (%s, %v), want 0x0012FE", addr, ok)
	}
	if res.Contains(0x12FF) {
		t.Error("last byte of region is a candidate for a 16-bit search")
	}
}

// TestCompareScenario walks a typical narrowing session: value changes,
// then equals a constant, then stays unchanged.
func TestCompareScenario(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(0x8000, make([]byte, 256))
	s, err := New(ctx, mem, 0x8000, 256, WithBlockSize(64))
	if err != nil {
		t.Fatal(err)
	}

	mem.Bytes()[0x10] = 5
	mem.Bytes()[0x90] = 7
	mem.Bytes()[0xF0] = 5

	res, err := s.Compare(ctx, NotEqual, LastKnownValue())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := slices.Collect(res.All()), []Address{0x8010, 0x8090, 0x80F0}; !slices.Equal(got, want) {
		t.Fatalf("after != last: %v, want %v", got, want)
	}
	if res.Blocks() != 3 {
		t.Errorf("Blocks() = %d, want 3 (empty blocks dropped)", res.Blocks())
	}

	res, err = s.Compare(ctx, Equal, Constant(5))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := slices.Collect(res.All()), []Address{0x8010, 0x80F0}; !slices.Equal(got, want) {
		t.Fatalf("after == 5: %v, want %v", got, want)
	}

	mem.Bytes()[0xF0] = 6
	res, err = s.Compare(ctx, Equal, LastKnownValue())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := slices.Collect(res.All()), []Address{0x8010}; !slices.Equal(got, want) {
		t.Fatalf("after == last: %v, want %v", got, want)
	}
	if v, ok := res.Value(0x8010); !ok || v != 5 {
		t.Errorf("Value(0x8010) = (%d, %v), want 5", v, ok)
	}
	if s.Passes() != 3 {
		t.Errorf("Passes() = %d, want 3", s.Passes())
	}
}

// TestCompareValueStraddlingBlockEdge checks that a multi-byte value whose
// first byte is the last candidate of a block is read whole.
func TestCompareValueStraddlingBlockEdge(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(0, make([]byte, 32))
	s, err := New(ctx, mem, 0, 32, WithBlockSize(8), WithValueSize(Size32))
	if err != nil {
		t.Fatal(err)
	}

	writeValue(mem, Size32, 7, 0xDEADBEEF)
	res, err := s.Compare(ctx, Equal, Constant(0xDEADBEEF))
	if err != nil {
		t.Fatal(err)
	}
	if got := slices.Collect(res.All()); !slices.Equal(got, []Address{7}) {
		t.Fatalf("matches %v, want [0x000007]", got)
	}
}

func TestCompareBigEndian(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(0x100, make([]byte, 16))
	s, err := New(ctx, mem, 0x100, 16, WithValueSize(Size16BE))
	if err != nil {
		t.Fatal(err)
	}
	mem.Bytes()[4] = 0x12
	mem.Bytes()[5] = 0x34
	res, err := s.Compare(ctx, Equal, Constant(0x1234))
	if err != nil {
		t.Fatal(err)
	}
	if got := slices.Collect(res.All()); !slices.Equal(got, []Address{0x104}) {
		t.Fatalf("matches %v, want [0x000104]", got)
	}
}

// TestCompareMatchesReference runs random passes over random memory for every
// value size and worker configuration and checks each result against a map.
func TestCompareMatchesReference(t *testing.T) {
	ops := []Comparison{Equal, NotEqual, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual}
	sizes := []ValueSize{Size8, Size16, Size24, Size32, Size16BE, Size32BE}

	for _, size := range sizes {
		for _, workers := range []int{0, 4} {
			t.Run(fmt.Sprintf("%s/workers=%d", size, workers), func(t *testing.T) {
				rng := newTestRNG(t)
				ctx := context.Background()
				const base, length = 0x2000, 3000

				data := make([]byte, length)
				for i := range data {
					data[i] = byte(rng.IntN(4)) // small alphabet keeps matches frequent
				}
				mem := NewMemory(base, data)

				s, err := New(ctx, mem, base, length,
					WithValueSize(size), WithWorkers(workers), WithBlockSize(uint32(rng.IntN(300)+1)))
				if err != nil {
					t.Fatal(err)
				}
				ref := newReferenceSearch(mem, base, length, size)
				checkResult(t, s.Results(), ref)

				for pass := range 6 {
					for range rng.IntN(400) {
						data[rng.IntN(length)] = byte(rng.IntN(4))
					}
					op := ops[rng.IntN(len(ops))]
					target := LastKnownValue()
					if rng.IntN(2) == 0 {
						target = Constant(readValue(mem, size, base+Address(rng.IntN(length-size.Bytes()+1))))
					}

					res, err := s.Compare(ctx, op, target)
					if err != nil {
						t.Fatalf("pass %d: %v", pass, err)
					}
					ref.compare(op, target)
					checkResult(t, res, ref)
					if res.Count() == 0 {
						break
					}
				}
			})
		}
	}
}

func TestCompareInvalidComparison(t *testing.T) {
	s, err := New(context.Background(), NewMemory(0, make([]byte, 8)), 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Compare(context.Background(), numComparisons, LastKnownValue()); !errors.Is(err, mserrors.ErrInvalidComparison) {
		t.Errorf("Compare() error = %v, want ErrInvalidComparison", err)
	}
}

func TestCompareReadErrorKeepsResults(t *testing.T) {
	for _, workers := range []int{0, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			ctx := context.Background()
			mem := NewMemory(0, make([]byte, 1024))
			reader := &failingReader{MemoryReader: mem, after: 16 + 5} // 16 capture reads, 5 compare reads
			s, err := New(ctx, reader, 0, 1024, WithBlockSize(64), WithWorkers(workers))
			if err != nil {
				t.Fatal(err)
			}
			before := s.Results()

			_, err = s.Compare(ctx, NotEqual, LastKnownValue())
			if !errors.Is(err, errInjected) {
				t.Fatalf("Compare() error = %v, want injected failure", err)
			}
			if s.Results() != before || before.Count() != 1024 {
				t.Errorf("failed pass replaced results (count %d)", s.Results().Count())
			}
		})
	}
}

func TestCompareCancelledKeepsResults(t *testing.T) {
	for _, workers := range []int{0, 2} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			mem := NewMemory(0, make([]byte, 64*1024))
			s, err := New(context.Background(), mem, 0, 64*1024, WithBlockSize(16), WithWorkers(workers))
			if err != nil {
				t.Fatal(err)
			}
			before := s.Results()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			s.reader = &cancellingReader{MemoryReader: mem, cancel: cancel, at: 10}

			_, err = s.Compare(ctx, Equal, LastKnownValue())
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("Compare() error = %v, want context.Canceled", err)
			}
			if s.Results() != before {
				t.Error("cancelled pass replaced results")
			}
		})
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(0, make([]byte, 128))
	s, err := New(ctx, mem, 0, 128)
	if err != nil {
		t.Fatal(err)
	}
	mem.Bytes()[3] = 1
	if _, err := s.Compare(ctx, NotEqual, LastKnownValue()); err != nil {
		t.Fatal(err)
	}
	if s.Results().Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Results().Count())
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Results().Count() != 128 || s.Passes() != 0 {
		t.Errorf("after Reset: count %d passes %d, want 128 and 0", s.Results().Count(), s.Passes())
	}
	if v, ok := s.Results().Value(3); !ok || v != 1 {
		t.Errorf("Reset did not re-capture memory: Value(3) = (%d, %v)", v, ok)
	}
}

func TestRestoreBranch(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(0, make([]byte, 256))
	s, err := New(ctx, mem, 0, 256, WithBlockSize(64))
	if err != nil {
		t.Fatal(err)
	}
	for _, off := range []int{1, 70, 200} {
		mem.Bytes()[off] = 9
	}
	res, err := s.Compare(ctx, Equal, Constant(9))
	if err != nil {
		t.Fatal(err)
	}
	saved := res.Branch()

	mem.Bytes()[70] = 0
	if _, err := s.Compare(ctx, Equal, Constant(9)); err != nil {
		t.Fatal(err)
	}
	if s.Results().Count() != 2 {
		t.Fatalf("Count() = %d, want 2", s.Results().Count())
	}

	if err := s.Restore(saved); err != nil {
		t.Fatal(err)
	}
	if got := slices.Collect(s.Results().All()); !slices.Equal(got, []Address{1, 70, 200}) {
		t.Fatalf("restored %v, want [1 70 200]", got)
	}
	if saved.Count() != 0 || saved.Blocks() != 0 {
		t.Error("restored result still owns its blocks")
	}

	other, err := New(ctx, mem, 0, 256, WithBlockSize(32))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Restore(other.Results()); !errors.Is(err, mserrors.ErrLayoutMismatch) {
		t.Errorf("Restore(foreign) error = %v, want ErrLayoutMismatch", err)
	}
}

func TestSearchLogsPasses(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := context.Background()
	mem := NewMemory(0, make([]byte, 32))
	s, err := New(ctx, mem, 0, 32, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Compare(ctx, Equal, LastKnownValue()); err != nil {
		t.Fatal(err)
	}

	if n := logs.FilterMessage("search started").Len(); n != 1 {
		t.Errorf("%d \"search started\" entries, want 1", n)
	}
	entries := logs.FilterMessage("comparison complete").All()
	if len(entries) != 1 {
		t.Fatalf("%d \"comparison complete\" entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["matches"]; got != uint64(32) {
		t.Errorf("logged matches = %v, want 32", got)
	}
}
