package memsearch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	mserrors "github.com/tamirms/memsearch/errors"
)

// Region is a contiguous span [Start, Start+Length) of the address space.
type Region struct {
	Start  Address
	Length uint32
}

// End returns one past the last address of the region.
func (r Region) End() uint64 {
	return uint64(r.Start) + uint64(r.Length)
}

func (r Region) String() string {
	return fmt.Sprintf("%s-0x%06X", r.Start, r.End())
}

// Search is an interactive memory search over one region.
//
// Thread Safety:
// - A Search is NOT safe for concurrent use; passes run one at a time
// - Within a pass, disjoint blocks are processed in parallel (see WithWorkers)
// - Results returned by earlier passes stay valid and independent
type Search struct {
	reader MemoryReader
	cfg    *config
	region Region
	shapes []blockShape

	results *Result
	passes  int

	survivorPool sync.Pool // *[]Address scratch buffers for narrowBlock
}

// New starts a search over [start, start+length) read through r and captures
// the initial snapshot. Every candidate address matches until the first
// comparison.
func New(ctx context.Context, r MemoryReader, start Address, length uint32, opts ...Option) (*Search, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	region := Region{Start: start, Length: length}
	if region.End() > 1<<32 {
		return nil, mserrors.ErrRegionTooLarge
	}
	shapes := partition(start, length, cfg.blockSize, cfg.valueSize.Bytes())
	if len(shapes) == 0 {
		return nil, mserrors.ErrEmptyRegion
	}

	s := &Search{
		reader: r,
		cfg:    cfg,
		region: region,
		shapes: shapes,
	}
	s.initSurvivorPool()

	begin := time.Now()
	if err := s.reset(ctx); err != nil {
		return nil, err
	}
	cfg.logger.Info("search started",
		zap.Stringer("region", region),
		zap.Stringer("size", cfg.valueSize),
		zap.Int("blocks", len(shapes)),
		zap.Uint64("candidates", s.results.Count()),
		zap.Duration("elapsed", time.Since(begin)))
	return s, nil
}

func (s *Search) reset(ctx context.Context) error {
	blocks, err := s.capture(ctx, s.shapes)
	if err != nil {
		return fmt.Errorf("capture snapshot: %w", err)
	}
	s.results = newResult(blocks, s.layout())
	s.passes = 0
	return nil
}

// Reset discards all narrowing and re-captures the whole region. On error the
// current results are kept.
func (s *Search) Reset(ctx context.Context) error {
	if err := s.reset(ctx); err != nil {
		return err
	}
	s.cfg.logger.Info("search reset", zap.Stringer("region", s.region))
	return nil
}

// Compare runs one narrowing pass: memory is re-read and every current
// candidate is kept only if "current op target" holds. The new results
// replace the search's current results and are returned. On error, including
// context cancellation, the current results are unchanged.
func (s *Search) Compare(ctx context.Context, op Comparison, target Target) (*Result, error) {
	if !op.valid() {
		return nil, mserrors.ErrInvalidComparison
	}

	begin := time.Now()
	blocks, err := s.narrow(ctx, s.results.blocks, op, target)
	if err != nil {
		return nil, fmt.Errorf("compare %s %s: %w", op, target, err)
	}

	s.results = newResult(blocks, s.layout())
	s.passes++
	s.cfg.logger.Debug("comparison complete",
		zap.Int("pass", s.passes),
		zap.Stringer("op", op),
		zap.Stringer("target", target),
		zap.Uint64("matches", s.results.Count()),
		zap.Int("blocks", len(blocks)),
		zap.Duration("elapsed", time.Since(begin)))
	return s.results, nil
}

// Restore makes r the current results, taking ownership of its blocks; r is
// left empty. r must come from this search (directly, or via Branch or
// Intersect).
func (s *Search) Restore(r *Result) error {
	if !s.owns(r) {
		return mserrors.ErrLayoutMismatch
	}
	s.results = r.take()
	s.cfg.logger.Debug("results restored", zap.Uint64("matches", s.results.Count()))
	return nil
}

func (s *Search) layout() layout {
	return layout{origin: s.region.Start, valueSize: s.cfg.valueSize, blockSize: s.cfg.blockSize}
}

// owns reports whether every block of r has the shape this search would
// partition at that base.
func (s *Search) owns(r *Result) bool {
	if r.layout != s.layout() {
		return false
	}
	for _, b := range r.blocks {
		base := b.BaseAddress()
		if uint64(base) < uint64(s.region.Start) || uint64(base) >= s.region.End() {
			return false
		}
		idx := uint32(base-s.region.Start) / s.cfg.blockSize
		if int(idx) >= len(s.shapes) {
			return false
		}
		sh := s.shapes[idx]
		if sh.base != base || sh.candidates != b.MaxAddresses() || sh.snapshotLen != b.SnapshotLen() {
			return false
		}
	}
	return true
}

// Results returns the current results.
func (s *Search) Results() *Result { return s.results }

// Region returns the searched region.
func (s *Search) Region() Region { return s.region }

// ValueSize returns the searched value size.
func (s *Search) ValueSize() ValueSize { return s.cfg.valueSize }

// Passes returns the number of comparisons since the last capture.
func (s *Search) Passes() int { return s.passes }
