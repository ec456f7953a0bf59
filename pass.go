package memsearch

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/tamirms/memsearch/internal/block"
)

const (
	// workChanBufferMultiplier is the multiplier for work channel buffer size
	workChanBufferMultiplier = 2

	// contextCheckInterval is how often the sequential path checks for cancellation.
	contextCheckInterval = 64
)

// blockShape is the partition geometry of one block.
type blockShape struct {
	base        Address
	snapshotLen uint32
	candidates  uint32
}

// partition splits [start, start+length) into blocks of at most blockSize
// candidates. Every block's snapshot extends valueBytes-1 bytes past its last
// candidate so values straddling a block edge are read whole.
func partition(start Address, length, blockSize uint32, valueBytes int) []blockShape {
	w := uint64(valueBytes)
	if uint64(length) < w {
		return nil
	}
	total := uint64(length) - w + 1
	shapes := make([]blockShape, 0, (total+uint64(blockSize)-1)/uint64(blockSize))
	for off := uint64(0); off < total; off += uint64(blockSize) {
		n := min(uint64(blockSize), total-off)
		shapes = append(shapes, blockShape{
			base:        start + Address(off),
			snapshotLen: uint32(n + w - 1),
			candidates:  uint32(n),
		})
	}
	return shapes
}

// forEachBlock runs fn(i) for every i in [0, n). With more than one worker the
// indices are fanned out to a fixed worker pool; the first error cancels the
// remaining work. fn must only touch state owned by index i.
func (s *Search) forEachBlock(ctx context.Context, n int, fn func(i int) error) error {
	if s.cfg.workers <= 1 {
		for i := range n {
			if i%contextCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := fn(i); err != nil {
				return err
			}
		}
		return ctx.Err()
	}

	work := make(chan int, s.cfg.workers*workChanBufferMultiplier)
	g, gctx := errgroup.WithContext(ctx)
	for range s.cfg.workers {
		g.Go(func() error {
			for i := range work {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}

dispatch:
	for i := range n {
		select {
		case work <- i:
		case <-gctx.Done():
			break dispatch
		}
	}
	close(work)

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// capture allocates one all-match block per shape and fills its snapshot.
func (s *Search) capture(ctx context.Context, shapes []blockShape) ([]*block.SearchBlock, error) {
	out := make([]*block.SearchBlock, len(shapes))
	err := s.forEachBlock(ctx, len(shapes), func(i int) error {
		sh := shapes[i]
		b := block.New(sh.base, sh.snapshotLen, sh.candidates)
		if err := s.reader.ReadMemory(sh.base, b.Snapshot()); err != nil {
			return fmt.Errorf("read block %s: %w", sh.base, err)
		}
		out[i] = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// narrow runs one comparison pass over prev and returns the surviving blocks
// in address order. prev is only read.
func (s *Search) narrow(ctx context.Context, prev []*block.SearchBlock, op Comparison, target Target) ([]*block.SearchBlock, error) {
	out := make([]*block.SearchBlock, len(prev))
	err := s.forEachBlock(ctx, len(prev), func(i int) error {
		nb, err := s.narrowBlock(prev[i], op, target)
		if err != nil {
			return err
		}
		out[i] = nb
		return nil
	})
	if err != nil {
		for _, b := range out {
			if b != nil {
				b.Release()
			}
		}
		return nil, err
	}
	return lo.Filter(out, func(b *block.SearchBlock, _ int) bool { return b != nil }), nil
}

// narrowBlock reads fresh memory for old's range and keeps the matching
// candidates of old that satisfy op. Returns nil when nothing survives.
func (s *Search) narrowBlock(old *block.SearchBlock, op Comparison, target Target) (*block.SearchBlock, error) {
	base := old.BaseAddress()
	nb := block.New(base, old.SnapshotLen(), old.MaxAddresses())
	if err := s.reader.ReadMemory(base, nb.Snapshot()); err != nil {
		nb.Release()
		return nil, fmt.Errorf("read block %s: %w", base, err)
	}

	size := s.cfg.valueSize
	cur, last := nb.Snapshot(), old.Snapshot()

	survivorsPtr := s.survivorPool.Get().(*[]Address)
	survivors := (*survivorsPtr)[:0]
	defer func() {
		*survivorsPtr = survivors[:0]
		s.survivorPool.Put(survivorsPtr)
	}()

	for addr := range old.Matches() {
		off := uint32(addr - base)
		against := target.value
		if !target.constant {
			against = size.read(last[off:])
		}
		if op.Holds(size.read(cur[off:]), against) {
			survivors = append(survivors, addr)
		}
	}

	if len(survivors) == 0 {
		nb.Release()
		return nil, nil
	}
	nb.SetMatchingAddresses(survivors, 0, len(survivors)-1)
	return nb, nil
}

// initSurvivorPool sizes pooled survivor buffers to one full block.
func (s *Search) initSurvivorPool() {
	blockSize := s.cfg.blockSize
	s.survivorPool.New = func() any {
		buf := make([]Address, 0, blockSize)
		return &buf
	}
}
