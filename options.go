package memsearch

import (
	"go.uber.org/zap"

	mserrors "github.com/tamirms/memsearch/errors"
)

const (
	// defaultBlockSize is the number of candidate addresses per block.
	defaultBlockSize = 0x1000

	// maxBlockSize bounds a single block's snapshot and bitmap allocations.
	maxBlockSize = 1 << 20
)

// Option is a functional option for configuring a search.
type Option func(*config)

type config struct {
	blockSize uint32
	valueSize ValueSize
	workers   int
	logger    *zap.Logger
}

func defaultConfig() *config {
	return &config{
		blockSize: defaultBlockSize,
		valueSize: Size8,
		workers:   0, // Default to single-threaded; use WithWorkers(n) to parallelize
		logger:    zap.NewNop(),
	}
}

// WithBlockSize sets the number of candidate addresses tracked per block.
func WithBlockSize(n uint32) Option {
	return func(c *config) {
		c.blockSize = n
	}
}

// WithValueSize sets the width and byte order of the searched value.
func WithValueSize(s ValueSize) Option {
	return func(c *config) {
		c.valueSize = s
	}
}

// WithWorkers sets the number of parallel workers for capture and comparison
// passes. 0 and 1 run passes on the calling goroutine.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l == nil {
			l = zap.NewNop()
		}
		c.logger = l
	}
}

func (c *config) validate() error {
	if c.blockSize == 0 || c.blockSize > maxBlockSize {
		return mserrors.ErrInvalidBlockSize
	}
	if !c.valueSize.valid() {
		return mserrors.ErrInvalidValueSize
	}
	if c.workers < 0 {
		return mserrors.ErrInvalidWorkers
	}
	return nil
}
