// Package errors defines all exported error sentinels for the memsearch library.
//
// This is the single source of truth for error values. The top-level memsearch
// package and the command-line tools import from here, so errors.Is checks
// work across package boundaries.
package errors

import "errors"

// Search construction errors
var (
	ErrEmptyRegion       = errors.New("memsearch: region is too small to hold one value")
	ErrRegionTooLarge    = errors.New("memsearch: region extends past the 32-bit address space")
	ErrInvalidValueSize  = errors.New("memsearch: unsupported value size")
	ErrInvalidBlockSize  = errors.New("memsearch: block size must be in [1, 1<<20]")
	ErrInvalidWorkers    = errors.New("memsearch: worker count must not be negative")
	ErrInvalidComparison = errors.New("memsearch: unknown comparison")
)

// Memory access errors
var (
	ErrAddressNotMapped = errors.New("memsearch: address not mapped")
	ErrDumpClosed       = errors.New("memsearch: dump is closed")
	ErrTruncatedDump    = errors.New("memsearch: dump file is empty")
)

// Result errors
var (
	ErrLayoutMismatch = errors.New("memsearch: results do not share a block layout")
)
