package memsearch

import (
	"fmt"
	"strings"

	mserrors "github.com/tamirms/memsearch/errors"
	"github.com/tamirms/memsearch/internal/block"
	"github.com/tamirms/memsearch/internal/encoding"
)

// Address is a position in the emulated address space.
type Address = block.Address

// ValueSize selects the width and byte order of the searched value.
type ValueSize uint8

const (
	Size8 ValueSize = iota
	Size16
	Size24
	Size32
	Size16BE
	Size32BE

	numValueSizes
)

var valueSizeNames = [numValueSizes]string{
	Size8:    "8-bit",
	Size16:   "16-bit",
	Size24:   "24-bit",
	Size32:   "32-bit",
	Size16BE: "16-bit BE",
	Size32BE: "32-bit BE",
}

func (s ValueSize) valid() bool {
	return s < numValueSizes
}

// Bytes returns the value width in bytes.
func (s ValueSize) Bytes() int {
	switch s {
	case Size8:
		return 1
	case Size16, Size16BE:
		return 2
	case Size24:
		return 3
	case Size32, Size32BE:
		return 4
	default:
		return 0
	}
}

func (s ValueSize) bigEndian() bool {
	return s == Size16BE || s == Size32BE
}

// Max returns the largest value representable at this size.
func (s ValueSize) Max() uint32 {
	return encoding.Mask(s.Bytes())
}

func (s ValueSize) String() string {
	if !s.valid() {
		return fmt.Sprintf("ValueSize(%d)", uint8(s))
	}
	return valueSizeNames[s]
}

// read decodes one value from the start of buf.
func (s ValueSize) read(buf []byte) uint32 {
	if s.bigEndian() {
		return encoding.ReadBE(buf, s.Bytes())
	}
	return encoding.ReadLE(buf, s.Bytes())
}

// ParseValueSize accepts "8", "16", "24", "32", "16be", "32be", with an
// optional "-bit" suffix on the width.
func ParseValueSize(name string) (ValueSize, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "-bit", "")
	n = strings.ReplaceAll(n, " ", "")
	switch n {
	case "8":
		return Size8, nil
	case "16":
		return Size16, nil
	case "24":
		return Size24, nil
	case "32":
		return Size32, nil
	case "16be":
		return Size16BE, nil
	case "32be":
		return Size32BE, nil
	}
	return 0, fmt.Errorf("%w: %q", mserrors.ErrInvalidValueSize, name)
}
