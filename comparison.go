package memsearch

import (
	"fmt"
	"strings"

	mserrors "github.com/tamirms/memsearch/errors"
)

// Comparison is the predicate applied between a candidate's current value
// and its target.
type Comparison uint8

const (
	Equal Comparison = iota
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual

	numComparisons
)

var comparisonSymbols = [numComparisons]string{
	Equal:              "==",
	NotEqual:           "!=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
}

var comparisonNames = [numComparisons]string{
	Equal:              "eq",
	NotEqual:           "ne",
	LessThan:           "lt",
	LessThanOrEqual:    "le",
	GreaterThan:        "gt",
	GreaterThanOrEqual: "ge",
}

func (c Comparison) valid() bool {
	return c < numComparisons
}

func (c Comparison) String() string {
	if !c.valid() {
		return fmt.Sprintf("Comparison(%d)", uint8(c))
	}
	return comparisonSymbols[c]
}

// Holds reports whether "current c target" is true. Values compare unsigned.
func (c Comparison) Holds(current, target uint32) bool {
	switch c {
	case Equal:
		return current == target
	case NotEqual:
		return current != target
	case LessThan:
		return current < target
	case LessThanOrEqual:
		return current <= target
	case GreaterThan:
		return current > target
	case GreaterThanOrEqual:
		return current >= target
	default:
		return false
	}
}

// ParseComparison accepts a symbol ("==", "!=", "<", "<=", ">", ">=") or a
// short name ("eq", "ne", "lt", "le", "gt", "ge").
func ParseComparison(s string) (Comparison, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for c := range numComparisons {
		if v == comparisonSymbols[c] || v == comparisonNames[c] {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", mserrors.ErrInvalidComparison, s)
}

// Target is the right-hand side of a comparison: either the candidate's value
// in the previous snapshot or a fixed constant.
type Target struct {
	constant bool
	value    uint32
}

// LastKnownValue compares each candidate against its own previous value.
func LastKnownValue() Target {
	return Target{}
}

// Constant compares each candidate against v.
func Constant(v uint32) Target {
	return Target{constant: true, value: v}
}

// IsConstant reports whether the target is a constant.
func (t Target) IsConstant() bool { return t.constant }

// Value returns the constant; zero for LastKnownValue.
func (t Target) Value() uint32 { return t.value }

func (t Target) String() string {
	if t.constant {
		return fmt.Sprintf("0x%X", t.value)
	}
	return "last"
}
