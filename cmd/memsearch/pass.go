package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tamirms/memsearch"
)

// pass is one parsed --op argument.
type pass struct {
	op     memsearch.Comparison
	target memsearch.Target
}

// parsePass parses "op" (compare against the last known value) or
// "op:value" (compare against a constant that fits in size).
func parsePass(arg string, size memsearch.ValueSize) (pass, error) {
	name, value, hasValue := strings.Cut(arg, ":")
	op, err := memsearch.ParseComparison(name)
	if err != nil {
		return pass{}, err
	}
	if !hasValue {
		return pass{op: op, target: memsearch.LastKnownValue()}, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(value), 0, 32)
	if err != nil {
		return pass{}, fmt.Errorf("parse value %q: %w", value, err)
	}
	if uint32(v) > size.Max() {
		return pass{}, fmt.Errorf("value %s does not fit in %s", value, size)
	}
	return pass{op: op, target: memsearch.Constant(uint32(v))}, nil
}

// swapReader lets one search read a different dump on every pass.
type swapReader struct {
	mu  sync.RWMutex
	cur memsearch.MemoryReader
}

func (s *swapReader) set(r memsearch.MemoryReader) {
	s.mu.Lock()
	s.cur = r
	s.mu.Unlock()
}

func (s *swapReader) ReadMemory(addr memsearch.Address, buf []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.ReadMemory(addr, buf)
}
