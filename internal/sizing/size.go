// Package sizing provides overflow-checked size arithmetic for archive offsets.
package sizing

import (
	"errors"
	"math"
)

// ErrOverflow indicates a size or offset no longer fits in 64 bits.
var ErrOverflow = errors.New("size overflow")

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// ToInt64 converts a uint64 to int64, returning ErrOverflow if it doesn't fit.
func ToInt64(size uint64) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, ErrOverflow
	}
	return int64(size), nil
}

// FromInt64 converts a non-negative int64 to uint64.
func FromInt64(n int64) (uint64, bool) {
	if n < 0 {
		return 0, false
	}
	return uint64(n), true
}

// Cursor tracks a monotonically increasing byte position.
// The zero value starts at offset 0.
type Cursor struct {
	off uint64
}

// Offset returns the current position.
func (c *Cursor) Offset() uint64 {
	return c.off
}

// Advance moves the cursor forward by n bytes.
func (c *Cursor) Advance(n int) error {
	if n < 0 {
		return ErrOverflow
	}
	next, ok := AddUint64(c.off, uint64(n))
	if !ok {
		return ErrOverflow
	}
	c.off = next
	return nil
}
