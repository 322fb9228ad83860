// Package buf holds overflow-safe offset arithmetic and bounds-checked
// slicing for base-relative offsets. Offsets inside an arena are int64 so
// the same code handles heap buffers and large mapped files.
package buf

import (
	"math"

	"github.com/cockroachdb/errors"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int64.
func AddOverflowSafe(a, b int64) (int64, bool) {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return 0, false
	case b < 0 && a < math.MinInt64-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulOverflowSafe multiplies two non-negative values, returning ok = false on
// overflow or when either operand is negative.
func MulOverflowSafe(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}

// CheckSpan validates that [off, off+n) lies inside a buffer of bufLen bytes
// and returns the end offset.
//
//	end, err := buf.CheckSpan(int64(len(data)), off, size)
//	if err != nil {
//	    return errors.Wrap(err, "directory")
//	}
func CheckSpan(bufLen, off, n int64) (int64, error) {
	if off < 0 {
		return 0, errors.Newf("negative offset: %d", off)
	}
	if n < 0 {
		return 0, errors.Newf("negative length: %d", n)
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok {
		return 0, errors.Newf("overflow: offset=%d + size=%d", off, n)
	}
	if end > bufLen {
		return 0, errors.Newf("bounds: end=%d > len=%d", end, bufLen)
	}
	return end, nil
}

// CheckArray validates count elements of elemSize bytes starting at off.
func CheckArray(bufLen, off, count, elemSize int64) (int64, error) {
	total, ok := MulOverflowSafe(count, elemSize)
	if !ok {
		return 0, errors.Newf("overflow: count=%d * elemSize=%d", count, elemSize)
	}
	return CheckSpan(bufLen, off, total)
}

// Slice returns b[off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int64) ([]byte, bool) {
	end, err := CheckSpan(int64(len(b)), off, n)
	if err != nil {
		return nil, false
	}
	return b[off:end], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int64) bool {
	_, ok := Slice(b, off, n)
	return ok
}
