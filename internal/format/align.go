package format

import "golang.org/x/exp/constraints"

// AlignUp rounds n up to the next multiple of align. align must be a power of two.
//
// Example:
//
//	AlignUp(1, 64)   = 64
//	AlignUp(64, 64)  = 64
//	AlignUp(65, 64)  = 128
func AlignUp[T constraints.Integer](n, align T) T {
	return (n + align - 1) &^ (align - 1)
}

// AlignDown rounds n down to a multiple of align. align must be a power of two.
func AlignDown[T constraints.Integer](n, align T) T {
	return n &^ (align - 1)
}

// IsPow2 reports whether n is a positive power of two.
func IsPow2[T constraints.Integer](n T) bool {
	return n > 0 && n&(n-1) == 0
}

// CeilDiv returns ceil(n / d) for positive d.
func CeilDiv[T constraints.Integer](n, d T) T {
	return (n + d - 1) / d
}

// HeaderSizeFor returns the header size for a geometry: the fixed fields,
// the bitmap words when maxChunks > 0, rounded up to a whole chunk so the
// data region starts chunk-aligned.
func HeaderSizeFor(chunkSize, maxChunks int) int {
	n := FixedHeaderSize + maxChunks/8
	return AlignUp(n, chunkSize)
}
