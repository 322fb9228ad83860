// Package collections provides containers whose headers and storage live
// inside an arena. Headers are pointer-free, so they can be embedded in
// root records and saved with the arena.
//
// Methods make a single attempt and return an exhaustion error when the
// arena is full, leaving the container unchanged. The package-level helpers
// wrap the attempt in Arena.Retry:
//
//	err := collections.Append(a, items, 1, 2, 3)
package collections
