package format

import "github.com/cockroachdb/errors"

var (
	// ErrSignatureMismatch indicates the buffer does not start with Magic.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrTruncated indicates the buffer is shorter than its header claims.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrChecksum indicates the geometry checksum did not match.
	ErrChecksum = errors.New("format: geometry checksum mismatch")
	// ErrUnsupported indicates an unknown version or strategy.
	ErrUnsupported = errors.New("format: unsupported header")
	// ErrGeometry indicates inconsistent chunk, header or bitmap sizes.
	ErrGeometry = errors.New("format: invalid geometry")
)
