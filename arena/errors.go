package arena

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/arena/alloc"
)

var (
	// ErrReadOnly is returned by every mutating call on a read-only mapping.
	ErrReadOnly = errors.New("arena: read-only arena")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("arena: arena is closed")

	// ErrOversize is the unrecoverable capacity error: a request larger than
	// the bitmap capacity, or growth past the configured MaxSize.
	ErrOversize = alloc.ErrOversize

	// ErrRootExists is returned by MakeRoot for a name already bound.
	ErrRootExists = errors.New("arena: root already exists")

	// ErrRootNotFound is returned by DeleteRoot for an unbound name.
	ErrRootNotFound = errors.New("arena: root not found")

	// ErrTypeMismatch is returned when a root is looked up with a type
	// whose size differs from the one it was created with.
	ErrTypeMismatch = errors.New("arena: root type mismatch")

	// ErrUnsupportedType is returned for types that contain Go pointers.
	ErrUnsupportedType = errors.New("arena: type is not relocatable")

	// ErrInvalidArena is returned when bytes or a file do not hold a usable arena.
	ErrInvalidArena = errors.New("arena: invalid arena image")

	// ErrMisaligned is returned when a buffer base is not 8-byte aligned.
	ErrMisaligned = errors.New("arena: misaligned buffer base")

	// ErrInvalidOption is returned for inconsistent options.
	ErrInvalidOption = errors.New("arena: invalid option")

	// ErrBadOffset is returned when an offset does not lie inside the data region.
	ErrBadOffset = errors.New("arena: offset outside data region")
)

// IsExhausted reports whether err is a recoverable exhaustion signal. Retry
// never returns one.
func IsExhausted(err error) bool {
	_, ok := alloc.AsExhausted(err)
	return ok
}
