package arena

import (
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Offset is a signed byte displacement from an arena's base. Zero is the
// nil offset; byte 0 always belongs to the header.
type Offset int64

// Ptr is an offset pointer: the owning arena plus an offset into it. It is
// resolved against the arena's current base on every call, so it stays
// valid across Grow, ShrinkToFit and relocation. A Ptr is only meaningful
// while its arena is open.
type Ptr[T any] struct {
	a   *Arena
	off Offset
}

// PtrAt builds a Ptr for an object already allocated at off.
func PtrAt[T any](a *Arena, off Offset) Ptr[T] {
	return Ptr[T]{a: a, off: off}
}

// Arena returns the owning arena.
func (p Ptr[T]) Arena() *Arena { return p.a }

// Offset returns the stored displacement.
func (p Ptr[T]) Offset() Offset { return p.off }

// IsNil reports whether p points at nothing.
func (p Ptr[T]) IsNil() bool { return p.a == nil || p.off == 0 }

// Get resolves p to a Go pointer into the buffer. The result is only valid
// until the arena next moves; do not store it.
func (p Ptr[T]) Get() *T {
	if p.IsNil() {
		return nil
	}
	var zero T
	return (*T)(p.a.resolve(p.off, int64(unsafe.Sizeof(zero))))
}

// Load copies the object out of the arena.
func (p Ptr[T]) Load() T {
	return *p.Get()
}

// Store copies v into the arena.
func (p Ptr[T]) Store(v T) error {
	if err := p.a.checkWritable(); err != nil {
		return err
	}
	*p.Get() = v
	return nil
}

// Addr returns the current absolute address. It changes whenever the arena
// moves and must never be persisted.
func (p Ptr[T]) Addr() uintptr {
	if p.IsNil() {
		return 0
	}
	return p.a.Base() + uintptr(p.off)
}

// Field derives a Ptr to a field of the object p points at. f must point
// into *p.Get() as returned by the same, still current, resolution:
//
//	items := arena.Field(rec, &rec.Get().Items)
func Field[T, F any](p Ptr[T], f *F) Ptr[F] {
	var outer T
	var inner F
	base := uintptr(unsafe.Pointer(p.Get()))
	at := uintptr(unsafe.Pointer(f))
	if at < base || at-base+unsafe.Sizeof(inner) > unsafe.Sizeof(outer) {
		panic(errors.AssertionFailedf("arena: field at %#x is not inside object at %#x", at, base))
	}
	return Ptr[F]{a: p.a, off: p.off + Offset(at-base)}
}

// Resolve returns the current address of off, checking that size bytes
// starting there lie inside the buffer.
func (a *Arena) Resolve(off Offset, size int) (unsafe.Pointer, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	if off <= 0 || size < 0 || int64(off)+int64(size) > int64(len(a.data)) {
		return nil, errors.Wrapf(ErrBadOffset, "%#x+%d in %d bytes", int64(off), size, len(a.data))
	}
	return unsafe.Pointer(&a.data[off]), nil
}

// resolve is Resolve for internal callers that hold a valid offset. A bad
// offset is a programming error and panics, like a nil dereference.
func (a *Arena) resolve(off Offset, size int64) unsafe.Pointer {
	if a.closed {
		panic(ErrClosed)
	}
	if off <= 0 || int64(off)+size > int64(len(a.data)) {
		panic(errors.AssertionFailedf("arena: offset %#x+%d outside %d-byte buffer", int64(off), size, len(a.data)))
	}
	return unsafe.Pointer(&a.data[off])
}
