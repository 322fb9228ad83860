package collections

import (
	"iter"
	"slices"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/arena"
)

// ErrIndex is returned for an index outside [0, Len).
var ErrIndex = errors.New("collections: index out of range")

const minVectorCap = 4

// Vector is a growable array of T stored in an arena. The zero value is an
// empty vector.
type Vector[T any] struct {
	data arena.Offset
	len  int64
	cap  int64
}

func elemSize[T any]() int64 {
	var zero T
	return int64(unsafe.Sizeof(zero))
}

func (v *Vector[T]) Len() int { return int(v.len) }

func (v *Vector[T]) Cap() int { return int(v.cap) }

// Data returns the offset of the element storage.
func (v *Vector[T]) Data() arena.Offset { return v.data }

// Slice returns a view of the elements. The view is only valid until the
// arena next moves.
func (v *Vector[T]) Slice(a *arena.Arena) []T {
	if v.len == 0 || elemSize[T]() == 0 {
		return make([]T, v.len)
	}
	p, err := a.Resolve(v.data, int(v.len*elemSize[T]()))
	if err != nil {
		panic(err)
	}
	return unsafe.Slice((*T)(p), v.len)
}

// At returns element i.
func (v *Vector[T]) At(a *arena.Arena, i int) (T, error) {
	var zero T
	if i < 0 || int64(i) >= v.len {
		return zero, errors.Wrapf(ErrIndex, "%d of %d", i, v.len)
	}
	return v.Slice(a)[i], nil
}

// Set overwrites element i.
func (v *Vector[T]) Set(a *arena.Arena, i int, val T) error {
	if a.ReadOnly() {
		return arena.ErrReadOnly
	}
	if i < 0 || int64(i) >= v.len {
		return errors.Wrapf(ErrIndex, "%d of %d", i, v.len)
	}
	v.Slice(a)[i] = val
	return nil
}

// All iterates the elements in order.
func (v *Vector[T]) All(a *arena.Arena) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, e := range v.Slice(a) {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Clear drops every element but keeps the storage.
func (v *Vector[T]) Clear(a *arena.Arena) error {
	if a.ReadOnly() {
		return arena.ErrReadOnly
	}
	v.len = 0
	return nil
}

// Reserve makes room for at least n elements. On failure v is unchanged.
func (v *Vector[T]) Reserve(a *arena.Arena, n int) error {
	if a.ReadOnly() {
		return arena.ErrReadOnly
	}
	if int64(n) <= v.cap {
		return nil
	}
	old, oldCap, err := v.realloc(a, int64(n))
	if err != nil {
		return err
	}
	return v.free(a, old, oldCap)
}

// realloc moves the elements to fresh storage of newCap elements and
// returns the old block, which the caller frees once nothing reads it. The
// new block is taken before anything in v changes.
func (v *Vector[T]) realloc(a *arena.Arena, newCap int64) (arena.Offset, int64, error) {
	size := elemSize[T]()
	if size == 0 {
		v.cap = newCap
		return 0, 0, nil
	}
	off, err := a.Allocate(int(newCap * size))
	if err != nil {
		return 0, 0, err
	}
	if v.len > 0 {
		dst, err := a.Resolve(off, int(v.len*size))
		if err != nil {
			return 0, 0, err
		}
		copy(unsafe.Slice((*T)(dst), v.len), v.Slice(a))
	}
	old, oldCap := v.data, v.cap
	v.data, v.cap = off, newCap
	return old, oldCap, nil
}

func (v *Vector[T]) free(a *arena.Arena, off arena.Offset, n int64) error {
	if off == 0 {
		return nil
	}
	return a.Free(off, int(n*elemSize[T]()))
}

// Append adds vals at the end, doubling the capacity when full. vals may
// alias the vector's own elements.
func (v *Vector[T]) Append(a *arena.Arena, vals ...T) error {
	if err := arena.CheckType[T](); err != nil {
		return err
	}
	if a.ReadOnly() {
		return arena.ErrReadOnly
	}
	if len(vals) == 0 {
		return nil
	}
	need := v.len + int64(len(vals))
	var old arena.Offset
	var oldCap int64
	if need > v.cap {
		var err error
		if old, oldCap, err = v.realloc(a, max(need, v.cap*2, minVectorCap)); err != nil {
			return err
		}
	}
	if elemSize[T]() > 0 {
		p, err := a.Resolve(v.data, int(need*elemSize[T]()))
		if err != nil {
			return err
		}
		copy(unsafe.Slice((*T)(p), need)[v.len:], vals)
	}
	v.len = need
	return v.free(a, old, oldCap)
}

// Release frees the storage and empties v.
func (v *Vector[T]) Release(a *arena.Arena) error {
	if a.ReadOnly() {
		return arena.ErrReadOnly
	}
	if v.data != 0 {
		if err := a.Free(v.data, int(v.cap*elemSize[T]())); err != nil {
			return err
		}
	}
	*v = Vector[T]{}
	return nil
}

// Append appends vals to the vector p points at, growing the arena as
// needed. p is re-resolved on every attempt.
func Append[T any](a *arena.Arena, p arena.Ptr[Vector[T]], vals ...T) error {
	if aliases(a, vals) {
		// Growth may remap the arena out from under vals.
		vals = slices.Clone(vals)
	}
	return a.Retry(func() error {
		return p.Get().Append(a, vals...)
	})
}

// aliases reports whether vals points into the arena's memory.
func aliases[T any](a *arena.Arena, vals []T) bool {
	b := a.Bytes()
	if len(vals) == 0 || len(b) == 0 || elemSize[T]() == 0 {
		return false
	}
	lo := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	p := uintptr(unsafe.Pointer(unsafe.SliceData(vals)))
	return p >= lo && p < lo+uintptr(len(b))
}

// Reserve is Vector.Reserve with growth.
func Reserve[T any](a *arena.Arena, p arena.Ptr[Vector[T]], n int) error {
	return a.Retry(func() error {
		return p.Get().Reserve(a, n)
	})
}
