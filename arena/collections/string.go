package collections

import (
	"unsafe"

	"github.com/joshuapare/arenakit/arena"
)

// String is an immutable byte string stored in an arena. Set replaces the
// storage wholesale.
type String struct {
	data arena.Offset
	len  int64
}

func (s *String) Len() int { return int(s.len) }

// Bytes returns a view of the contents, valid until the arena next moves.
func (s *String) Bytes(a *arena.Arena) []byte {
	if s.len == 0 {
		return nil
	}
	p, err := a.Resolve(s.data, int(s.len))
	if err != nil {
		panic(err)
	}
	return unsafe.Slice((*byte)(p), s.len)
}

// Get copies the contents out.
func (s *String) Get(a *arena.Arena) string {
	return string(s.Bytes(a))
}

// Set stores v, taking the new storage before freeing the old.
func (s *String) Set(a *arena.Arena, v string) error {
	if a.ReadOnly() {
		return arena.ErrReadOnly
	}
	var off arena.Offset
	if len(v) > 0 {
		o, err := a.Allocate(len(v))
		if err != nil {
			return err
		}
		p, err := a.Resolve(o, len(v))
		if err != nil {
			return err
		}
		copy(unsafe.Slice((*byte)(p), len(v)), v)
		off = o
	}
	if s.data != 0 {
		if err := a.Free(s.data, int(s.len)); err != nil {
			return err
		}
	}
	s.data, s.len = off, int64(len(v))
	return nil
}

// Release frees the storage.
func (s *String) Release(a *arena.Arena) error {
	return s.Set(a, "")
}

// SetString stores v in the string p points at, growing the arena as needed.
func SetString(a *arena.Arena, p arena.Ptr[String], v string) error {
	return a.Retry(func() error {
		return p.Get().Set(a, v)
	})
}
