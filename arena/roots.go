package arena

import (
	"log/slog"
	"sort"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/internal/format"
	"github.com/joshuapare/arenakit/internal/names"
)

// RootInfo describes one directory entry.
type RootInfo struct {
	Name   string
	Offset Offset
	Size   int
}

func sizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// MakeRoot allocates a zeroed T, binds it to name and returns a Ptr to it.
// Growth needed on the way is performed transparently. The name is
// normalized to NFC before it is stored or compared.
func MakeRoot[T any](a *Arena, name string) (Ptr[T], error) {
	if err := CheckType[T](); err != nil {
		return Ptr[T]{}, err
	}
	if err := a.checkWritable(); err != nil {
		return Ptr[T]{}, err
	}
	canon, err := names.Canonical(name, format.MaxNameLen)
	if err != nil {
		return Ptr[T]{}, err
	}
	if _, ok := a.lookup(canon); ok {
		return Ptr[T]{}, errors.Wrapf(ErrRootExists, "%q", canon)
	}
	var off int64
	err = a.Retry(func() error {
		o, err := a.insertRoot(canon, sizeOf[T]())
		off = o
		return err
	})
	if err != nil {
		return Ptr[T]{}, err
	}
	a.log.Debug("root created", slog.String("name", canon), slog.Int64("offset", off))
	return Ptr[T]{a: a, off: Offset(off)}, nil
}

// FindRoot looks up the object bound to name. found is false, with a nil
// error, when no such root exists. A root created with a type of a
// different size fails with ErrTypeMismatch.
func FindRoot[T any](a *Arena, name string) (p Ptr[T], found bool, err error) {
	if err := CheckType[T](); err != nil {
		return Ptr[T]{}, false, err
	}
	if err := a.checkOpen(); err != nil {
		return Ptr[T]{}, false, err
	}
	canon, err := names.Canonical(name, format.MaxNameLen)
	if err != nil {
		return Ptr[T]{}, false, err
	}
	i, ok := a.lookup(canon)
	if !ok {
		return Ptr[T]{}, false, nil
	}
	e := a.readEntry(i)
	if want := sizeOf[T](); int(e.size) != want {
		return Ptr[T]{}, false, errors.Wrapf(ErrTypeMismatch, "root %q holds %d bytes, type needs %d", canon, e.size, want)
	}
	return Ptr[T]{a: a, off: Offset(e.obj)}, true, nil
}

// FindOrMakeRoot returns the root bound to name, creating it if absent.
func FindOrMakeRoot[T any](a *Arena, name string) (Ptr[T], error) {
	p, found, err := FindRoot[T](a, name)
	if err != nil || found {
		return p, err
	}
	return MakeRoot[T](a, name)
}

// DeleteRoot unbinds name and frees its object. Objects reachable only
// through the root are not freed.
func (a *Arena) DeleteRoot(name string) error {
	if err := a.checkWritable(); err != nil {
		return err
	}
	canon, err := names.Canonical(name, format.MaxNameLen)
	if err != nil {
		return err
	}
	i, ok := a.lookup(canon)
	if !ok {
		return errors.Wrapf(ErrRootNotFound, "%q", canon)
	}
	return a.removeRoot(canon, i)
}

// HasRoot reports whether name is bound.
func (a *Arena) HasRoot(name string) bool {
	if a.checkOpen() != nil {
		return false
	}
	canon, err := names.Canonical(name, format.MaxNameLen)
	if err != nil {
		return false
	}
	_, ok := a.lookup(canon)
	return ok
}

// Roots lists the directory sorted by name.
func (a *Arena) Roots() []RootInfo {
	if a.checkOpen() != nil {
		return nil
	}
	n := a.header().DirCount()
	out := make([]RootInfo, 0, n)
	for i := range n {
		e := a.readEntry(i)
		out = append(out, RootInfo{Name: a.entryName(e), Offset: Offset(e.obj), Size: int(e.size)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
