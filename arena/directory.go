package arena

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"

	"github.com/joshuapare/arenakit/internal/buf"
	"github.com/joshuapare/arenakit/internal/format"
	"github.com/joshuapare/arenakit/internal/names"
)

// The root directory is a table of fixed-size entries in chunk-allocated
// storage, located through the header. Each root's object and its name
// share one allocation: the object first, the name bytes right after it at
// the next 8-byte boundary.

type dirEntry struct {
	hash    uint64
	obj     int64
	name    int64
	nameLen uint32
	size    uint32
}

// rootBlock returns the bytes spanned by a root allocation.
func rootBlock(size, nameLen int) int {
	return format.AlignUp(size, 8) + nameLen
}

func (a *Arena) entryOff(i int) int {
	return int(a.header().DirOffset()) + i*format.DirEntrySize
}

func (a *Arena) readEntry(i int) dirEntry {
	b, at := a.data, a.entryOff(i)
	return dirEntry{
		hash:    format.ReadU64(b, at+format.DirHashOffset),
		obj:     format.ReadI64(b, at+format.DirObjectOffset),
		name:    format.ReadI64(b, at+format.DirNameOffset),
		nameLen: format.ReadU32(b, at+format.DirNameLenOffset),
		size:    format.ReadU32(b, at+format.DirSizeOffset),
	}
}

func (a *Arena) writeEntry(i int, e dirEntry) {
	b, at := a.data, a.entryOff(i)
	format.PutU64(b, at+format.DirHashOffset, e.hash)
	format.PutI64(b, at+format.DirObjectOffset, e.obj)
	format.PutI64(b, at+format.DirNameOffset, e.name)
	format.PutU32(b, at+format.DirNameLenOffset, e.nameLen)
	format.PutU32(b, at+format.DirSizeOffset, e.size)
}

func (a *Arena) entryName(e dirEntry) string {
	return string(a.data[e.name : e.name+int64(e.nameLen)])
}

// checkEntry validates an entry read from an untrusted image.
func (a *Arena) checkEntry(i int, e dirEntry) (string, error) {
	h := a.header()
	start, end := int64(h.HeaderSize()), h.DataEnd()
	if e.obj < start || e.obj%8 != 0 {
		return "", errors.Newf("arena: root %d object offset %#x", i, e.obj)
	}
	objEnd, err := buf.CheckSpan(end, e.obj, int64(e.size))
	if err != nil {
		return "", errors.Wrapf(err, "arena: root %d object", i)
	}
	if e.name < objEnd || e.nameLen == 0 || e.nameLen > format.MaxNameLen {
		return "", errors.Newf("arena: root %d name at %#x len %d", i, e.name, e.nameLen)
	}
	if _, err := buf.CheckSpan(end, e.name, int64(e.nameLen)); err != nil {
		return "", errors.Wrapf(err, "arena: root %d name", i)
	}
	n := a.entryName(e)
	if names.Hash(n) != e.hash {
		return "", errors.Newf("arena: root %d (%q) hash mismatch", i, n)
	}
	return n, nil
}

// loadDirectory validates the directory table and rebuilds the name cache.
func (a *Arena) loadDirectory() error {
	h := a.header()
	count, capacity, off := h.DirCount(), h.DirCap(), h.DirOffset()
	a.names = swiss.NewMap[string, int](uint32(max(count, format.MinDirCap)))
	if off == 0 {
		if count != 0 || capacity != 0 {
			return errors.Newf("arena: directory has %d/%d entries but no table", count, capacity)
		}
		return nil
	}
	if count > capacity || off < int64(h.HeaderSize()) {
		return errors.Newf("arena: directory table %#x holds %d of %d entries", off, count, capacity)
	}
	if _, err := buf.CheckArray(h.DataEnd(), off, int64(capacity), format.DirEntrySize); err != nil {
		return errors.Wrap(err, "arena: directory table")
	}
	for i := range count {
		n, err := a.checkEntry(i, a.readEntry(i))
		if err != nil {
			return err
		}
		if _, dup := a.names.Get(n); dup {
			return errors.Newf("arena: root %q bound twice", n)
		}
		a.names.Put(n, i)
	}
	return nil
}

// lookup returns the directory index bound to a canonical name.
func (a *Arena) lookup(canon string) (int, bool) {
	return a.names.Get(canon)
}

// chunksFor returns the chunk count covering size bytes, at least one.
func (a *Arena) chunksFor(size int) int {
	return max(1, format.CeilDiv(size, a.ChunkSize()))
}

// insertRoot binds canon to a fresh zeroed object of size bytes. Every
// allocation happens before any write, and a failed attempt releases what
// it took, so the call can be replayed after growth.
func (a *Arena) insertRoot(canon string, size int) (int64, error) {
	h := a.header()
	count, capacity := h.DirCount(), h.DirCap()

	var table int64
	newCap := capacity
	if count == capacity {
		newCap = max(format.MinDirCap, capacity*2)
		off, err := a.alloc.Allocate(a.chunksFor(newCap * format.DirEntrySize))
		if err != nil {
			return 0, err
		}
		table = off
	}
	block := rootBlock(size, len(canon))
	obj, err := a.alloc.Allocate(a.chunksFor(block))
	if err != nil {
		if table != 0 {
			if ferr := a.alloc.Free(table, a.chunksFor(newCap*format.DirEntrySize)); ferr != nil {
				return 0, ferr
			}
		}
		return 0, err
	}

	// No more allocation past this point.
	if table != 0 {
		old := h.DirOffset()
		clear(a.data[table : table+int64(newCap*format.DirEntrySize)])
		if old != 0 {
			copy(a.data[table:], a.data[old:old+int64(count*format.DirEntrySize)])
			if err := a.alloc.Free(old, a.chunksFor(capacity*format.DirEntrySize)); err != nil {
				return 0, err
			}
		}
		h.SetDirOffset(table)
		h.SetDirCap(newCap)
	}

	clear(a.data[obj : obj+int64(a.chunksFor(block)*a.ChunkSize())])
	nameOff := obj + int64(format.AlignUp(size, 8))
	copy(a.data[nameOff:], canon)
	a.writeEntry(count, dirEntry{
		hash:    names.Hash(canon),
		obj:     obj,
		name:    nameOff,
		nameLen: uint32(len(canon)),
		size:    uint32(size),
	})
	h.SetDirCount(count + 1)
	a.names.Put(canon, count)
	return obj, nil
}

// removeRoot frees a root's block and moves the last entry into its slot.
func (a *Arena) removeRoot(canon string, i int) error {
	h := a.header()
	e := a.readEntry(i)
	if err := a.alloc.Free(e.obj, a.chunksFor(rootBlock(int(e.size), int(e.nameLen)))); err != nil {
		return err
	}
	last := h.DirCount() - 1
	a.names.Delete(canon)
	if i != last {
		moved := a.readEntry(last)
		a.writeEntry(i, moved)
		a.names.Put(a.entryName(moved), i)
	}
	clear(a.data[a.entryOff(last) : a.entryOff(last)+format.DirEntrySize])
	h.SetDirCount(last)
	return nil
}
