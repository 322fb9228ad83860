//go:build !linux && !darwin

package mmfile

import (
	"io"
	"os"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// alloc returns a zeroed, 8-byte aligned buffer of size bytes.
func (m *Mapping) alloc(size int64) []byte {
	m.words = make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&m.words[0])), len(m.words)*8)[:size]
}

// Open reads the file into memory when mmap is not available.
func Open(path string, writable bool) (*Mapping, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	size := st.Size()
	if size == 0 {
		_ = f.Close()
		return nil, errors.Wrap(ErrEmpty, path)
	}
	if err := checkSize(size); err != nil {
		_ = f.Close()
		return nil, err
	}

	m := &Mapping{path: path, size: size, writable: writable}
	m.data = m.alloc(size)
	if _, err := io.ReadFull(f, m.data); err != nil {
		_ = f.Close()
		return nil, err
	}
	if writable {
		m.f = f
	} else {
		_ = f.Close()
	}
	return m, nil
}

// Create creates or truncates path and returns a writable in-memory image of it.
func Create(path string, size int64) (*Mapping, error) {
	if size <= 0 {
		return nil, errors.Newf("mmfile: create with %d bytes", size)
	}
	if err := checkSize(size); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return nil, err
	}
	m := &Mapping{f: f, path: path, size: size, writable: true}
	m.data = m.alloc(size)
	return m, nil
}

// Resize truncates the file and reallocates the in-memory image.
func (m *Mapping) Resize(newSize int64) error {
	if err := m.checkResize(newSize); err != nil {
		return err
	}
	if newSize == m.size {
		return nil
	}
	if err := m.f.Truncate(newSize); err != nil {
		return errors.Wrapf(err, "mmfile: truncate to %d", newSize)
	}
	old := m.data
	m.data = m.alloc(newSize)
	copy(m.data, old)
	m.size = newSize
	return nil
}

// Flush writes the whole image back to the file.
func (m *Mapping) Flush(mode FlushMode) error {
	if m == nil || m.closed {
		return ErrClosed
	}
	if !m.writable {
		return ErrReadOnly
	}
	if _, err := m.f.WriteAt(m.data, 0); err != nil {
		return errors.Wrap(err, "mmfile: write back")
	}
	if mode == FlushDataOnly {
		return nil
	}
	return m.f.Sync()
}

// Close writes back a writable image and closes the file.
func (m *Mapping) Close() error {
	if m == nil || m.closed {
		return nil
	}
	var err error
	if m.writable {
		err = m.Flush(FlushDataOnly)
	}
	m.closed = true
	if m.f != nil {
		if cerr := m.f.Close(); err == nil {
			err = cerr
		}
		m.f = nil
	}
	m.data, m.words = nil, nil
	return err
}
