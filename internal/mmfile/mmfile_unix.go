//go:build linux || darwin

package mmfile

import (
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

func protFor(writable bool) int {
	if writable {
		return unix.PROT_READ | unix.PROT_WRITE
	}
	return unix.PROT_READ
}

func mmap(f *os.File, size int64, writable bool) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), protFor(writable), unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mmfile: mmap %d bytes", size)
	}
	return data, nil
}

func munmap(data []byte) error {
	if data == nil {
		return nil
	}
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

// Open maps an existing, non-empty file.
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
	data, err := mmap(f, size, writable)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	m := &Mapping{path: path, data: data, size: size, writable: writable}
	if writable {
		m.f = f
	} else {
		// The mapping keeps the pages alive; the descriptor is not needed.
		_ = f.Close()
	}
	return m, nil
}

// Create creates or truncates path, extends it to size zero bytes, and maps
// it read-write.
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
		return nil, errors.Wrap(err, "mmfile: size new file")
	}
	data, err := mmap(f, size, true)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Mapping{f: f, path: path, data: data, size: size, writable: true}, nil
}

// Resize changes the file length and remaps it. Bytes added at the end are
// zero. On failure the old mapping is restored where possible.
func (m *Mapping) Resize(newSize int64) error {
	if err := m.checkResize(newSize); err != nil {
		return err
	}
	if newSize == m.size {
		return nil
	}

	if err := munmap(m.data); err != nil {
		return errors.Wrap(err, "mmfile: unmap before resize")
	}
	m.data = nil

	if err := m.f.Truncate(newSize); err != nil {
		m.data, _ = mmap(m.f, m.size, true)
		return errors.Wrapf(err, "mmfile: truncate to %d", newSize)
	}

	data, err := mmap(m.f, newSize, true)
	if err != nil {
		// Put the file back the way it was, then try to restore the old view.
		_ = m.f.Truncate(m.size)
		m.data, _ = mmap(m.f, m.size, true)
		return errors.Wrap(err, "mmfile: remap after resize")
	}
	m.data = data
	m.size = newSize
	return nil
}

// Flush makes stores to a writable mapping durable according to mode.
func (m *Mapping) Flush(mode FlushMode) error {
	if m == nil || m.closed {
		return ErrClosed
	}
	if !m.writable {
		return ErrReadOnly
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return errors.Wrap(err, "mmfile: msync")
	}
	if mode == FlushDataOnly {
		return nil
	}
	if err := syncFile(int(m.f.Fd()), mode == FlushFull); err != nil {
		return errors.Wrap(err, "mmfile: sync")
	}
	return nil
}

// Close unmaps the region and closes the file. It does not flush.
func (m *Mapping) Close() error {
	if m == nil || m.closed {
		return nil
	}
	m.closed = true
	err := munmap(m.data)
	m.data = nil
	if m.f != nil {
		if cerr := m.f.Close(); err == nil {
			err = cerr
		}
		m.f = nil
	}
	return err
}
