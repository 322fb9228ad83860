//go:build darwin

package mmfile

import "golang.org/x/sys/unix"

// syncFile uses F_FULLFSYNC when full is set so the drive cache is flushed,
// and plain fsync otherwise; darwin has no fdatasync.
func syncFile(fd int, full bool) error {
	if full {
		_, err := unix.FcntlInt(uintptr(fd), unix.F_FULLFSYNC, 0)
		return err
	}
	return unix.Fsync(fd)
}
