//go:build linux

package mmfile

import "golang.org/x/sys/unix"

// syncFile issues fdatasync; the full flag has no stronger variant on Linux.
func syncFile(fd int, _ bool) error {
	return unix.Fdatasync(fd)
}
