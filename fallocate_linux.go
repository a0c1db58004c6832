//go:build linux

package hashpart

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocateFile reserves size bytes of disk for a dataset about to be
// written through a mapping, then sets the file length.
func preallocateFile(file *os.File, size int64) error {
	if err := unix.Fallocate(int(file.Fd()), 0, 0, size); err != nil {
		// Filesystems without fallocate (NFS, some FUSE) still get a sized file.
		return unix.Ftruncate(int(file.Fd()), size)
	}
	return unix.Ftruncate(int(file.Fd()), size)
}
