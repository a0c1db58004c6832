//go:build darwin

package hashpart

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocateFile reserves size bytes of disk with F_PREALLOCATE, then sets
// the file length; F_PREALLOCATE alone does not.
func preallocateFile(file *os.File, size int64) error {
	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Length:  size,
	}
	if err := unix.FcntlFstore(file.Fd(), unix.F_PREALLOCATE, &fst); err != nil {
		return unix.Ftruncate(int(file.Fd()), size)
	}
	return unix.Ftruncate(int(file.Fd()), size)
}
