//go:build linux

package hashpart

import (
	"os"

	"golang.org/x/sys/unix"
)

// fadviseSequential enables readahead for a dataset file that is about to
// be scanned front to back. Best-effort.
func fadviseSequential(f *os.File, length int64) {
	_ = unix.Fadvise(int(f.Fd()), 0, length, unix.FADV_SEQUENTIAL)
}
