//go:build linux

package hashpart

import "golang.org/x/sys/unix"

// MADV_POPULATE_WRITE, Linux 5.14+.
const madvPopulateWrite = 23

// prefaultForWrite populates the pages of a fresh writable mapping so the
// generator's sequential stores do not fault page by page. Older kernels
// reject the advice with EINVAL, which is ignored.
func prefaultForWrite(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, madvPopulateWrite)
}
