//go:build !linux && !darwin

package hashpart

import "os"

// preallocateFile sets the file length. Blocks may be allocated lazily.
func preallocateFile(file *os.File, size int64) error {
	return file.Truncate(size)
}
