package hashpart

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/edsrzf/mmap-go"

	parterrors "github.com/tamirms/hashpart/errors"
	"github.com/tamirms/hashpart/internal/encoding"
)

// Tuple's in-memory layout is the on-disk record layout (two native-endian
// uint64s), which lets OpenMapped view file pages as []Tuple. This fails to
// compile if the sizes ever diverge.
var _ = [1]struct{}{}[unsafe.Sizeof(Tuple{})-encoding.RecordSize]

// Load reads a dataset file into memory. The file is a flat sequence of
// 16-byte records (8-byte native-endian key, 8-byte native-endian payload)
// with no header.
//
// Fails with an error wrapping ErrIO when the file is missing or
// unreadable, and with ErrTruncatedDataset when its length is not a
// multiple of 16.
func Load(path string) (*Dataset, error) {
	f, n, err := openDatasetFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if n == 0 {
		return NewDataset(nil), nil
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %s: %w", parterrors.ErrIO, path, err)
	}
	tuples := make([]Tuple, n)
	for i := range tuples {
		tuples[i].Key, tuples[i].Payload = encoding.ReadRecord(mm[i*encoding.RecordSize:])
	}
	if err := mm.Unmap(); err != nil {
		return nil, fmt.Errorf("%w: unmap %s: %w", parterrors.ErrIO, path, err)
	}
	return NewDataset(tuples), nil
}

// OpenMapped maps a dataset file read-only and returns a Dataset viewing its
// pages directly, without copying. The Dataset must be closed once no pass
// or outcome refers to it; Outcome buckets hold copies and stay valid.
func OpenMapped(path string) (*Dataset, error) {
	f, n, err := openDatasetFile(path)
	if err != nil {
		return nil, err
	}
	// Per POSIX mmap(2) the descriptor may be closed once the mapping exists.
	defer f.Close()
	if n == 0 {
		return NewDataset(nil), nil
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %s: %w", parterrors.ErrIO, path, err)
	}
	return &Dataset{
		tuples: unsafe.Slice((*Tuple)(unsafe.Pointer(&mm[0])), n),
		mm:     mm,
	}, nil
}

// openDatasetFile opens path, validates its length and returns the record
// count.
func openDatasetFile(path string) (*os.File, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open dataset: %w", parterrors.ErrIO, err)
	}
	stat, err := f.Stat()
	if err != nil {
		return nil, 0, errors.Join(fmt.Errorf("%w: stat dataset: %w", parterrors.ErrIO, err), f.Close())
	}
	if stat.IsDir() {
		return nil, 0, errors.Join(fmt.Errorf("%w: %s is a directory", parterrors.ErrIO, path), f.Close())
	}
	n, exact := encoding.RecordCount(stat.Size())
	if !exact {
		return nil, 0, errors.Join(
			fmt.Errorf("%w: %s has %d bytes", parterrors.ErrTruncatedDataset, path, stat.Size()),
			f.Close())
	}
	if n > uint64(maxDatasetTuples) {
		return nil, 0, errors.Join(
			fmt.Errorf("%w: %s holds %d records, more than addressable", parterrors.ErrIO, path, n),
			f.Close())
	}
	fadviseSequential(f, stat.Size())
	return f, int(n), nil
}

// maxDatasetTuples keeps n*RecordSize within int range for slicing.
const maxDatasetTuples = int(^uint(0)>>1) / encoding.RecordSize
