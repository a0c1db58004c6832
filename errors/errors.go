// Package errors defines all exported error sentinels for the hashpart library.
//
// This is the single source of truth for error values. Specific errors wrap
// one of the four categories (ErrConfig, ErrIO, ErrBounds, ErrOverflow), so
// errors.Is matches both the specific sentinel and its category.
package errors

import (
	"errors"
	"fmt"
)

// Categories
var (
	ErrConfig   = errors.New("hashpart: invalid configuration")
	ErrIO       = errors.New("hashpart: dataset I/O failure")
	ErrBounds   = errors.New("hashpart: chunk range out of bounds")
	ErrOverflow = errors.New("hashpart: bucket capacity exceeded")
)

// Configuration errors
var (
	ErrInvalidThreads       = fmt.Errorf("%w: num_threads must be at least 1", ErrConfig)
	ErrInvalidHashBits      = fmt.Errorf("%w: hash_bits must be in [0, 62]", ErrConfig)
	ErrTooManyBuckets       = fmt.Errorf("%w: hash_bits too large to allocate 2^b buckets", ErrConfig)
	ErrInvalidStrategy      = fmt.Errorf("%w: unknown partitioning method", ErrConfig)
	ErrInvalidOverProvision = fmt.Errorf("%w: over-provisioning factor must be finite and >= 1", ErrConfig)
	ErrInvalidCapacity      = fmt.Errorf("%w: bucket capacity must be positive", ErrConfig)
)

// Dataset errors
var (
	ErrTruncatedDataset = fmt.Errorf("%w: file length is not a multiple of the 16-byte record size", ErrIO)
)

// Verification errors
var (
	ErrNotCollected = errors.New("hashpart: outcome carries no bucket contents (run with collection enabled)")
	ErrVerification = errors.New("hashpart: partition verification failed")
)

// OverflowError reports a claimed slot that falls outside a concurrent
// bucket's fixed capacity. The write it describes was not performed.
type OverflowError struct {
	Bucket   uint64
	Index    uint64
	Capacity uint64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%v: bucket %d claimed slot %d (capacity %d)",
		ErrOverflow, e.Bucket, e.Index, e.Capacity)
}

// Unwrap returns ErrOverflow.
func (e *OverflowError) Unwrap() error { return ErrOverflow }
