package hashpart

import (
	"fmt"

	parterrors "github.com/tamirms/hashpart/errors"
	intbits "github.com/tamirms/hashpart/internal/bits"
)

// MaxHashBits is the largest accepted number of hash bits. 2^62 still fits
// a uint64 with room for size arithmetic.
const MaxHashBits = intbits.MaxShift

// Route returns the bucket of key for 2^hashBits buckets: key mod 2^hashBits,
// computed unsigned.
func Route(key uint64, hashBits uint32) (uint64, error) {
	if hashBits > MaxHashBits {
		return 0, fmt.Errorf("%w: got %d", parterrors.ErrInvalidHashBits, hashBits)
	}
	return intbits.LowBits(key, hashBits), nil
}

// Router maps keys to buckets for a fixed, validated number of hash bits.
type Router struct {
	bits uint32
	mask uint64
}

// NewRouter validates hashBits and returns a Router for 2^hashBits buckets.
func NewRouter(hashBits int) (Router, error) {
	if hashBits < 0 || hashBits > MaxHashBits {
		return Router{}, fmt.Errorf("%w: got %d", parterrors.ErrInvalidHashBits, hashBits)
	}
	b := uint32(hashBits)
	return Router{bits: b, mask: intbits.Mask(b)}, nil
}

// Bucket returns the bucket index of key, in [0, NumBuckets()).
func (r Router) Bucket(key uint64) uint64 {
	return key & r.mask
}

// Bits returns the configured number of hash bits.
func (r Router) Bits() uint32 {
	return r.bits
}

// NumBuckets returns 2^bits.
func (r Router) NumBuckets() uint64 {
	return r.mask + 1
}
