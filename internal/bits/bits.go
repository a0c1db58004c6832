// Package bits provides low-level bit manipulation primitives.
package bits

// MaxShift is the largest b for which 1<<b leaves headroom in a uint64
// for size arithmetic (products with small factors, +1 adjustments).
const MaxShift = 62

// Mask returns 2^b - 1. Callers must ensure b <= MaxShift.
func Mask(b uint32) uint64 {
	return uint64(1)<<b - 1
}

// LowBits returns key mod 2^b using only unsigned arithmetic.
// The result lies in [0, 2^b) for every key, including keys with the
// top bit set.
func LowBits(key uint64, b uint32) uint64 {
	return key & Mask(b)
}

// Pow2 returns 2^b. Callers must ensure b <= MaxShift.
func Pow2(b uint32) uint64 {
	return uint64(1) << b
}

// CeilDiv returns ceil(n / d). d must be non-zero.
func CeilDiv(n, d uint64) uint64 {
	if n == 0 {
		return 0
	}
	return (n-1)/d + 1
}
