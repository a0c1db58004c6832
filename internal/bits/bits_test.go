package bits

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// TestLowBitsMatchesModulo verifies LowBits(k, b) == k % 2^b for random
// keys and every legal b.
func TestLowBitsMatchesModulo(t *testing.T) {
	rng := newTestRNG(t)
	const iterations = 10000

	for i := 0; i < iterations; i++ {
		key := rng.Uint64()
		b := uint32(rng.IntN(MaxShift + 1))
		got := LowBits(key, b)
		want := key % Pow2(b)
		if got != want {
			t.Fatalf("iter %d: LowBits(0x%X, %d)=%d, want %d", i, key, b, got, want)
		}
		if got >= Pow2(b) {
			t.Fatalf("iter %d: LowBits(0x%X, %d)=%d out of range", i, key, b, got)
		}
	}
}

// TestLowBitsTopBitSet covers keys that a signed reinterpretation would
// turn negative.
func TestLowBitsTopBitSet(t *testing.T) {
	tests := []struct {
		key  uint64
		b    uint32
		want uint64
	}{
		{1 << 63, 0, 0},
		{1 << 63, 1, 0},
		{1 << 63, 62, 0},
		{1<<63 | 5, 3, 5},
		{math.MaxUint64, 1, 1},
		{math.MaxUint64, 62, Pow2(62) - 1},
	}
	for _, tt := range tests {
		if got := LowBits(tt.key, tt.b); got != tt.want {
			t.Errorf("LowBits(0x%X, %d) = %d, want %d", tt.key, tt.b, got, tt.want)
		}
	}
}

func TestMask(t *testing.T) {
	if got := Mask(0); got != 0 {
		t.Errorf("Mask(0) = %d, want 0", got)
	}
	if got := Mask(1); got != 1 {
		t.Errorf("Mask(1) = %d, want 1", got)
	}
	if got := Mask(MaxShift); got != 0x3FFFFFFFFFFFFFFF {
		t.Errorf("Mask(%d) = 0x%X", MaxShift, got)
	}
}

func TestCeilDiv(t *testing.T) {
	tests := []struct{ n, d, want uint64 }{
		{0, 1, 0},
		{0, 7, 0},
		{1, 7, 1},
		{7, 7, 1},
		{8, 7, 2},
		{8, 2, 4},
		{math.MaxUint64, 1, math.MaxUint64},
		{math.MaxUint64, 2, 1 << 63},
	}
	for _, tt := range tests {
		if got := CeilDiv(tt.n, tt.d); got != tt.want {
			t.Errorf("CeilDiv(%d, %d) = %d, want %d", tt.n, tt.d, got, tt.want)
		}
	}
}
