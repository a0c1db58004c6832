package hashpart

import (
	"errors"
	"testing"

	parterrors "github.com/tamirms/hashpart/errors"
)

// TestRouteMatchesUnsignedModulo verifies routing is key mod 2^b computed
// unsigned, including keys with the top bit set.
func TestRouteMatchesUnsignedModulo(t *testing.T) {
	rng := newTestRNG(t)
	for i := range 10000 {
		key := rng.Uint64()
		b := uint32(rng.IntN(MaxHashBits + 1))
		got, err := Route(key, b)
		if err != nil {
			t.Fatalf("iter %d: Route(%d, %d): %v", i, key, b, err)
		}
		if want := key % (uint64(1) << b); got != want {
			t.Fatalf("iter %d: Route(0x%X, %d)=%d, want %d", i, key, b, got, want)
		}
	}
}

func TestRouteEdgeCases(t *testing.T) {
	cases := []struct {
		key  uint64
		bits uint32
		want uint64
	}{
		{1 << 63, 1, 0},
		{1 << 63, 10, 0},
		{1<<63 | 5, 3, 5},
		{^uint64(0), 4, 15},
		{12345, 0, 0},
		{^uint64(0), MaxHashBits, 1<<MaxHashBits - 1},
	}
	for _, tc := range cases {
		got, err := Route(tc.key, tc.bits)
		if err != nil {
			t.Fatalf("Route(0x%X, %d): %v", tc.key, tc.bits, err)
		}
		if got != tc.want {
			t.Errorf("Route(0x%X, %d)=%d, want %d", tc.key, tc.bits, got, tc.want)
		}
	}
}

func TestRouteRejectsTooManyBits(t *testing.T) {
	for _, b := range []uint32{MaxHashBits + 1, 63, 64, 1000} {
		if _, err := Route(1, b); !errors.Is(err, parterrors.ErrInvalidHashBits) {
			t.Errorf("Route(1, %d): got %v, want ErrInvalidHashBits", b, err)
		}
	}
}

func TestNewRouter(t *testing.T) {
	if _, err := NewRouter(-1); !errors.Is(err, parterrors.ErrInvalidHashBits) {
		t.Errorf("NewRouter(-1): got %v, want ErrInvalidHashBits", err)
	}
	if _, err := NewRouter(MaxHashBits + 1); !errors.Is(err, parterrors.ErrInvalidHashBits) {
		t.Errorf("NewRouter(%d): got %v, want ErrInvalidHashBits", MaxHashBits+1, err)
	}

	r, err := NewRouter(10)
	if err != nil {
		t.Fatal(err)
	}
	if r.Bits() != 10 || r.NumBuckets() != 1024 {
		t.Fatalf("NewRouter(10): bits %d, buckets %d", r.Bits(), r.NumBuckets())
	}
	rng := newTestRNG(t)
	for range 1000 {
		key := rng.Uint64()
		want, _ := Route(key, 10)
		if got := r.Bucket(key); got != want {
			t.Fatalf("Bucket(0x%X)=%d, Route gives %d", key, got, want)
		}
	}

	zero, err := NewRouter(0)
	if err != nil {
		t.Fatal(err)
	}
	if zero.NumBuckets() != 1 || zero.Bucket(^uint64(0)) != 0 {
		t.Fatalf("NewRouter(0): buckets %d, bucket(max) %d", zero.NumBuckets(), zero.Bucket(^uint64(0)))
	}
}

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"1":           Independent,
		"independent": Independent,
		"Independent": Independent,
		"2":           Concurrent,
		" concurrent": Concurrent,
	}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"", "0", "3", "shared"} {
		if _, err := ParseStrategy(in); !errors.Is(err, parterrors.ErrInvalidStrategy) {
			t.Errorf("ParseStrategy(%q): got %v, want ErrInvalidStrategy", in, err)
		}
	}
	if Strategy(9).String() != "Strategy(9)" {
		t.Errorf("unexpected String for unknown strategy: %s", Strategy(9))
	}
}
