package hashpart

import (
	"cmp"
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

// newTestRNG returns a PCG generator seeded from the test name, so every
// test gets its own reproducible stream.
func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// sequentialDataset returns n tuples with key i and payload i*7+1.
func sequentialDataset(n int) *Dataset {
	tuples := make([]Tuple, n)
	for i := range tuples {
		tuples[i] = Tuple{Key: uint64(i), Payload: uint64(i)*7 + 1}
	}
	return NewDataset(tuples)
}

// randomDataset returns n tuples with uniformly random keys and payloads.
func randomDataset(rng *rand.Rand, n int) *Dataset {
	tuples := make([]Tuple, n)
	for i := range tuples {
		tuples[i] = Tuple{Key: rng.Uint64(), Payload: rng.Uint64()}
	}
	return NewDataset(tuples)
}

// congruentDataset returns n tuples whose keys are all multiples of 2^shift.
func congruentDataset(n int, shift uint) *Dataset {
	tuples := make([]Tuple, n)
	for i := range tuples {
		tuples[i] = Tuple{Key: uint64(i) << shift, Payload: uint64(i)}
	}
	return NewDataset(tuples)
}

func compareTuples(a, b Tuple) int {
	if c := cmp.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return cmp.Compare(a.Payload, b.Payload)
}

// sortedCopy returns tuples sorted by (key, payload), leaving the input
// untouched.
func sortedCopy(tuples []Tuple) []Tuple {
	out := slices.Clone(tuples)
	slices.SortFunc(out, compareTuples)
	return out
}

// bucketMultisets returns the sorted contents of every bucket of a
// collected outcome.
func bucketMultisets(t testing.TB, out *Outcome) [][]Tuple {
	t.Helper()
	if !out.Collected() {
		t.Fatal("outcome was not collected")
	}
	sets := make([][]Tuple, out.NumBuckets)
	for b := range out.NumBuckets {
		sets[b] = sortedCopy(out.Bucket(b))
		if sets[b] == nil {
			sets[b] = []Tuple{}
		}
	}
	return sets
}
