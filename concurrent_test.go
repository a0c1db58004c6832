package hashpart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	parterrors "github.com/tamirms/hashpart/errors"
)

// TestConcurrentConservation checks every tuple is written exactly once
// and each bucket holds only keys that route to it.
func TestConcurrentConservation(t *testing.T) {
	data := randomDataset(newTestRNG(t), 100000)
	for _, threads := range []int{1, 2, 7, 16} {
		out, err := Partition(context.Background(), data,
			WithThreads(threads), WithHashBits(8), WithStrategy(Concurrent), WithCollect(true))
		if err != nil {
			t.Fatalf("threads=%d: %v", threads, err)
		}
		var sum uint64
		for b, n := range out.Sizes {
			sum += n
			if n > out.BucketCapacity {
				t.Fatalf("threads=%d: bucket %d holds %d, capacity %d", threads, b, n, out.BucketCapacity)
			}
		}
		if sum != uint64(data.Len()) {
			t.Fatalf("threads=%d: sizes sum to %d, want %d", threads, sum, data.Len())
		}
		if err := Verify(data, out); err != nil {
			t.Fatalf("threads=%d: %v", threads, err)
		}
	}
}

// TestConcurrentMatchesIndependent compares bucket multisets of both
// strategies, since concurrent arrival order is unspecified.
func TestConcurrentMatchesIndependent(t *testing.T) {
	data := randomDataset(newTestRNG(t), 40000)
	ind, err := Partition(context.Background(), data,
		WithThreads(4), WithHashBits(6), WithCollect(true))
	if err != nil {
		t.Fatal(err)
	}
	con, err := Partition(context.Background(), data,
		WithThreads(4), WithHashBits(6), WithStrategy(Concurrent), WithCollect(true))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(bucketMultisets(t, ind), bucketMultisets(t, con)); diff != "" {
		t.Fatalf("bucket contents differ (-independent +concurrent):\n%s", diff)
	}
	if diff := cmp.Diff(ind.Sizes, con.Sizes); diff != "" {
		t.Fatalf("sizes differ (-independent +concurrent):\n%s", diff)
	}
}

// TestConcurrentOverflow routes every key to bucket 0, which cannot hold
// more than 1.5x the average occupancy.
func TestConcurrentOverflow(t *testing.T) {
	out, err := Partition(context.Background(), congruentDataset(1000, 32),
		WithThreads(4), WithHashBits(4), WithStrategy(Concurrent), WithCollect(true))
	if out != nil {
		t.Fatal("overflowed pass returned an outcome")
	}
	if !errors.Is(err, parterrors.ErrOverflow) {
		t.Fatalf("got %v, want ErrOverflow", err)
	}
	var overflow *parterrors.OverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("error %v is not an *OverflowError", err)
	}
	// ceil(ceil(1000/16) * 1.5) = 95
	if overflow.Bucket != 0 || overflow.Capacity != 95 || overflow.Index < 95 {
		t.Fatalf("unexpected overflow %+v", overflow)
	}
}

func TestConcurrentExplicitCapacity(t *testing.T) {
	data := sequentialDataset(8)

	out, err := Partition(context.Background(), data,
		WithThreads(2), WithHashBits(1), WithStrategy(Concurrent), WithBucketCapacity(4), WithCollect(true))
	if err != nil {
		t.Fatalf("exact capacity: %v", err)
	}
	if out.BucketCapacity != 4 {
		t.Fatalf("BucketCapacity = %d, want 4", out.BucketCapacity)
	}

	_, err = Partition(context.Background(), data,
		WithThreads(2), WithHashBits(1), WithStrategy(Concurrent), WithBucketCapacity(3))
	if !errors.Is(err, parterrors.ErrOverflow) {
		t.Fatalf("capacity 3: got %v, want ErrOverflow", err)
	}
}

func TestBucketCapacity(t *testing.T) {
	cases := []struct {
		name       string
		n, buckets uint64
		opts       []Option
		want       uint64
	}{
		{"default factor", 1000, 16, nil, 95},
		{"exact average", 8, 2, nil, 6},
		{"factor one", 1000, 16, []Option{WithOverProvision(1)}, 63},
		{"poisson margin", 1000, 16, []Option{WithPoissonMargin(7)}, 118},
		{"poisson below factor", 1000, 16, []Option{WithPoissonMargin(0.1)}, 95},
		{"explicit", 1000, 16, []Option{WithBucketCapacity(10)}, 10},
		{"empty dataset", 0, 16, nil, 0},
		{"single bucket capped at n", 7, 1, nil, 7},
		{"huge factor capped at n", 1000, 1, []Option{WithOverProvision(1e13)}, 1000},
		{"huge poisson margin capped at n", 1000, 16, []Option{WithPoissonMargin(1e300)}, 1000},
		{"explicit capped at n", 8, 2, []Option{WithBucketCapacity(1 << 60)}, 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			for _, opt := range tc.opts {
				opt(cfg)
			}
			if got := bucketCapacity(tc.n, tc.buckets, cfg); got != tc.want {
				t.Fatalf("bucketCapacity(%d, %d) = %d, want %d", tc.n, tc.buckets, got, tc.want)
			}
		})
	}
}

func TestClaimAndWrite(t *testing.T) {
	s, err := newSharedBuckets(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range uint64(2) {
		if err := s.claimAndWrite(1, Tuple{Key: 2*i + 1, Payload: i}); err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
	}
	err = s.claimAndWrite(1, Tuple{Key: 99})
	var overflow *parterrors.OverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("third claim: got %v, want *OverflowError", err)
	}
	if *overflow != (parterrors.OverflowError{Bucket: 1, Index: 2, Capacity: 2}) {
		t.Fatalf("unexpected overflow %+v", overflow)
	}

	want := []Tuple{{Key: 1, Payload: 0}, {Key: 3, Payload: 1}}
	if diff := cmp.Diff(want, s.bucket(1)); diff != "" {
		t.Fatalf("bucket 1 (-want +got):\n%s", diff)
	}
	if cap(s.bucket(1)) != 2 {
		t.Fatalf("bucket 1 cap %d, want 2", cap(s.bucket(1)))
	}
	if s.occupied(0) != 0 || len(s.bucket(0)) != 0 {
		t.Fatal("bucket 0 should be empty")
	}

	// Appending to a full bucket must not spill into its neighbour.
	for i := range uint64(2) {
		if err := s.claimAndWrite(0, Tuple{Key: 2 * i}); err != nil {
			t.Fatal(err)
		}
	}
	_ = append(s.bucket(0), Tuple{Key: 42})
	if s.slots[2] != (Tuple{Key: 1, Payload: 0}) {
		t.Fatal("append to bucket 0 overwrote bucket 1")
	}
}

// TestClaimAndWriteRace has many goroutines claim more slots than exist:
// exactly capacity claims succeed and every slot is written once.
func TestClaimAndWriteRace(t *testing.T) {
	const workers, perWorker, capacity = 8, 1000, 4000
	s, err := newSharedBuckets(1, capacity)
	if err != nil {
		t.Fatal(err)
	}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		overflows int
	)
	for w := range workers {
		wg.Go(func() {
			local := 0
			for i := range perWorker {
				if err := s.claimAndWrite(0, Tuple{Key: uint64(w), Payload: uint64(i) + 1}); err != nil {
					local++
				}
			}
			mu.Lock()
			overflows += local
			mu.Unlock()
		})
	}
	wg.Wait()

	if overflows != workers*perWorker-capacity {
		t.Fatalf("%d overflows, want %d", overflows, workers*perWorker-capacity)
	}
	if s.occupied(0) != capacity {
		t.Fatalf("occupied %d, want %d", s.occupied(0), capacity)
	}
	for i, tup := range s.bucket(0) {
		if tup.Payload == 0 {
			t.Fatalf("slot %d was never written", i)
		}
	}
}

func TestNewSharedBucketsRejectsHugeCapacity(t *testing.T) {
	for _, tc := range []struct{ buckets, capacity uint64 }{
		{1 << 40, 1 << 40},
		{1 << 20, 1 << 17},
		{1, maxSharedBytes},
	} {
		_, err := newSharedBuckets(tc.buckets, tc.capacity)
		if !errors.Is(err, parterrors.ErrInvalidCapacity) {
			t.Fatalf("%d x %d: got %v, want ErrInvalidCapacity", tc.buckets, tc.capacity, err)
		}
	}
}

// TestConcurrentOversizedCapacity passes capacities the validator accepts
// but no dataset can fill; they are capped at N instead of allocated.
func TestConcurrentOversizedCapacity(t *testing.T) {
	cases := []struct {
		name string
		data *Dataset
		opts []Option
		want uint64
	}{
		{"huge factor", sequentialDataset(1000), []Option{WithHashBits(0), WithOverProvision(1e13)}, 1000},
		{"huge explicit capacity", sequentialDataset(8), []Option{WithHashBits(1), WithBucketCapacity(1 << 60)}, 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := append([]Option{WithStrategy(Concurrent), WithThreads(2), WithCollect(true)}, tc.opts...)
			out, err := Partition(context.Background(), tc.data, opts...)
			if err != nil {
				t.Fatal(err)
			}
			if out.BucketCapacity != tc.want {
				t.Fatalf("BucketCapacity = %d, want %d", out.BucketCapacity, tc.want)
			}
			if err := Verify(tc.data, out); err != nil {
				t.Fatal(err)
			}
		})
	}

	// Capped at N = 2^17 per bucket, 2^20 buckets would still need 2 TiB.
	_, err := Partition(context.Background(), sequentialDataset(1<<17),
		WithStrategy(Concurrent), WithHashBits(20), WithOverProvision(1e13))
	if !errors.Is(err, parterrors.ErrInvalidCapacity) || !errors.Is(err, parterrors.ErrConfig) {
		t.Fatalf("got %v, want ErrInvalidCapacity", err)
	}
}
