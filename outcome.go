package hashpart

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Outcome describes a completed partitioning pass.
//
// Sizes and Written are always populated. The realized buckets are only
// present in collection mode (WithCollect): ThreadBuckets for the
// Independent strategy, indexed [thread][bucket], and Buckets for the
// Concurrent strategy, indexed [bucket]. A worker whose chunk was empty has
// a nil ThreadBuckets entry. Bucket contents must be treated as read-only.
type Outcome struct {
	Strategy   Strategy
	Threads    int
	HashBits   int
	NumBuckets uint64

	// BucketCapacity is the fixed slot count of each concurrent bucket.
	// Zero for the Independent strategy.
	BucketCapacity uint64

	// Sizes holds the number of tuples routed to each bucket, summed over
	// all workers.
	Sizes   []uint64
	Written uint64

	// Pinned is the number of workers whose CPU pin succeeded.
	Pinned  int
	Elapsed time.Duration

	ThreadBuckets [][][]Tuple
	Buckets       [][]Tuple
}

// Collected reports whether the outcome carries bucket contents.
func (o *Outcome) Collected() bool {
	return o.ThreadBuckets != nil || o.Buckets != nil
}

// Bucket returns every tuple routed to bucket b. For the Independent
// strategy the per-thread buckets are concatenated in thread order into a
// new slice. Returns nil when the outcome was not collected.
func (o *Outcome) Bucket(b uint64) []Tuple {
	if b >= o.NumBuckets {
		return nil
	}
	if o.Buckets != nil {
		return o.Buckets[b]
	}
	if o.ThreadBuckets == nil {
		return nil
	}
	merged := make([]Tuple, 0, o.Sizes[b])
	for _, buckets := range o.ThreadBuckets {
		if buckets != nil {
			merged = append(merged, buckets[b]...)
		}
	}
	return merged
}

// Each calls fn for every collected tuple with the bucket it landed in.
// Iteration order is unspecified.
func (o *Outcome) Each(fn func(bucket uint64, t Tuple)) {
	for b, bucket := range o.Buckets {
		for _, t := range bucket {
			fn(uint64(b), t)
		}
	}
	for _, buckets := range o.ThreadBuckets {
		for b, bucket := range buckets {
			for _, t := range bucket {
				fn(uint64(b), t)
			}
		}
	}
}

// Digest returns an order-independent fingerprint of the collected
// (bucket, key, payload) triples: the wrapping sum of their xxHash64 values.
// Two outcomes over the same dataset and hash bits have equal digests
// regardless of strategy, thread count or arrival order. ok is false when
// the outcome was not collected.
func (o *Outcome) Digest() (sum uint64, ok bool) {
	if !o.Collected() {
		return 0, false
	}
	o.Each(func(bucket uint64, t Tuple) {
		sum += tupleHash(bucket, t)
	})
	return sum, true
}

// tupleHash hashes one routed tuple for Digest.
func tupleHash(bucket uint64, t Tuple) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], bucket)
	binary.LittleEndian.PutUint64(buf[8:16], t.Key)
	binary.LittleEndian.PutUint64(buf[16:24], t.Payload)
	return xxhash.Sum64(buf[:])
}

// Throughput returns tuples written per second.
func (o *Outcome) Throughput() float64 {
	if o.Elapsed <= 0 {
		return 0
	}
	return float64(o.Written) / o.Elapsed.Seconds()
}
