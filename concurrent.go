package hashpart

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/cpu"

	parterrors "github.com/tamirms/hashpart/errors"
	intbits "github.com/tamirms/hashpart/internal/bits"
)

// claimCursor is a bucket's write cursor. The padding keeps cursors of
// neighbouring buckets off the same cache line.
type claimCursor struct {
	next atomic.Uint64
	_    cpu.CacheLinePad
}

// sharedBuckets is the output of the Concurrent strategy: numBuckets regions
// of capacity slots each, laid out back to back in one slice, plus one claim
// cursor per region.
//
// Each slot is written at most once, by the worker whose fetch-and-increment
// returned its index. Slots are only read after every worker has joined.
type sharedBuckets struct {
	slots    []Tuple
	cursors  []claimCursor
	capacity uint64
}

// maxSharedBytes bounds the backing array of a concurrent pass (1 TiB).
const maxSharedBytes = 1 << 40

// bucketCapacity derives the fixed per-bucket capacity for n tuples spread
// over numBuckets buckets.
//
// The default is ceil(avg * overProvision) with avg = ceil(n / numBuckets).
// With a Poisson margin of k sigmas the capacity is raised to at least
// mu + k*sqrt(mu), since uniformly routed keys give Poisson-distributed
// bucket sizes with variance mu. No bucket can receive more than n tuples,
// so every policy is capped at n.
func bucketCapacity(n, numBuckets uint64, cfg *config) uint64 {
	if cfg.capacity > 0 {
		return min(uint64(cfg.capacity), n)
	}
	avg := intbits.CeilDiv(n, numBuckets)
	capacity := math.Ceil(float64(avg) * cfg.overProvision)
	if cfg.poissonSigmas > 0 && n > 0 {
		mu := float64(n) / float64(numBuckets)
		capacity = max(capacity, math.Ceil(mu+cfg.poissonSigmas*math.Sqrt(mu)))
	}
	if capacity >= float64(n) {
		return n
	}
	return uint64(capacity)
}

// newSharedBuckets allocates numBuckets regions of capacity slots.
func newSharedBuckets(numBuckets, capacity uint64) (*sharedBuckets, error) {
	const maxSlots = maxSharedBytes / uint64(unsafe.Sizeof(Tuple{}))
	if capacity > 0 && numBuckets > maxSlots/capacity {
		return nil, fmt.Errorf("%w: %d buckets x %d slots exceeds %d bytes",
			parterrors.ErrInvalidCapacity, numBuckets, capacity, uint64(maxSharedBytes))
	}
	return &sharedBuckets{
		slots:    make([]Tuple, numBuckets*capacity),
		cursors:  make([]claimCursor, numBuckets),
		capacity: capacity,
	}, nil
}

// claimAndWrite reserves the next slot of bucket and stores t there.
// A reservation at or past the bucket's capacity is reported as an
// *OverflowError and nothing is written.
func (s *sharedBuckets) claimAndWrite(bucket uint64, t Tuple) error {
	i := s.cursors[bucket].next.Add(1) - 1
	if i >= s.capacity {
		return &parterrors.OverflowError{Bucket: bucket, Index: i, Capacity: s.capacity}
	}
	s.slots[bucket*s.capacity+i] = t
	return nil
}

// occupied returns the number of written slots of bucket.
// Only valid after all writers have joined.
func (s *sharedBuckets) occupied(bucket uint64) uint64 {
	return min(s.cursors[bucket].next.Load(), s.capacity)
}

// bucket returns the written slots of bucket. The slice is capped so that
// appending to it cannot spill into the next region.
func (s *sharedBuckets) bucket(b uint64) []Tuple {
	lo := b * s.capacity
	return s.slots[lo : lo+s.occupied(b) : lo+s.capacity]
}

// runConcurrent routes every chunk into one shared set of buckets.
func (p *pass) runConcurrent(ctx context.Context) (*Outcome, error) {
	numBuckets := p.router.NumBuckets()
	capacity := bucketCapacity(uint64(len(p.tuples)), numBuckets, p.cfg)
	shared, err := newSharedBuckets(numBuckets, capacity)
	if err != nil {
		return nil, err
	}
	p.log.Debug("concurrent buckets allocated",
		zap.Uint64("capacity", capacity),
		zap.Int("slots", len(shared.slots)))

	err = p.spawn(ctx, func(ctx context.Context, _ int, chunk []Tuple) error {
		countdown := contextCheckInterval
		for _, t := range chunk {
			if countdown--; countdown == 0 {
				countdown = contextCheckInterval
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := shared.claimAndWrite(p.router.Bucket(t.Key), t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := p.newOutcome()
	out.BucketCapacity = capacity
	for b := range numBuckets {
		n := shared.occupied(b)
		out.Sizes[b] = n
		out.Written += n
	}
	if p.cfg.collect {
		out.Buckets = make([][]Tuple, numBuckets)
		for b := range numBuckets {
			out.Buckets[b] = shared.bucket(b)
		}
	}
	return out, nil
}
