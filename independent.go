package hashpart

import (
	"context"

	intbits "github.com/tamirms/hashpart/internal/bits"
)

// independentResult is what a worker hands back to the coordinator.
// buckets is nil unless the pass collects.
type independentResult struct {
	thread  int
	sizes   []uint64
	buckets [][]Tuple
}

// runIndependent routes each chunk into 2^b buckets private to its worker.
// Workers share nothing but the read-only dataset; results travel back over
// a channel buffered for every worker, so no send blocks.
func (p *pass) runIndependent(ctx context.Context) (*Outcome, error) {
	numBuckets := p.router.NumBuckets()
	results := make(chan independentResult, len(p.chunks))

	err := p.spawn(ctx, func(ctx context.Context, thread int, chunk []Tuple) error {
		// Surplus workers with empty chunks allocate nothing.
		if len(chunk) == 0 {
			return nil
		}
		initial := intbits.CeilDiv(uint64(len(chunk)), numBuckets)
		buckets := make([][]Tuple, numBuckets)
		for b := range buckets {
			buckets[b] = make([]Tuple, 0, initial)
		}

		countdown := contextCheckInterval
		for _, t := range chunk {
			if countdown--; countdown == 0 {
				countdown = contextCheckInterval
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			b := p.router.Bucket(t.Key)
			buckets[b] = append(buckets[b], t)
		}

		res := independentResult{thread: thread, sizes: make([]uint64, numBuckets)}
		for b, bucket := range buckets {
			res.sizes[b] = uint64(len(bucket))
		}
		if p.cfg.collect {
			res.buckets = buckets
		}
		results <- res
		return nil
	})
	close(results)
	if err != nil {
		return nil, err
	}

	out := p.newOutcome()
	if p.cfg.collect {
		// Entries of workers with empty chunks stay nil.
		out.ThreadBuckets = make([][][]Tuple, len(p.chunks))
	}
	for res := range results {
		for b, n := range res.sizes {
			out.Sizes[b] += n
			out.Written += n
		}
		if p.cfg.collect {
			out.ThreadBuckets[res.thread] = res.buckets
		}
	}
	return out, nil
}
