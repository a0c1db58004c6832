package hashpart

import (
	"fmt"

	parterrors "github.com/tamirms/hashpart/errors"
	intbits "github.com/tamirms/hashpart/internal/bits"
)

// Chunk is the half-open index range [Start, End) of the dataset assigned
// to one worker.
type Chunk struct {
	Start uint64
	End   uint64
}

// Len returns the number of tuples in the chunk.
func (c Chunk) Len() uint64 {
	return c.End - c.Start
}

// Chunks splits n tuples into numThreads contiguous, non-overlapping ranges
// of ceil(n/numThreads) tuples each. Only trailing chunks may be shorter;
// when numThreads exceeds what n needs, the surplus chunks are empty and
// positioned at n, never past it.
func Chunks(n uint64, numThreads int) ([]Chunk, error) {
	if numThreads <= 0 {
		return nil, fmt.Errorf("%w: got %d", parterrors.ErrInvalidThreads, numThreads)
	}
	size := intbits.CeilDiv(n, uint64(numThreads))
	chunks := make([]Chunk, numThreads)
	var start uint64
	for i := range chunks {
		end := start + size
		if end > n || end < start {
			end = n
		}
		chunks[i] = Chunk{Start: start, End: end}
		start = end
	}
	return chunks, nil
}

// check rejects a range that would index outside a dataset of n tuples.
func (c Chunk) check(n uint64) error {
	if c.Start > c.End || c.End > n {
		return fmt.Errorf("%w: [%d, %d) with %d tuples", parterrors.ErrBounds, c.Start, c.End, n)
	}
	return nil
}
