package hashpart

import (
	"encoding/binary"
	"fmt"

	"github.com/axiomhq/hyperloglog"
	"github.com/cespare/xxhash/v2"

	parterrors "github.com/tamirms/hashpart/errors"
	intbits "github.com/tamirms/hashpart/internal/bits"
)

// Stats summarizes how a dataset would spread over 2^b buckets.
type Stats struct {
	Tuples       uint64
	DistinctKeys uint64 // HyperLogLog estimate, ~1% relative error
	NumBuckets   uint64
	EmptyBuckets uint64
	MinBucket    uint64
	MaxBucket    uint64
	MeanBucket   float64

	// MinOverProvision is the smallest over-provisioning factor for which
	// a Concurrent pass over this dataset cannot overflow.
	MinOverProvision float64
}

// Inspect routes every key of data with hashBits and reports bucket skew.
// It does not move any tuples.
func Inspect(data *Dataset, hashBits int) (Stats, error) {
	if hashBits > MaxPartitionHashBits {
		return Stats{}, fmt.Errorf("%w: got %d, limit %d", parterrors.ErrTooManyBuckets, hashBits, MaxPartitionHashBits)
	}
	router, err := NewRouter(hashBits)
	if err != nil {
		return Stats{}, err
	}

	numBuckets := router.NumBuckets()
	sizes := make([]uint64, numBuckets)
	sketch := hyperloglog.New14()
	var buf [8]byte
	for _, t := range data.Tuples() {
		sizes[router.Bucket(t.Key)]++
		binary.LittleEndian.PutUint64(buf[:], t.Key)
		sketch.InsertHash(xxhash.Sum64(buf[:]))
	}

	st := Stats{
		Tuples:       uint64(data.Len()),
		DistinctKeys: sketch.Estimate(),
		NumBuckets:   numBuckets,
		MinBucket:    sizes[0],
	}
	for _, n := range sizes {
		st.MinBucket = min(st.MinBucket, n)
		st.MaxBucket = max(st.MaxBucket, n)
		if n == 0 {
			st.EmptyBuckets++
		}
	}
	st.MeanBucket = float64(st.Tuples) / float64(numBuckets)

	st.MinOverProvision = 1
	if avg := intbits.CeilDiv(st.Tuples, numBuckets); avg > 0 && st.MaxBucket > avg {
		st.MinOverProvision = float64(st.MaxBucket) / float64(avg)
	}
	return st, nil
}
