package hashpart

import (
	"fmt"

	parterrors "github.com/tamirms/hashpart/errors"
)

// Verify checks a collected outcome against the dataset it was produced from:
//
//   - every bucket holds only tuples whose key routes to it
//   - the bucket sizes add up to N, so no tuple was lost or duplicated
//   - the multiset of tuples equals the dataset's (via Digest)
//
// Verify must only be called after Partition has returned.
func Verify(data *Dataset, out *Outcome) error {
	if !out.Collected() {
		return parterrors.ErrNotCollected
	}
	router, err := NewRouter(out.HashBits)
	if err != nil {
		return err
	}

	n := uint64(data.Len())
	if out.Written != n {
		return fmt.Errorf("%w: %d tuples written, dataset has %d", parterrors.ErrVerification, out.Written, n)
	}

	var (
		seen      uint64
		misrouted error
	)
	out.Each(func(bucket uint64, t Tuple) {
		seen++
		if misrouted == nil && router.Bucket(t.Key) != bucket {
			misrouted = fmt.Errorf("%w: key %d found in bucket %d, routes to %d",
				parterrors.ErrVerification, t.Key, bucket, router.Bucket(t.Key))
		}
	})
	if misrouted != nil {
		return misrouted
	}
	if seen != n {
		return fmt.Errorf("%w: buckets hold %d tuples, dataset has %d", parterrors.ErrVerification, seen, n)
	}

	var want uint64
	for _, t := range data.Tuples() {
		want += tupleHash(router.Bucket(t.Key), t)
	}
	if got, _ := out.Digest(); got != want {
		return fmt.Errorf("%w: bucket contents differ from dataset (digest %016x, want %016x)",
			parterrors.ErrVerification, got, want)
	}
	return nil
}
