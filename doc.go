// Package hashpart partitions an in-memory sequence of 16-byte key/payload
// tuples into 2^b hash buckets with several workers, using one of two output
// strategies. It is the redistribution step underneath parallel hash joins
// and hash aggregation.
//
// # Basic Usage
//
// Loading a dataset and partitioning it:
//
//	data, err := hashpart.Load("test.data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := hashpart.Partition(ctx, data,
//	    hashpart.WithThreads(8),
//	    hashpart.WithHashBits(12),
//	    hashpart.WithStrategy(hashpart.Concurrent),
//	    hashpart.WithCollect(true),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d tuples in %v\n", out.Written, out.Elapsed)
//
// # Strategies
//
// Independent: every worker owns 2^b growable buckets and appends to them
// without synchronization. Results come back per thread.
//
// Concurrent: all workers share 2^b fixed-capacity buckets. A worker claims
// a slot with an atomic fetch-and-increment on the bucket's cursor and then
// writes it. Capacity is ceil(N / 2^b) times an over-provisioning factor
// (1.5 by default); a claim past capacity aborts the pass with
// errors.ErrOverflow instead of writing out of bounds.
//
// # Package Structure
//
//   - Engine: partition.go (Partition, worker spawn/join), independent.go,
//     concurrent.go, outcome.go
//   - Routing and chunking: route.go (Route, Router), chunk.go (Chunks)
//   - Configuration: options.go (Option, With* functions), strategy.go
//   - Affinity: affinity.go (AffinityProvider), affinity_*.go
//   - Dataset files: dataset.go, dataset_io.go (Load, OpenMapped),
//     generate.go (Generate)
//   - Diagnostics: verify.go (Verify), inspect.go (Inspect)
//   - Platform: fallocate_*.go, prefault_*.go, fadvise_*.go
package hashpart
