package hashpart

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	parterrors "github.com/tamirms/hashpart/errors"
	"github.com/tamirms/hashpart/internal/telemetry"
)

// contextCheckInterval is how many tuples a worker routes between checks for
// cancellation of the pass.
const contextCheckInterval = 10000

// pass holds the state shared by all workers of one Partition call.
type pass struct {
	cfg      *config
	log      *zap.Logger
	tuples   []Tuple
	router   Router
	chunks   []Chunk
	affinity AffinityProvider

	pinned      atomic.Int64
	pinFailures atomic.Int64
}

// Partition distributes every tuple of data into 2^b buckets using the
// configured strategy and number of workers.
//
// Workers are spawned fresh for the call and joined before it returns. The
// first worker error aborts the whole pass: the remaining workers stop and
// no partial Outcome is returned.
//
// Usage:
//
//	out, err := hashpart.Partition(ctx, data,
//	    hashpart.WithThreads(8),
//	    hashpart.WithHashBits(10),
//	    hashpart.WithStrategy(hashpart.Concurrent),
//	    hashpart.WithCollect(true))
//	if err != nil { return err }
//	for b, bucket := range out.Buckets { ... }
func Partition(ctx context.Context, data *Dataset, opts ...Option) (*Outcome, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	router, err := NewRouter(cfg.hashBits)
	if err != nil {
		return nil, err
	}
	tuples := data.Tuples()
	chunks, err := Chunks(uint64(len(tuples)), cfg.threads)
	if err != nil {
		return nil, err
	}
	metrics, err := telemetry.NewMetrics(cfg.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	p := &pass{
		cfg: cfg,
		log: cfg.logger.With(
			zap.Stringer("strategy", cfg.strategy),
			zap.Int("threads", cfg.threads),
			zap.Int("hash_bits", cfg.hashBits),
		),
		tuples: tuples,
		router: router,
		chunks: chunks,
	}
	if cfg.pin {
		p.affinity = cfg.affinity
		if p.affinity == nil {
			p.affinity = NewCPUAffinity()
		}
	}

	p.log.Debug("partitioning started", zap.Int("tuples", len(tuples)))
	start := time.Now()

	var out *Outcome
	switch cfg.strategy {
	case Independent:
		out, err = p.runIndependent(ctx)
	case Concurrent:
		out, err = p.runConcurrent(ctx)
	}
	elapsed := time.Since(start)

	strategy := cfg.strategy.String()
	// Recorded even when the pass was cancelled.
	mctx := context.WithoutCancel(ctx)
	metrics.Passes.Add(mctx, 1, telemetry.StrategyAttrs(strategy, err == nil))
	metrics.Duration.Record(mctx, elapsed.Seconds(), telemetry.StrategyAttrs(strategy, err == nil))
	if n := p.pinFailures.Load(); n > 0 {
		metrics.PinFailures.Add(mctx, n, telemetry.StrategyAttrs(strategy, err == nil))
	}

	if err != nil {
		if errors.Is(err, parterrors.ErrOverflow) {
			metrics.Overflows.Add(mctx, 1, telemetry.StrategyAttrs(strategy, false))
			p.log.Warn("partitioning aborted: bucket overflow", zap.Error(err))
		} else {
			p.log.Debug("partitioning aborted", zap.Error(err))
		}
		return nil, err
	}

	out.Elapsed = elapsed
	out.Pinned = int(p.pinned.Load())
	metrics.Tuples.Add(mctx, int64(out.Written), telemetry.StrategyAttrs(strategy, true))
	p.log.Debug("partitioning finished",
		zap.Uint64("written", out.Written),
		zap.Duration("elapsed", elapsed),
		zap.Int("pinned", out.Pinned))
	return out, nil
}

// spawn runs work once per chunk, each on its own goroutine, and waits for
// all of them. The context passed to work is cancelled as soon as any worker
// fails.
func (p *pass) spawn(ctx context.Context, work func(ctx context.Context, thread int, chunk []Tuple) error) error {
	g, gctx := errgroup.WithContext(ctx)
	n := uint64(len(p.tuples))
	for thread, c := range p.chunks {
		g.Go(func() error {
			if err := c.check(n); err != nil {
				return err
			}
			p.pin(thread)
			return work(gctx, thread, p.tuples[c.Start:c.End])
		})
	}
	return g.Wait()
}

// pin binds the calling worker to a CPU when pinning is enabled.
//
// The goroutine is locked to its OS thread and never unlocked: when it
// exits the runtime terminates the thread instead of handing a CPU-restricted
// thread to other goroutines.
func (p *pass) pin(thread int) {
	if p.affinity == nil {
		return
	}
	runtime.LockOSThread()
	if p.affinity.Pin(thread) {
		p.pinned.Add(1)
		return
	}
	p.pinFailures.Add(1)
	p.log.Debug("cpu pin refused, continuing unpinned", zap.Int("thread", thread))
}

func (p *pass) newOutcome() *Outcome {
	return &Outcome{
		Strategy:   p.cfg.strategy,
		Threads:    p.cfg.threads,
		HashBits:   p.cfg.hashBits,
		NumBuckets: p.router.NumBuckets(),
		Sizes:      make([]uint64, p.router.NumBuckets()),
	}
}
