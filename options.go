package hashpart

import (
	"fmt"
	"math"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	parterrors "github.com/tamirms/hashpart/errors"
)

const (
	// DefaultOverProvision is the multiplier applied to the average bucket
	// occupancy when sizing concurrent buckets.
	DefaultOverProvision = 1.5

	// MaxPartitionHashBits bounds the bucket count of a single pass:
	// 2^20 buckets per worker (Independent) or shared (Concurrent).
	MaxPartitionHashBits = 20

	// MaxIndependentBuckets bounds threads x 2^b for the Independent
	// strategy, which gives every worker its own 2^b bucket slices.
	MaxIndependentBuckets = 1 << 26
)

// Option is a functional option for configuring a partitioning pass.
type Option func(*config)

type config struct {
	threads       int
	hashBits      int
	strategy      Strategy
	collect       bool
	pin           bool
	affinity      AffinityProvider
	overProvision float64
	poissonSigmas float64
	capacity      int64 // 0 = derived from overProvision / poissonSigmas

	logger        *zap.Logger
	meterProvider metric.MeterProvider
}

func defaultConfig() *config {
	return &config{
		threads:       1,
		strategy:      Independent,
		overProvision: DefaultOverProvision,
		logger:        zap.NewNop(),
	}
}

// validate checks every parameter before any worker starts.
func (c *config) validate() error {
	if c.threads <= 0 {
		return fmt.Errorf("%w: got %d", parterrors.ErrInvalidThreads, c.threads)
	}
	if c.hashBits < 0 || c.hashBits > MaxHashBits {
		return fmt.Errorf("%w: got %d", parterrors.ErrInvalidHashBits, c.hashBits)
	}
	if c.hashBits > MaxPartitionHashBits {
		return fmt.Errorf("%w: got %d, limit %d", parterrors.ErrTooManyBuckets, c.hashBits, MaxPartitionHashBits)
	}
	if c.strategy == Independent && c.threads > MaxIndependentBuckets>>c.hashBits {
		return fmt.Errorf("%w: %d threads x 2^%d buckets exceeds %d",
			parterrors.ErrTooManyBuckets, c.threads, c.hashBits, MaxIndependentBuckets)
	}
	if !c.strategy.valid() {
		return fmt.Errorf("%w: %v", parterrors.ErrInvalidStrategy, c.strategy)
	}
	if math.IsNaN(c.overProvision) || math.IsInf(c.overProvision, 0) || c.overProvision < 1 {
		return fmt.Errorf("%w: got %v", parterrors.ErrInvalidOverProvision, c.overProvision)
	}
	if math.IsNaN(c.poissonSigmas) || math.IsInf(c.poissonSigmas, 0) || c.poissonSigmas < 0 {
		return fmt.Errorf("%w: poisson margin %v", parterrors.ErrInvalidOverProvision, c.poissonSigmas)
	}
	if c.capacity < 0 {
		return fmt.Errorf("%w: got %d", parterrors.ErrInvalidCapacity, c.capacity)
	}
	return nil
}

// ValidateOptions applies opts to the defaults and reports the first
// invalid parameter, without running a pass.
func ValidateOptions(opts ...Option) error {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.validate()
}

// WithThreads sets the number of workers. Must be at least 1.
func WithThreads(n int) Option {
	return func(c *config) {
		c.threads = n
	}
}

// WithHashBits sets b, producing 2^b buckets.
func WithHashBits(b int) Option {
	return func(c *config) {
		c.hashBits = b
	}
}

// WithStrategy selects Independent (default) or Concurrent output.
func WithStrategy(s Strategy) Option {
	return func(c *config) {
		c.strategy = s
	}
}

// WithCollect selects collection mode: the realized buckets are returned in
// the Outcome. Without it the pass only measures, and worker buffers are
// dropped once their counts are reported.
func WithCollect(collect bool) Option {
	return func(c *config) {
		c.collect = collect
	}
}

// WithPinning pins each worker to a CPU using NewCPUAffinity, unless a
// provider was set with WithAffinityProvider.
func WithPinning(pin bool) Option {
	return func(c *config) {
		c.pin = pin
	}
}

// WithAffinityProvider pins workers through p. Implies WithPinning(true).
func WithAffinityProvider(p AffinityProvider) Option {
	return func(c *config) {
		c.affinity = p
		c.pin = p != nil
	}
}

// WithOverProvision sets the factor applied to the average bucket occupancy
// ceil(N / 2^b) when sizing concurrent buckets. Must be finite and >= 1.
func WithOverProvision(factor float64) Option {
	return func(c *config) {
		c.overProvision = factor
	}
}

// WithPoissonMargin sizes concurrent buckets as mu + sigmas*sqrt(mu), where
// mu is the average occupancy, when that exceeds the over-provisioned size.
// Suits uniformly distributed keys: 7 sigmas leaves ~1e-12 overflow
// probability per bucket.
func WithPoissonMargin(sigmas float64) Option {
	return func(c *config) {
		c.poissonSigmas = sigmas
	}
}

// WithBucketCapacity fixes the capacity of every concurrent bucket,
// overriding the derived size.
func WithBucketCapacity(n int64) Option {
	return func(c *config) {
		c.capacity = n
		if n == 0 {
			c.capacity = -1
		}
	}
}

// WithLogger sets the logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider used for pass
// metrics. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		c.meterProvider = mp
	}
}
