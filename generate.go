package hashpart

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"

	parterrors "github.com/tamirms/hashpart/errors"
	"github.com/tamirms/hashpart/internal/encoding"
)

// KeyDistribution selects how Generate derives the key of tuple i.
type KeyDistribution uint8

const (
	// Sequential keys are 0, 1, 2, ... and spread evenly over any 2^b
	// buckets.
	Sequential KeyDistribution = iota

	// Hashed keys are the seeded xxh3 hash of i: uniform, unordered,
	// Poisson-distributed bucket sizes.
	Hashed

	// Congruent keys are i << shift, so every key is 0 mod 2^shift and
	// routes to bucket 0 for any b <= shift.
	Congruent
)

// String returns the distribution name.
func (k KeyDistribution) String() string {
	switch k {
	case Sequential:
		return "sequential"
	case Hashed:
		return "hashed"
	case Congruent:
		return "congruent"
	default:
		return fmt.Sprintf("KeyDistribution(%d)", uint8(k))
	}
}

// ParseKeyDistribution parses a distribution name.
func ParseKeyDistribution(s string) (KeyDistribution, error) {
	switch strings.ToLower(s) {
	case "sequential":
		return Sequential, nil
	case "hashed":
		return Hashed, nil
	case "congruent":
		return Congruent, nil
	default:
		return 0, fmt.Errorf("%w: unknown key distribution %q", parterrors.ErrConfig, s)
	}
}

// GenerateOption is a functional option for Generate.
type GenerateOption func(*generateConfig)

type generateConfig struct {
	keys  KeyDistribution
	seed  uint32
	shift uint
}

func defaultGenerateConfig() *generateConfig {
	return &generateConfig{
		keys:  Sequential,
		seed:  0x1234,
		shift: 32,
	}
}

// WithKeyDistribution selects the key sequence. Default Sequential.
func WithKeyDistribution(k KeyDistribution) GenerateOption {
	return func(c *generateConfig) {
		c.keys = k
	}
}

// WithSeed sets the seed for payloads and Hashed keys.
func WithSeed(seed uint32) GenerateOption {
	return func(c *generateConfig) {
		c.seed = seed
	}
}

// WithCongruentShift sets the shift used by Congruent keys. Default 32.
func WithCongruentShift(shift uint) GenerateOption {
	return func(c *generateConfig) {
		c.shift = shift
	}
}

// key returns the key of tuple i.
func (c *generateConfig) key(i uint64, idx []byte) uint64 {
	switch c.keys {
	case Hashed:
		return xxh3.HashSeed(idx, uint64(c.seed))
	case Congruent:
		return i << c.shift
	default:
		return i
	}
}

// Generate writes size synthetic tuples to path in the dataset file format.
// Payloads are the seeded murmur3 hash of the tuple index, so the same
// options always produce the same file.
//
// The file is preallocated and written through a shared mapping. On error
// the partial file is removed.
func Generate(path string, size uint64, opts ...GenerateOption) error {
	cfg := defaultGenerateConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.keys > Congruent {
		return fmt.Errorf("%w: unknown key distribution %v", parterrors.ErrConfig, cfg.keys)
	}
	if cfg.shift > 63 {
		return fmt.Errorf("%w: congruent shift %d exceeds 63", parterrors.ErrConfig, cfg.shift)
	}
	if size > math.MaxInt64/encoding.RecordSize {
		return fmt.Errorf("%w: %d tuples exceed the maximum file size", parterrors.ErrConfig, size)
	}
	totalSize := int64(size) * encoding.RecordSize

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create dataset: %w", parterrors.ErrIO, err)
	}
	if size == 0 {
		return closeGenerated(file, path, nil)
	}

	// Reserve blocks up front so a full disk fails here instead of as
	// SIGBUS on a mapped write.
	if err := preallocateFile(file, totalSize); err != nil {
		return closeGenerated(file, path, fmt.Errorf("%w: allocate %d bytes: %w", parterrors.ErrIO, totalSize, err))
	}
	mm, err := mmap.MapRegion(file, int(totalSize), mmap.RDWR, 0, 0)
	if err != nil {
		return closeGenerated(file, path, fmt.Errorf("%w: mmap dataset: %w", parterrors.ErrIO, err))
	}
	prefaultForWrite(mm)

	var idx [8]byte
	for i := range size {
		binary.LittleEndian.PutUint64(idx[:], i)
		payload := murmur3.Sum64WithSeed(idx[:], cfg.seed)
		encoding.PutRecord(mm[i*encoding.RecordSize:], cfg.key(i, idx[:]), payload)
	}

	if err := mm.Flush(); err != nil {
		return closeGenerated(file, path, errors.Join(
			fmt.Errorf("%w: flush dataset: %w", parterrors.ErrIO, err), mm.Unmap()))
	}
	if err := mm.Unmap(); err != nil {
		return closeGenerated(file, path, fmt.Errorf("%w: unmap dataset: %w", parterrors.ErrIO, err))
	}
	return closeGenerated(file, path, nil)
}

// closeGenerated closes file and, if cause or the close failed, removes path.
func closeGenerated(file *os.File, path string, cause error) error {
	closeErr := file.Close()
	if cause == nil && closeErr == nil {
		return nil
	}
	if closeErr != nil {
		closeErr = fmt.Errorf("%w: close dataset: %w", parterrors.ErrIO, closeErr)
	}
	return errors.Join(cause, closeErr, os.Remove(path))
}
