// Hashpart generates synthetic tuple datasets and partitions them with the
// hashpart engine.
//
// Usage:
//
//	hashpart gen [-keys sequential|hashed|congruent] [-seed N] <size> <file>
//	hashpart run [flags] <num_threads> <hash_bits> <method>
//	hashpart inspect [-bits B] <file>
//
// method is 1 (independent output) or 2 (concurrent output); the names are
// accepted too. Invalid arguments exit with status 2, runtime failures with
// status 1.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tamirms/hashpart"
	parterrors "github.com/tamirms/hashpart/errors"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// errUsage marks malformed command lines.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "gen":
		err = runGen(args[1:], stdout, stderr)
	case "run":
		err = runPartition(ctx, args[1:], stdout, stderr)
	case "inspect":
		err = runInspect(args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		printUsage(stdout)
		return exitOK
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, parterrors.ErrConfig):
		fmt.Fprintf(stderr, "hashpart: %v\n", err)
		if errors.Is(err, errUsage) {
			printUsage(stderr)
		}
		return exitUsage
	default:
		fmt.Fprintf(stderr, "hashpart: %v\n", err)
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage:
  hashpart gen [-keys sequential|hashed|congruent] [-seed N] [-shift S] <size> <file>
  hashpart run [-data path] [-pin] [-collect] [-verify] [-reps N] [-mapped]
               [-overprovision F] [-poisson K] [-capacity C] [-log-level L]
               <num_threads> <hash_bits> <method>
  hashpart inspect [-bits B] <file>
`)
}

func runGen(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	keysFlag := fs.String("keys", "sequential", "key distribution: sequential, hashed or congruent")
	seedFlag := fs.Uint("seed", 0x1234, "seed for payloads and hashed keys")
	shiftFlag := fs.Uint("shift", 32, "left shift applied to congruent keys")
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: gen takes <size> <file>", errUsage)
	}
	size, err := strconv.ParseUint(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: size %q: %v", errUsage, fs.Arg(0), err)
	}
	keys, err := hashpart.ParseKeyDistribution(*keysFlag)
	if err != nil {
		return err
	}
	if *seedFlag > 0xFFFFFFFF {
		return fmt.Errorf("%w: seed %d does not fit 32 bits", errUsage, *seedFlag)
	}
	path := fs.Arg(1)

	fmt.Fprintf(stdout, "Writing %d tuples to %s...\n", size, path)
	start := time.Now()
	err = hashpart.Generate(path, size,
		hashpart.WithKeyDistribution(keys),
		hashpart.WithSeed(uint32(*seedFlag)),
		hashpart.WithCongruentShift(*shiftFlag),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Done! (%s keys, %v)\n", keys, time.Since(start).Round(time.Millisecond))
	return nil
}

func runPartition(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataFlag := fs.String("data", "./test.data", "dataset file")
	pinFlag := fs.Bool("pin", false, "pin workers to CPUs round-robin")
	collectFlag := fs.Bool("collect", false, "keep bucket contents and print their digest")
	verifyFlag := fs.Bool("verify", false, "check every tuple landed in its bucket exactly once (implies -collect)")
	repsFlag := fs.Int("reps", 1, "number of passes to time")
	mappedFlag := fs.Bool("mapped", false, "partition straight from the mapped file instead of a heap copy")
	overFlag := fs.Float64("overprovision", hashpart.DefaultOverProvision, "concurrent bucket over-provisioning factor")
	poissonFlag := fs.Float64("poisson", 0, "raise concurrent capacity to mean + K*sqrt(mean)")
	capacityFlag := fs.Int64("capacity", 0, "fixed concurrent bucket capacity (0 = derived)")
	levelFlag := fs.String("log-level", "info", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	if fs.NArg() != 3 {
		return fmt.Errorf("%w: run takes <num_threads> <hash_bits> <method>", errUsage)
	}
	threads, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("%w: num_threads %q is not an integer", parterrors.ErrConfig, fs.Arg(0))
	}
	hashBits, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("%w: hash_bits %q is not an integer", parterrors.ErrConfig, fs.Arg(1))
	}
	strategy, err := hashpart.ParseStrategy(fs.Arg(2))
	if err != nil {
		return err
	}
	if *repsFlag < 1 {
		return fmt.Errorf("%w: -reps must be at least 1", errUsage)
	}

	logger, err := newLogger(*levelFlag, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts := []hashpart.Option{
		hashpart.WithThreads(threads),
		hashpart.WithHashBits(hashBits),
		hashpart.WithStrategy(strategy),
		hashpart.WithPinning(*pinFlag),
		hashpart.WithCollect(*collectFlag || *verifyFlag),
		hashpart.WithOverProvision(*overFlag),
		hashpart.WithPoissonMargin(*poissonFlag),
		hashpart.WithLogger(logger),
	}
	if *capacityFlag != 0 {
		opts = append(opts, hashpart.WithBucketCapacity(*capacityFlag))
	}

	if err := hashpart.ValidateOptions(opts...); err != nil {
		return err
	}

	var data *hashpart.Dataset
	if *mappedFlag {
		data, err = hashpart.OpenMapped(*dataFlag)
	} else {
		data, err = hashpart.Load(*dataFlag)
	}
	if err != nil {
		return err
	}
	defer data.Close()

	logger.Info("partitioning",
		zap.String("data", *dataFlag),
		zap.Int("tuples", data.Len()),
		zap.Stringer("strategy", strategy),
		zap.Int("threads", threads),
		zap.Int("hash_bits", hashBits))

	// Microsecond resolution, up to one hour per pass.
	hist := hdrhistogram.New(1, int64(time.Hour/time.Microsecond), 3)
	var out *hashpart.Outcome
	for range *repsFlag {
		out, err = hashpart.Partition(ctx, data, opts...)
		if err != nil {
			return err
		}
		recordElapsed(hist, out.Elapsed)
	}

	fmt.Fprintf(stdout, "strategy    %s\n", out.Strategy)
	fmt.Fprintf(stdout, "threads     %d (pinned %d)\n", out.Threads, out.Pinned)
	if out.Strategy == hashpart.Concurrent {
		fmt.Fprintf(stdout, "buckets     %d (capacity %d)\n", out.NumBuckets, out.BucketCapacity)
	} else {
		fmt.Fprintf(stdout, "buckets     %d per thread\n", out.NumBuckets)
	}
	fmt.Fprintf(stdout, "tuples      %d\n", out.Written)
	fmt.Fprintf(stdout, "elapsed     %v\n", out.Elapsed)
	fmt.Fprintf(stdout, "throughput  %.2f M tuples/s\n", out.Throughput()/1e6)
	if *repsFlag > 1 {
		fmt.Fprintf(stdout, "reps        %d  p50 %dus  p90 %dus  p99 %dus  max %dus\n",
			hist.TotalCount(), hist.ValueAtQuantile(50), hist.ValueAtQuantile(90),
			hist.ValueAtQuantile(99), hist.Max())
	}
	if digest, ok := out.Digest(); ok {
		fmt.Fprintf(stdout, "digest      %016x\n", digest)
	}
	if *verifyFlag {
		if err := hashpart.Verify(data, out); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "verified    ok\n")
	}
	return nil
}

func runInspect(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bitsFlag := fs.Int("bits", 10, "hash bits to evaluate")
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: inspect takes <file>", errUsage)
	}

	data, err := hashpart.OpenMapped(fs.Arg(0))
	if err != nil {
		return err
	}
	defer data.Close()

	st, err := hashpart.Inspect(data, *bitsFlag)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "tuples              %d\n", st.Tuples)
	fmt.Fprintf(stdout, "distinct keys (est) %d\n", st.DistinctKeys)
	fmt.Fprintf(stdout, "buckets             %d (%d empty)\n", st.NumBuckets, st.EmptyBuckets)
	fmt.Fprintf(stdout, "bucket size         min %d  mean %.2f  max %d\n", st.MinBucket, st.MeanBucket, st.MaxBucket)
	fmt.Fprintf(stdout, "min overprovision   %.3f\n", st.MinOverProvision)
	return nil
}

// recordElapsed adds d to hist in microseconds, clamped to the trackable
// range so an outlier still counts towards the percentiles.
func recordElapsed(hist *hdrhistogram.Histogram, d time.Duration) {
	v := min(max(d.Microseconds(), hist.LowestTrackableValue()), hist.HighestTrackableValue())
	_ = hist.RecordValue(v)
}

// newLogger builds a console logger writing to w.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q", errUsage, level)
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), lvl)), nil
}

func parseError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", errUsage, err)
}
