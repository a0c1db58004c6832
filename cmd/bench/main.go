// Bench sweeps hashpart partitioning throughput over thread counts and hash
// bits, and reports elapsed-time percentiles and peak memory.
//
// Usage:
//
//	go run ./cmd/bench -tuples 16000000 -threads 1,2,4,8 -maxbits 17
//
// Flags:
//
//	-data      Dataset file; when empty a sequential dataset of -tuples is generated
//	-tuples    Tuples to generate when -data is empty (default: 16,000,000)
//	-threads   Comma-separated thread counts (default: 1,2,4,8,16,32)
//	-minbits   Smallest hash bits (default: 0)
//	-maxbits   Largest hash bits (default: 17)
//	-method    independent, concurrent or both (default: both)
//	-reps      Passes per configuration (default: 3)
//	-tmpdir    Directory for the generated dataset (default: system temp dir)
//	-pin       Pin workers to CPUs
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/tamirms/hashpart"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes the sweep and returns the process exit code. Failures return
// instead of exiting so deferred cleanup of the generated dataset runs.
func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.SetOutput(stdout)
	dataFlag := fs.String("data", "", "dataset file (empty = generate one)")
	tuplesFlag := fs.Uint64("tuples", 16_000_000, "tuples to generate when -data is empty")
	tmpFlag := fs.String("tmpdir", "", "directory for the generated dataset (default: system temp dir)")
	threadsFlag := fs.String("threads", "1,2,4,8,16,32", "comma-separated thread counts")
	minBitsFlag := fs.Int("minbits", 0, "smallest hash bits")
	maxBitsFlag := fs.Int("maxbits", 17, "largest hash bits")
	methodFlag := fs.String("method", "both", "independent, concurrent or both")
	repsFlag := fs.Int("reps", 3, "passes per configuration")
	pinFlag := fs.Bool("pin", false, "pin workers to CPUs")
	cpuprofile := fs.String("cpuprofile", "", "write cpu profile to file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	threads, err := parseThreads(*threadsFlag)
	if err != nil {
		fmt.Fprintf(stdout, "Invalid -threads: %v\n", err)
		return 2
	}
	methods, err := parseMethods(*methodFlag)
	if err != nil {
		fmt.Fprintf(stdout, "Invalid -method: %v\n", err)
		return 2
	}
	if *repsFlag < 1 || *minBitsFlag < 0 || *maxBitsFlag < *minBitsFlag {
		fmt.Fprintln(stdout, "Invalid -reps or bit range")
		return 2
	}

	path := *dataFlag
	if path == "" {
		tmpDir, err := os.MkdirTemp(*tmpFlag, "hashpart-bench-")
		if err != nil {
			fmt.Fprintf(stdout, "Failed to create temp dir: %v\n", err)
			return 1
		}
		defer func() { _ = os.RemoveAll(tmpDir) }()
		path = filepath.Join(tmpDir, "bench.data")
		fmt.Fprintf(stdout, "Generating %d tuples...\n", *tuplesFlag)
		if err := hashpart.Generate(path, *tuplesFlag); err != nil {
			fmt.Fprintf(stdout, "Generate failed: %v\n", err)
			return 1
		}
	}

	fmt.Fprintln(stdout, "Loading dataset...")
	data, err := hashpart.Load(path)
	if err != nil {
		fmt.Fprintf(stdout, "Load failed: %v\n", err)
		return 1
	}
	defer data.Close()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(stdout, "Failed to create CPU profile: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stdout, "Failed to start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	ctx := context.Background()
	baselineRSS := getMaxRSS()

	fmt.Fprintf(stdout, "\n%d tuples, %d reps per row\n", data.Len(), *repsFlag)
	fmt.Fprintf(stdout, "╔═════════════╦═════════╦══════╦════════════════╦════════════╦════════════╦═════════════╗\n")
	fmt.Fprintf(stdout, "║ Method      ║ Threads ║ Bits ║ Throughput     ║ p50        ║ max        ║ Peak RSS    ║\n")
	fmt.Fprintf(stdout, "╠═════════════╬═════════╬══════╬════════════════╬════════════╬════════════╬═════════════╣\n")
	for _, method := range methods {
		for _, n := range threads {
			for bits := *minBitsFlag; bits <= *maxBitsFlag; bits++ {
				// Microsecond resolution, up to one minute per pass.
				hist := hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3)
				var failed error
				for range *repsFlag {
					out, err := hashpart.Partition(ctx, data,
						hashpart.WithThreads(n),
						hashpart.WithHashBits(bits),
						hashpart.WithStrategy(method),
						hashpart.WithPinning(*pinFlag),
					)
					if err != nil {
						failed = err
						break
					}
					recordElapsed(hist, out.Elapsed)
				}
				if failed != nil {
					fmt.Fprintf(stdout, "║ %-11s ║ %7d ║ %4d ║ error: %v\n", method, n, bits, failed)
					continue
				}
				p50 := time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond
				worst := time.Duration(hist.Max()) * time.Microsecond
				mtps := float64(data.Len()) / p50.Seconds() / 1_000_000
				rss := getMaxRSS() - baselineRSS
				fmt.Fprintf(stdout, "║ %-11s ║ %7d ║ %4d ║ %8.2f M/sec ║ %10v ║ %10v ║ %8.1f MB ║\n",
					method, n, bits, mtps, p50.Round(time.Microsecond), worst.Round(time.Microsecond),
					float64(rss)/1_000_000)
			}
		}
	}
	fmt.Fprintf(stdout, "╚═════════════╩═════════╩══════╩════════════════╩════════════╩════════════╩═════════════╝\n")
	return 0
}

// recordElapsed adds d to hist in microseconds, clamped to the trackable
// range so an outlier still counts towards the percentiles.
func recordElapsed(hist *hdrhistogram.Histogram, d time.Duration) {
	v := min(max(d.Microseconds(), hist.LowestTrackableValue()), hist.HighestTrackableValue())
	_ = hist.RecordValue(v)
}

func parseThreads(s string) ([]int, error) {
	var out []int
	for field := range strings.SplitSeq(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, fmt.Errorf("thread count %d must be at least 1", n)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseMethods(s string) ([]hashpart.Strategy, error) {
	if strings.EqualFold(s, "both") {
		return []hashpart.Strategy{hashpart.Independent, hashpart.Concurrent}, nil
	}
	m, err := hashpart.ParseStrategy(s)
	if err != nil {
		return nil, err
	}
	return []hashpart.Strategy{m}, nil
}
