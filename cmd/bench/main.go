// Bench measures memsearch capture and comparison throughput and memory usage
// over synthetic memory.
//
// Usage:
//
//	go run ./cmd/bench --mem 64 --size 16 --workers 4
//
// Flags:
//
//	--mem         Searched memory in MiB (default: 16)
//	--size        Value size: 8, 16, 24, 32, 16be or 32be (default: 8)
//	--block-size  Candidate addresses per block (default: 4096)
//	--workers     Number of parallel workers (default: 1)
//	--passes      Number of comparison passes (default: 6)
//	--churn       Fraction of bytes rewritten between passes (default: 0.01)
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spaolacci/murmur3"
	"github.com/spf13/pflag"

	"github.com/tamirms/memsearch"
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

// fillMemory fills mem with murmur3 hashes of each word offset, so runs are
// reproducible for a given seed.
func fillMemory(mem []byte, seed uint32) {
	var key [8]byte
	for off := 0; off < len(mem); off += 4 {
		binary.LittleEndian.PutUint64(key[:], uint64(off))
		h := murmur3.Sum32WithSeed(key[:], seed)
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], h)
		copy(mem[off:], word[:])
	}
}

// churn rewrites fraction*len(mem) random bytes.
func churn(mem []byte, fraction float64, rng *mrand.Rand) {
	n := int(float64(len(mem)) * fraction)
	for range n {
		mem[rng.IntN(len(mem))] = byte(rng.Uint32())
	}
}

func main() {
	memFlag := pflag.Int("mem", 16, "searched memory in MiB")
	sizeFlag := pflag.String("size", "8", "value size: 8, 16, 24, 32, 16be or 32be")
	blockFlag := pflag.Uint32("block-size", 0x1000, "candidate addresses per block")
	workersFlag := pflag.Int("workers", 1, "number of parallel workers")
	passesFlag := pflag.Int("passes", 6, "number of comparison passes")
	churnFlag := pflag.Float64("churn", 0.01, "fraction of bytes rewritten between passes")
	cpuprofile := pflag.String("cpuprofile", "", "write cpu profile to file (search phase only)")
	memprofile := pflag.String("memprofile", "", "write memory profile to file (search phase only)")
	pflag.Parse()

	size, err := memsearch.ParseValueSize(*sizeFlag)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println("Generating memory...")
	data := make([]byte, *memFlag<<20)
	fillMemory(data, 0x1234)
	mem := memsearch.NewMemory(0, data)
	rng := mrand.New(mrand.NewPCG(0x1234, 0x5678))

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()

	// 10ms sampling for peak memory (both heap and RSS).
	// Uses runtime/metrics instead of ReadMemStats to avoid stop-the-world pauses.
	var peakAlloc atomic.Uint64
	var peakRSS atomic.Uint64
	peakAlloc.Store(baseline.Alloc)
	peakRSS.Store(baselineRSS)
	done := make(chan struct{})
	go func() {
		samples := []metrics.Sample{
			{Name: "/memory/classes/heap/objects:bytes"},
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				heapBytes := samples[0].Value.Uint64()
				for {
					old := peakAlloc.Load()
					if heapBytes <= old || peakAlloc.CompareAndSwap(old, heapBytes) {
						break
					}
				}
				rss := getMaxRSS()
				for {
					old := peakRSS.Load()
					if rss <= old || peakRSS.CompareAndSwap(old, rss) {
						break
					}
				}
			}
		}
	}()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	ctx := context.Background()
	fmt.Println("Capturing...")
	captureStart := time.Now()
	s, err := memsearch.New(ctx, mem, 0, uint32(len(data)),
		memsearch.WithValueSize(size),
		memsearch.WithBlockSize(*blockFlag),
		memsearch.WithWorkers(*workersFlag))
	if err != nil {
		fmt.Printf("New failed: %v\n", err)
		return
	}
	captureDuration := time.Since(captureStart)
	candidates := s.Results().Count()

	// The first pass keeps unchanged values (the bulk of memory), later passes
	// alternate so both the dense and the sparse bitmap paths are timed.
	fmt.Println("Comparing...")
	passDurations := make([]time.Duration, 0, *passesFlag)
	passMatches := make([]uint64, 0, *passesFlag)
	for i := range *passesFlag {
		churn(data, *churnFlag, rng)
		op := memsearch.Equal
		if i%2 == 1 {
			op = memsearch.NotEqual
		}
		passStart := time.Now()
		res, err := s.Compare(ctx, op, memsearch.LastKnownValue())
		if err != nil {
			fmt.Printf("Compare failed: %v\n", err)
			return
		}
		passDurations = append(passDurations, time.Since(passStart))
		passMatches = append(passMatches, res.Count())
		if res.Count() == 0 {
			break
		}
	}

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Printf("could not create memory profile: %v\n", err)
		} else {
			runtime.GC() // Get up-to-date statistics
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Printf("could not write memory profile: %v\n", err)
			}
			_ = f.Close()
		}
	}

	close(done)

	var final runtime.MemStats
	runtime.ReadMemStats(&final)
	if final.Alloc > peakAlloc.Load() {
		peakAlloc.Store(final.Alloc)
	}
	if finalRSS := getMaxRSS(); finalRSS > peakRSS.Load() {
		peakRSS.Store(finalRSS)
	}
	peakHeapMem := peakAlloc.Load() - baseline.Alloc
	peakRSSMem := peakRSS.Load() - baselineRSS

	mib := float64(len(data)) / (1 << 20)
	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦══════════════════╦════════════════╗\n")
	fmt.Printf("║ Size: %-14s║ Workers: %-8d║                ║\n", size, *workersFlag)
	fmt.Printf("╠═════════════════════╬══════════════════╬════════════════╣\n")
	fmt.Printf("║ Metric              ║ Value            ║ Matches        ║\n")
	fmt.Printf("╠═════════════════════╬══════════════════╬════════════════╣\n")
	fmt.Printf("║ Capture             ║ %7.1f MiB/sec  ║ %14d ║\n", mib/captureDuration.Seconds(), candidates)
	for i, d := range passDurations {
		fmt.Printf("║ Pass %-2d             ║ %7.2f ms       ║ %14d ║\n", i+1, float64(d.Microseconds())/1000, passMatches[i])
	}
	fmt.Printf("║ Peak heap memory    ║ %7.1f MB       ║ -              ║\n", float64(peakHeapMem)/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %7.1f MB       ║ -              ║\n", float64(peakRSSMem)/1_000_000)
	fmt.Printf("╚═════════════════════╩══════════════════╩════════════════╝\n")
}
