// Command profiler generates synthetic archives repeatedly so CPU, heap,
// trace and wall-clock profiles of the encoder can be collected.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/felixge/fgprof"

	"github.com/meigma/zipstream"
	"github.com/meigma/zipstream/checksum"
)

type config struct {
	source          string
	files           int
	fileSize        int
	dirCount        int
	pattern         string
	workers         int
	prefetch        int
	chunk           int
	dataHTTPLatency time.Duration
	dataHTTPBPS     int64
	fgProfile       string
	duration        time.Duration
	iterations      int
	pprofAddr       string
	cpuProfile      string
	memProfile      string
	traceFile       string
	tempDir         string
	keepTemp        bool
	randomSeed      int64
	verbose         bool
}

type dataset struct {
	paths    []string
	contents [][]byte
	dir      string
}

//nolint:gocognit // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	data, err := makeFiles(dir, cfg.files, cfg.fileSize, cfg.dirCount, cfg.pattern, cfg.randomSeed)
	if err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}

	if cfg.fgProfile != "" {
		fgFile, fgErr := os.Create(cfg.fgProfile)
		if fgErr != nil {
			log.Fatal(fgErr)
		}
		stopFG := fgprof.Start(fgFile, fgprof.FormatPprof)
		defer func() {
			if err := stopFG(); err != nil {
				log.Printf("fgprof stop error: %v", err)
			}
			_ = fgFile.Close()
		}()
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(context.Background(), cfg, data)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("source=%s archives=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
		cfg.source,
		stats.ops,
		stats.bytes,
		stats.elapsed,
		float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
	)
}

type profileStats struct {
	ops     int
	bytes   int64
	elapsed time.Duration
}

// runProfile generates archives of data until the iteration or time budget
// is spent. A single checksum pool is shared by every archive.
func runProfile(ctx context.Context, cfg config, data *dataset) (profileStats, error) {
	logger := slog.New(slog.DiscardHandler)
	if cfg.verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	addAll, cleanup, err := contentFor(ctx, cfg, data)
	if err != nil {
		return profileStats{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	pool := checksum.NewPool(checksum.WithWorkers(cfg.workers), checksum.WithLogger(logger))
	defer pool.Terminate()

	start := time.Now()
	ops := 0
	var byteCount int64
	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	for shouldContinue() {
		a := zipstream.New(zipstream.WithLogger(logger), zipstream.WithChecksumPool(pool))
		if err := addAll(a); err != nil {
			_ = a.Close()
			return profileStats{}, err
		}
		n, err := a.WriteArchive(ctx, io.Discard,
			zipstream.GenerateWithReadChunkSize(cfg.chunk),
			zipstream.GenerateWithPrefetch(cfg.prefetch),
		)
		_ = a.Close()
		if err != nil {
			return profileStats{}, err
		}
		byteCount += n
		ops++
	}
	return profileStats{ops: ops, bytes: byteCount, elapsed: time.Since(start)}, nil
}

// contentFor returns a function registering data on an archive using the
// configured source kind.
func contentFor(ctx context.Context, cfg config, data *dataset) (func(*zipstream.Archive) error, func(), error) {
	switch cfg.source {
	case "bytes":
		return func(a *zipstream.Archive) error {
			for i, p := range data.paths {
				if err := a.AddFile(p, data.contents[i]); err != nil {
					return err
				}
			}
			return nil
		}, nil, nil
	case "file":
		return func(a *zipstream.Archive) error {
			for _, p := range data.paths {
				src, err := zipstream.FileSource(filepath.Join(data.dir, filepath.FromSlash(p)))
				if err != nil {
					return err
				}
				if err := a.AddFile(p, src); err != nil {
					return err
				}
			}
			return nil
		}, nil, nil
	case "http":
		return newHTTPContent(ctx, cfg, data)
	default:
		return nil, nil, fmt.Errorf("unknown source %q", cfg.source)
	}
}

func parseFlags() config {
	var cfg config
	var dataHTTPBPS string
	flag.StringVar(&cfg.source, "source", "bytes", "content source: bytes, file, http")
	flag.IntVar(&cfg.files, "files", 512, "number of files")
	flag.IntVar(&cfg.fileSize, "file-size", 16<<10, "file size in bytes")
	flag.IntVar(&cfg.dirCount, "dir-count", 16, "number of directories")
	flag.StringVar(&cfg.pattern, "pattern", "compressible", "pattern: compressible or random")
	flag.IntVar(&cfg.workers, "workers", 0, "checksum workers (0 = default)")
	flag.IntVar(&cfg.prefetch, "prefetch", 0, "checksum prefetch window")
	flag.IntVar(&cfg.chunk, "chunk", zipstream.DefaultReadChunkSize, "read chunk size in bytes")
	flag.DurationVar(&cfg.dataHTTPLatency, "data-http-latency", 0, "per-request latency for the HTTP source")
	flag.StringVar(&dataHTTPBPS, "data-http-bps", "", "bytes/sec throttle for the HTTP source (e.g. 10MBps)")
	flag.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flag.IntVar(&cfg.iterations, "iterations", 0, "number of archives to generate")
	flag.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flag.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	flag.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for dataset")
	flag.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	flag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.Parse()
	if dataHTTPBPS != "" {
		bps, err := parseBytesPerSecond(dataHTTPBPS)
		if err != nil {
			log.Fatalf("data-http-bps: %v", err)
		}
		cfg.dataHTTPBPS = bps
	}
	return cfg
}

func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "zipstream-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

func makeFiles(dir string, fileCount, fileSize, dirCount int, pattern string, seed int64) (*dataset, error) {
	if dirCount <= 0 {
		dirCount = 1
	}
	data := &dataset{dir: dir}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // intentional use for reproducible benchmarks
	for i := range fileCount {
		relPath := fmt.Sprintf("dir%02d/file%05d.dat", i%dirCount, i)
		fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil { //nolint:gosec // 0o755 is intentional for profiler
			return nil, err
		}

		content := make([]byte, fileSize)
		switch pattern {
		case "random":
			if _, err := rng.Read(content); err != nil {
				return nil, err
			}
		default:
			fillByte := byte('a' + (i % 26))
			for j := range content {
				content[j] = fillByte
			}
			if len(content) > 0 {
				content[0] = byte(i)
			}
		}

		if err := os.WriteFile(fullPath, content, 0o644); err != nil { //nolint:gosec // 0o644 is intentional for profiler test files
			return nil, err
		}
		data.paths = append(data.paths, relPath)
		data.contents = append(data.contents, content)
	}
	return data, nil
}
