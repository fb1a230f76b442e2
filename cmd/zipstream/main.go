// Command zipstream builds a ZIP archive from files, directories and URLs
// and writes it to a file, standard output or an OCI registry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/felixge/fgprof"

	"github.com/meigma/zipstream"
	"github.com/meigma/zipstream/registry"
	"github.com/meigma/zipstream/sink"
)

type config struct {
	output    string
	push      string
	tags      stringList
	workers   int
	chunk     int
	prefetch  int
	plainHTTP bool
	verbose   bool
	progress  bool
	fgProfile string
}

type stringList []string

func (s *stringList) String() string {
	return fmt.Sprint(*s)
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	cfg, inputs := parseFlags(os.Args[1:])
	if err := run(cfg, inputs); err != nil {
		fmt.Fprintln(os.Stderr, "zipstream:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (config, []string) {
	var cfg config
	fs := flag.NewFlagSet("zipstream", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: zipstream [flags] PATH|URL...")
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.output, "o", "-", "output file, - for standard output")
	fs.StringVar(&cfg.push, "push", "", "push the archive to an OCI reference (host/repo:tag) instead of writing it")
	fs.Var(&cfg.tags, "tag", "additional tag for -push (repeatable)")
	fs.IntVar(&cfg.workers, "workers", 0, "checksum workers (0 = GOMAXPROCS clamped to [2,6])")
	fs.IntVar(&cfg.chunk, "chunk", zipstream.DefaultReadChunkSize, "read chunk size in bytes")
	fs.IntVar(&cfg.prefetch, "prefetch", 0, "number of upcoming entries to checksum ahead")
	fs.BoolVar(&cfg.plainHTTP, "plain-http", false, "use plain HTTP for the registry")
	fs.BoolVar(&cfg.verbose, "v", false, "verbose logging")
	fs.BoolVar(&cfg.progress, "progress", false, "report progress on standard error")
	fs.StringVar(&cfg.fgProfile, "fgprof", "", "write a wall-clock profile to this file")
	_ = fs.Parse(args) //nolint:errcheck // ExitOnError
	return cfg, fs.Args()
}

func run(cfg config, inputs []string) error {
	if len(inputs) == 0 {
		return errors.New("no inputs; see -h")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if cfg.fgProfile != "" {
		f, err := os.Create(cfg.fgProfile)
		if err != nil {
			return err
		}
		stopProfile := fgprof.Start(f, fgprof.FormatPprof)
		defer func() {
			if err := stopProfile(); err != nil {
				logger.Warn("fgprof stop failed", "error", err)
			}
			_ = f.Close()
		}()
	}

	a := zipstream.New(zipstream.WithLogger(logger), zipstream.WithWorkers(cfg.workers))
	defer a.Close()

	if err := addInputs(ctx, a, inputs, logger); err != nil {
		return err
	}

	opts := []zipstream.GenerateOption{
		zipstream.GenerateWithReadChunkSize(cfg.chunk),
		zipstream.GenerateWithPrefetch(cfg.prefetch),
	}
	if cfg.progress {
		opts = append(opts, zipstream.GenerateWithProgress(progressPrinter(os.Stderr)))
	}
	seq := a.Generate(ctx, opts...)

	switch {
	case cfg.push != "":
		repo, tag, err := registry.NewRepository(cfg.push,
			registry.WithPlainHTTP(cfg.plainHTTP),
			registry.WithDockerConfig(),
		)
		if err != nil {
			return err
		}
		title := "archive.zip"
		if cfg.output != "-" {
			title = filepath.Base(cfg.output)
		}
		pusher, err := registry.NewPusher(repo, tag,
			registry.WithTags(cfg.tags...),
			registry.WithTitle(title),
			registry.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		res, err := pusher.Push(ctx, seq)
		if err != nil {
			return err
		}
		fmt.Printf("%s@%s\n", cfg.push, res.Manifest.Digest)
	case cfg.output == "-":
		if _, err := sink.Drain(ctx, seq, os.Stdout); err != nil {
			return err
		}
	default:
		res, err := sink.NewFile(cfg.output, sink.WithLogger(logger)).Write(ctx, seq)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s %d bytes %s\n", res.Path, res.Size, res.Digest)
	}
	return nil
}

// progressPrinter reports whole-percent changes on w.
func progressPrinter(w io.Writer) zipstream.ProgressFunc {
	last := -1
	return func(ev zipstream.ProgressEvent) {
		pct := int(ev.Percent)
		if pct == last && ev.Stage != zipstream.StageFinalizing {
			return
		}
		last = pct
		fmt.Fprintf(w, "\r%3d%% %d/%d %s", pct, ev.FilesDone, ev.FilesTotal, ev.Stage)
		if ev.Stage == zipstream.StageFinalizing {
			fmt.Fprintln(w)
		}
	}
}
