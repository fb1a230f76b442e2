package zipstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/meigma/zipstream/checksum"
	"github.com/meigma/zipstream/internal/sizing"
	"github.com/meigma/zipstream/internal/zipfmt"
)

// errStopped signals that the consumer stopped iterating.
var errStopped = errors.New("consumer stopped")

// Generate returns the archive as a lazy sequence of byte chunks.
//
// The sequence can be iterated once; a second iteration yields
// ErrAlreadyConsumed. Nothing is read until iteration starts. Each chunk is
// only valid until the next iteration step. On error the sequence yields
// the error once and ends; bytes already yielded do not form a valid archive.
//
// Generation works on a snapshot of the registry. Checksums and offsets are
// written back, and the registry is cleared if configured, only after the
// last chunk was consumed. Stopping early leaves the registry untouched.
func (a *Archive) Generate(ctx context.Context, opts ...GenerateOption) iter.Seq2[[]byte, error] {
	cfg := defaultGenerateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var consumed atomic.Bool
	return func(yield func([]byte, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(nil, ErrAlreadyConsumed)
			return
		}

		g, err := a.begin(cfg)
		if err != nil {
			yield(nil, err)
			return
		}
		g.yield = yield

		// A panic in the consumer or a progress callback must not leave the
		// registry locked.
		released := false
		defer func() {
			if !released {
				a.end(g, false)
			}
		}()

		err = g.run(ctx)
		released = true
		switch {
		case errors.Is(err, errStopped):
			a.end(g, false)
			a.log().Warn("generation stopped before completion",
				"error", ErrAborted, "entries_written", g.filesDone, "bytes", g.cursor.Offset())
		case err != nil:
			a.end(g, false)
			a.log().Error("generation failed", "error", err, "entries_written", g.filesDone)
			yield(nil, err)
		default:
			a.end(g, true)
			a.log().Info("archive generated",
				"entries", len(g.items), "bytes", g.cursor.Offset(), "duration", time.Since(g.start))
		}
	}
}

// WriteArchive generates the archive into w and returns the number of bytes
// written. A write failure aborts generation and is reported wrapped in
// ErrAborted.
func (a *Archive) WriteArchive(ctx context.Context, w io.Writer, opts ...GenerateOption) (int64, error) {
	var written int64
	for chunk, err := range a.Generate(ctx, opts...) {
		if err != nil {
			return written, err
		}
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("%w: %w", ErrAborted, err)
		}
	}
	return written, nil
}

// generator holds the state of one generation.
type generator struct {
	cfg    generateConfig
	logger *slog.Logger
	pool   *checksum.Pool
	yield  func([]byte, error) bool
	start  time.Time

	items []entry
	origs []*entry

	cursor  sizing.Cursor
	buf     []byte
	readBuf []byte

	futures map[int]*checksum.Future
	scan    int

	bytesTotal  uint64
	bytesDone   uint64
	filesDone   int
	lastPercent float64
}

// begin snapshots the registry and marks a generation active.
func (a *Archive) begin(cfg generateConfig) (*generator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.generating {
		return nil, ErrGenerationActive
	}

	g := &generator{
		cfg:     cfg,
		logger:  a.log(),
		start:   time.Now(),
		items:   make([]entry, len(a.entries)),
		origs:   make([]*entry, len(a.entries)),
		futures: make(map[int]*checksum.Future),
	}
	pending := false
	for i, e := range a.entries {
		g.items[i] = *e
		g.origs[i] = e
		pending = pending || e.pendingCRC()
		total, ok := sizing.AddUint64(g.bytesTotal, e.size)
		if !ok {
			total = math.MaxUint64
		}
		g.bytesTotal = total
	}
	if pending {
		pool, err := a.checksumPool()
		if err != nil {
			return nil, err
		}
		g.pool = pool
	}

	a.generating = true
	g.logger.Info("generating archive", "entries", len(g.items), "content_bytes", g.bytesTotal)
	return g, nil
}

// end releases the generation. On success the resolved checksums and
// offsets are written back and the registry is cleared if configured.
func (a *Archive) end(g *generator, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.generating = false
	if !success {
		return
	}
	if g.cfg.clearAfter {
		a.reset()
		return
	}
	for i, orig := range g.origs {
		orig.crc = g.items[i].crc
		orig.hasCRC = true
		orig.offset = g.items[i].offset
		orig.hasOffset = true
	}
}

func (g *generator) run(ctx context.Context) error {
	for i := range g.items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.writeEntry(ctx, i); err != nil {
			return err
		}
		g.filesDone++
	}
	if err := g.writeDirectory(); err != nil {
		return err
	}

	g.report(ProgressEvent{Stage: StageFinalizing, Percent: 100})
	return nil
}

// writeEntry emits the local header and content of entry i.
func (g *generator) writeEntry(ctx context.Context, i int) error {
	e := &g.items[i]
	if e.pendingCRC() {
		if err := g.resolveChecksum(ctx, i); err != nil {
			return err
		}
	}

	e.offset = g.cursor.Offset()
	e.hasOffset = true
	h := e.header()
	g.buf = zipfmt.AppendLocalHeader(g.buf[:0], h)
	if err := g.emit(g.buf); err != nil {
		return err
	}

	switch e.kind {
	case KindStream:
		if err := g.writeStream(ctx, e); err != nil {
			return err
		}
	case KindBytes, KindText:
		if len(e.data) > 0 {
			if err := g.emit(e.data); err != nil {
				return err
			}
		}
	}
	if e.size == 0 {
		g.reportEntry(e, 0)
	} else if e.kind != KindStream {
		g.bytesDone += e.size
		g.reportEntry(e, e.size)
	}

	g.logger.Debug("entry written", "name", e.name, "kind", e.kind, "size", e.size,
		"offset", e.offset, "zip64", h.SizeNeedsZip64())
	return nil
}

// resolveChecksum waits for the checksum of stream entry i and checks that
// the source yielded its declared size.
func (g *generator) resolveChecksum(ctx context.Context, i int) error {
	e := &g.items[i]
	f := g.request(i)
	sum, err := f.Wait(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, checksum.ErrPoolClosed) {
			return fmt.Errorf("checksum %s: %w", e.name, err)
		}
		return &SourceReadError{Name: e.name, Op: "checksum", Err: err}
	}
	if n := f.BytesRead(); n != e.size {
		return &SourceReadError{
			Name: e.name,
			Op:   "checksum",
			Err:  fmt.Errorf("%w: declared %d bytes, read %d", ErrSizeMismatch, e.size, n),
		}
	}
	e.crc = sum
	e.hasCRC = true
	return nil
}

// request returns the checksum future for entry i and tops up the prefetch
// window with the next pending stream entries.
func (g *generator) request(i int) *checksum.Future {
	f, ok := g.futures[i]
	if ok {
		delete(g.futures, i)
	} else {
		f = g.pool.Compute(g.items[i].src, g.cfg.checksumChunkSize)
	}

	for g.scan < len(g.items) && len(g.futures) < g.cfg.prefetch {
		j := g.scan
		g.scan++
		if j <= i || !g.items[j].pendingCRC() {
			continue
		}
		g.futures[j] = g.pool.Compute(g.items[j].src, g.cfg.checksumChunkSize)
	}
	return f
}

// writeStream re-opens a stream and emits it in fixed-size chunks.
func (g *generator) writeStream(ctx context.Context, e *entry) error {
	rc, err := e.src.Open()
	if err != nil {
		return &SourceReadError{Name: e.name, Op: "read", Err: err}
	}
	defer rc.Close()

	if len(g.readBuf) < g.cfg.readChunkSize {
		g.readBuf = make([]byte, g.cfg.readChunkSize)
	}
	buf := g.readBuf[:g.cfg.readChunkSize]

	var done uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := io.ReadFull(rc, buf)
		if n > 0 {
			if uint64(n) > e.size-done {
				return &SourceReadError{
					Name: e.name,
					Op:   "read",
					Err:  fmt.Errorf("%w: declared %d bytes, source has more", ErrSizeMismatch, e.size),
				}
			}
			if err := g.emit(buf[:n]); err != nil {
				return err
			}
			done += uint64(n)
			g.bytesDone += uint64(n)
			g.reportEntry(e, done)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return &SourceReadError{Name: e.name, Op: "read", Err: rerr}
		}
	}
	if done != e.size {
		return &SourceReadError{
			Name: e.name,
			Op:   "read",
			Err:  fmt.Errorf("%w: declared %d bytes, read %d", ErrSizeMismatch, e.size, done),
		}
	}
	return nil
}

// writeDirectory emits the central directory in bounded chunks followed by
// the end records.
func (g *generator) writeDirectory() error {
	start := g.cursor.Offset()
	g.buf = g.buf[:0]
	for i := range g.items {
		h := g.items[i].header()
		if len(g.buf) > 0 && len(g.buf)+h.CentralHeaderSize() > maxDirectoryChunk {
			if err := g.emit(g.buf); err != nil {
				return err
			}
			g.buf = g.buf[:0]
		}
		g.buf = zipfmt.AppendCentralHeader(g.buf, h)
	}
	if len(g.buf) > 0 {
		if err := g.emit(g.buf); err != nil {
			return err
		}
	}

	dir := zipfmt.Directory{
		Records: uint64(len(g.items)),
		Size:    g.cursor.Offset() - start,
		Offset:  start,
	}
	g.buf = zipfmt.AppendEnd(g.buf[:0], dir)
	if dir.NeedsZip64() {
		g.logger.Debug("writing zip64 end records", "records", dir.Records, "directory_offset", dir.Offset)
	}
	return g.emit(g.buf)
}

// emit advances the cursor and hands p to the consumer.
func (g *generator) emit(p []byte) error {
	if err := g.cursor.Advance(len(p)); err != nil {
		return ErrSizeOverflow
	}
	if !g.yield(p, nil) {
		return errStopped
	}
	return nil
}

func (g *generator) reportEntry(e *entry, done uint64) {
	g.report(ProgressEvent{
		Stage:      StageWriting,
		Path:       e.name,
		BytesDone:  done,
		BytesTotal: e.size,
		FilesDone:  g.filesDone,
		Percent:    percent(g.bytesDone, g.bytesTotal),
	})
}

// report delivers ev with FilesTotal filled in and Percent kept monotonic.
func (g *generator) report(ev ProgressEvent) {
	if g.cfg.progress == nil {
		return
	}
	ev.FilesTotal = len(g.items)
	if ev.Stage == StageFinalizing {
		ev.FilesDone = g.filesDone
	}
	ev.Percent = max(ev.Percent, g.lastPercent)
	g.lastPercent = ev.Percent
	g.cfg.progress(ev)
}
