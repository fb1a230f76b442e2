package sink

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
)

// File writes archives to a path atomically.
//
// The archive is written to a temporary file in the destination directory,
// synced, and renamed over the final path only after the whole sequence was
// consumed. A failed generation never leaves partial output at the path.
type File struct {
	path   string
	perm   os.FileMode
	logger *slog.Logger
}

// FileOption configures a File.
type FileOption func(*File)

// WithPerm sets the permission bits of the written file. Default is 0644.
func WithPerm(perm os.FileMode) FileOption {
	return func(f *File) {
		f.perm = perm
	}
}

// WithLogger sets the logger for write diagnostics.
func WithLogger(logger *slog.Logger) FileOption {
	return func(f *File) {
		f.logger = logger
	}
}

// NewFile returns a File sink for path.
func NewFile(path string, opts ...FileOption) *File {
	f := &File{path: path, perm: 0o644}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}
	return f
}

// Path returns the destination path.
func (f *File) Path() string {
	return f.path
}

// Write consumes seq into the destination file.
func (f *File) Write(ctx context.Context, seq iter.Seq2[[]byte, error]) (Result, error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Result{}, fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".zipstream-*")
	if err != nil {
		return Result{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()        //nolint:errcheck // already failing
			_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		}
	}()

	res, err := Drain(ctx, seq, tmp)
	if err != nil {
		f.logger.Debug("archive write failed", "path", f.path, "bytes", res.Size, "error", err)
		return res, err
	}
	if err := tmp.Sync(); err != nil {
		return res, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(f.perm); err != nil {
		return res, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return res, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return res, fmt.Errorf("rename to %s: %w", f.path, err)
	}
	committed = true

	res.Path = f.path
	f.logger.Info("archive written", "path", f.path, "bytes", res.Size, "digest", res.Digest)
	return res, nil
}
