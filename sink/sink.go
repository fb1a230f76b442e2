// Package sink delivers generated archives to their destination.
//
// Drain copies an archive sequence into any io.Writer while computing its
// digest. File writes the archive to disk atomically.
package sink

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/zipstream"
)

// Result describes a delivered archive.
type Result struct {
	// Path is the final location, empty for plain writers.
	Path string

	// Size is the number of archive bytes delivered.
	Size int64

	// Digest is the SHA-256 digest of the archive bytes.
	Digest digest.Digest
}

// Drain consumes seq and writes every chunk to w.
//
// A write failure or a done ctx stops the sequence, which leaves the
// producing archive untouched, and is reported wrapped in
// zipstream.ErrAborted. Errors yielded by seq are returned unchanged.
func Drain(ctx context.Context, seq iter.Seq2[[]byte, error], w io.Writer) (Result, error) {
	digester := digest.Canonical.Digester()
	dst := io.MultiWriter(w, digester.Hash())

	var size int64
	for chunk, err := range seq {
		if err != nil {
			return Result{Size: size}, err
		}
		if err := ctx.Err(); err != nil {
			return Result{Size: size}, fmt.Errorf("%w: %w", zipstream.ErrAborted, err)
		}
		n, err := dst.Write(chunk)
		size += int64(n)
		if err != nil {
			return Result{Size: size}, fmt.Errorf("%w: %w", zipstream.ErrAborted, err)
		}
	}
	return Result{Size: size, Digest: digester.Digest()}, nil
}
