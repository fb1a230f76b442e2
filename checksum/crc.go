package checksum

import (
	"context"
	"errors"
	"hash/crc32"
	"io"
	"sync"
)

// DefaultChunkSize is the read granularity used when a task specifies none.
const DefaultChunkSize = 1 << 20

// table returns the IEEE lookup table, building it on first use.
var table = sync.OnceValue(func() *crc32.Table {
	return crc32.MakeTable(crc32.IEEE)
})

// Update returns the result of adding p to a running checksum.
// Start from 0 for a new checksum.
func Update(crc uint32, p []byte) uint32 {
	return crc32.Update(crc, table(), p)
}

// Bytes returns the CRC-32 of p.
func Bytes(p []byte) uint32 {
	return Update(0, p)
}

// Reader reads r until EOF in chunks of len(buf) bytes and returns the
// CRC-32 and the number of bytes read. The context is checked between chunks.
func Reader(ctx context.Context, r io.Reader, buf []byte) (sum uint32, n uint64, err error) {
	if len(buf) == 0 {
		return 0, 0, errors.New("checksum: empty read buffer")
	}
	for {
		if err := ctx.Err(); err != nil {
			return 0, n, err
		}
		read, readErr := r.Read(buf)
		if read > 0 {
			sum = Update(sum, buf[:read])
			n += uint64(read) //nolint:gosec // read is non-negative per io.Reader
		}
		if errors.Is(readErr, io.EOF) {
			return sum, n, nil
		}
		if readErr != nil {
			return 0, n, readErr
		}
	}
}
