// Package checksum computes CRC-32 checksums for archive entries.
//
// [Pool] runs a bounded set of worker goroutines that checksum streamable
// sources on request. Tasks are queued in FIFO order and handed to the first
// idle worker; each request returns a [Future] that resolves once its task
// completes. A failure reading one source rejects only that task's future.
//
// The CRC-32 variant is the reflected IEEE polynomial (0xEDB88320) used by
// ZIP. The lookup table is built once on first use and shared read-only by
// every goroutine.
package checksum
