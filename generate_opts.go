package zipstream

import "github.com/meigma/zipstream/checksum"

// Default generation settings.
const (
	// DefaultChecksumChunkSize is the read size of checksum workers.
	DefaultChecksumChunkSize = checksum.DefaultChunkSize

	// DefaultReadChunkSize is the size of content chunks emitted for streams.
	DefaultReadChunkSize = 1 << 20

	// maxDirectoryChunk bounds the size of one central directory chunk.
	maxDirectoryChunk = 64 << 10
)

// GenerateOption configures a single generation.
type GenerateOption func(*generateConfig)

type generateConfig struct {
	checksumChunkSize int
	readChunkSize     int
	progress          ProgressFunc
	clearAfter        bool
	prefetch          int
}

func defaultGenerateConfig() generateConfig {
	return generateConfig{
		checksumChunkSize: DefaultChecksumChunkSize,
		readChunkSize:     DefaultReadChunkSize,
		clearAfter:        true,
	}
}

// GenerateWithChecksumChunkSize sets the read size used when checksumming
// streamed content. Values <= 0 use DefaultChecksumChunkSize.
func GenerateWithChecksumChunkSize(n int) GenerateOption {
	return func(c *generateConfig) {
		if n > 0 {
			c.checksumChunkSize = n
		}
	}
}

// GenerateWithReadChunkSize sets the size of content chunks emitted for
// streamed content. Values <= 0 use DefaultReadChunkSize.
func GenerateWithReadChunkSize(n int) GenerateOption {
	return func(c *generateConfig) {
		if n > 0 {
			c.readChunkSize = n
		}
	}
}

// GenerateWithProgress sets a callback for progress updates.
func GenerateWithProgress(fn ProgressFunc) GenerateOption {
	return func(c *generateConfig) {
		c.progress = fn
	}
}

// GenerateWithClearAfter controls whether the registry is emptied after a
// successful generation. Default is true.
func GenerateWithClearAfter(clearAfter bool) GenerateOption {
	return func(c *generateConfig) {
		c.clearAfter = clearAfter
	}
}

// GenerateWithPrefetch requests checksums for up to n upcoming streamed
// entries while the current one is emitted. Output order is unaffected.
// Default is 0: each checksum is requested when its entry is reached.
func GenerateWithPrefetch(n int) GenerateOption {
	return func(c *generateConfig) {
		c.prefetch = max(n, 0)
	}
}
