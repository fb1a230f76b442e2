package zipstream

import (
	"log/slog"
	"time"

	"github.com/meigma/zipstream/checksum"
)

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger for registration and generation diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithWorkers sets the worker count of the checksum pool the Archive creates.
// Ignored when WithChecksumPool is used.
func WithWorkers(n int) Option {
	return func(a *Archive) {
		a.workers = n
	}
}

// WithChecksumPool shares an existing pool. The Archive does not terminate
// a shared pool on Close.
func WithChecksumPool(pool *checksum.Pool) Option {
	return func(a *Archive) {
		a.pool = pool
		a.ownsPool = false
	}
}

// WithClock sets the clock used for default modification times.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		a.now = now
	}
}

// AddOption configures a single registration.
type AddOption func(*addConfig)

type addConfig struct {
	modTime time.Time
}

// AddWithModTime sets the entry's modification time.
// By default the archive clock at registration is used.
func AddWithModTime(t time.Time) AddOption {
	return func(c *addConfig) {
		c.modTime = t
	}
}
