package checksum

import (
	"log/slog"
	"runtime"
)

const (
	minWorkers = 2
	maxWorkers = 6
)

// Option configures a Pool.
type Option func(*Pool)

// WithWorkers sets the number of worker goroutines.
// Values <= 0 use the default: GOMAXPROCS clamped to [2, 6].
func WithWorkers(n int) Option {
	return func(p *Pool) {
		p.workers = n
	}
}

// WithLogger sets the logger for pool diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// DefaultWorkers returns the worker count used when none is configured.
func DefaultWorkers() int {
	return clampWorkers(runtime.GOMAXPROCS(0))
}

func clampWorkers(n int) int {
	return min(max(n, minWorkers), maxWorkers)
}
