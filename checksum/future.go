package checksum

import (
	"context"
	"sync"
)

// Future is the pending result of a checksum request.
type Future struct {
	id   uint64
	done chan struct{}
	once sync.Once
	sum  uint32
	n    uint64
	err  error
}

func newFuture(id uint64) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// ID returns the identifier of the request that created f.
func (f *Future) ID() uint64 {
	return f.id
}

// Done returns a channel that is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the checksum is available or ctx is done.
// Cancelling ctx does not cancel the underlying task.
func (f *Future) Wait(ctx context.Context) (uint32, error) {
	select {
	case <-f.done:
		return f.sum, f.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// BytesRead returns the number of bytes the checksum covered.
// It is only meaningful after Done is closed and Wait returned no error.
func (f *Future) BytesRead() uint64 {
	select {
	case <-f.done:
		return f.n
	default:
		return 0
	}
}

func (f *Future) resolve(sum uint32, err error) {
	f.resolveResult(result{sum: sum}, err)
}

// resolveResult records the outcome. Only the first call has an effect.
func (f *Future) resolveResult(res result, err error) {
	f.once.Do(func() {
		f.sum = res.sum
		f.n = res.n
		f.err = err
		close(f.done)
	})
}
