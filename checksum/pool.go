package checksum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrPoolClosed is returned for requests that were queued, in flight, or
// submitted after the pool was terminated.
var ErrPoolClosed = errors.New("checksum: pool closed")

// Opener provides sequential access to content from its beginning.
// Each call to Open must start a fresh read from the first byte.
type Opener interface {
	Open() (io.ReadCloser, error)
}

// identified is implemented by sources that can name their content.
// Concurrent requests for the same identifier share one task.
type identified interface {
	SourceID() string
}

// Pool computes checksums on a fixed set of worker goroutines.
//
// A dispatcher goroutine owns the FIFO task queue and the set of idle
// workers. Workers report completions back to the dispatcher, which resolves
// the matching future and hands the next queued task to the freed worker.
//
// A Pool must be released with Terminate.
type Pool struct {
	workers int
	logger  *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	group   errgroup.Group
	submit  chan *task
	done    chan completion
	inboxes []chan *task
	quit    chan struct{}
	once    sync.Once

	nextID atomic.Uint64
	flight singleflight.Group
}

type task struct {
	id        uint64
	src       Opener
	chunkSize int
	future    *Future
}

type completion struct {
	worker int
	taskID uint64
	res    result
	err    error
}

type result struct {
	sum uint32
	n   uint64
}

// NewPool starts a pool with its workers running.
func NewPool(opts ...Option) *Pool {
	p := &Pool{}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers <= 0 {
		p.workers = DefaultWorkers()
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.submit = make(chan *task)
	p.done = make(chan completion)
	p.quit = make(chan struct{})
	p.inboxes = make([]chan *task, p.workers)
	for i := range p.inboxes {
		inbox := make(chan *task, 1)
		p.inboxes[i] = inbox
		p.group.Go(func() error {
			p.work(i, inbox)
			return nil
		})
	}
	p.group.Go(func() error {
		p.dispatch()
		return nil
	})

	p.logger.Debug("checksum pool started", "workers", p.workers)
	return p
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Compute queues a checksum of src read in chunkSize chunks and returns its
// future. A chunkSize <= 0 uses DefaultChunkSize.
//
// If src implements SourceID() string, concurrent requests for the same
// identifier share a single read of the source.
func (p *Pool) Compute(src Opener, chunkSize int) *Future {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	f := newFuture(p.nextID.Add(1))

	key := sourceKey(src)
	if key == "" {
		p.enqueue(&task{id: f.id, src: src, chunkSize: chunkSize, future: f})
		return f
	}

	ch := p.flight.DoChan(key, func() (any, error) {
		shared := newFuture(f.id)
		p.enqueue(&task{id: shared.id, src: src, chunkSize: chunkSize, future: shared})
		<-shared.Done()
		return result{sum: shared.sum, n: shared.n}, shared.err
	})
	go func() {
		r := <-ch
		res, _ := r.Val.(result)
		f.resolveResult(res, r.Err)
	}()
	return f
}

// Terminate stops every worker and rejects queued and in-flight requests
// with ErrPoolClosed. It returns once all pool goroutines have exited; a
// worker blocked inside a source read exits after that read returns.
//
// Terminate must not be called while a generation still awaits checksums
// from this pool. It is safe to call more than once.
func (p *Pool) Terminate() {
	p.once.Do(func() {
		close(p.quit)
		p.cancel()
		_ = p.group.Wait() //nolint:errcheck // pool goroutines never return errors
		p.logger.Debug("checksum pool terminated")
	})
}

func (p *Pool) enqueue(t *task) {
	select {
	case p.submit <- t:
	case <-p.quit:
		t.future.resolve(0, ErrPoolClosed)
	}
}

// dispatch pairs queued tasks with idle workers until the pool quits.
func (p *Pool) dispatch() {
	var queue []*task
	idle := make([]int, 0, p.workers)
	for i := range p.workers {
		idle = append(idle, i)
	}
	inflight := make(map[uint64]*task, p.workers)

	for {
		select {
		case t := <-p.submit:
			queue = append(queue, t)
		case c := <-p.done:
			if t, ok := inflight[c.taskID]; ok {
				delete(inflight, c.taskID)
				t.future.resolveResult(c.res, c.err)
			}
			idle = append(idle, c.worker)
		case <-p.quit:
			for _, t := range queue {
				t.future.resolve(0, ErrPoolClosed)
			}
			for _, t := range inflight {
				t.future.resolve(0, ErrPoolClosed)
			}
			return
		}

		for len(queue) > 0 && len(idle) > 0 {
			t := queue[0]
			queue[0] = nil
			queue = queue[1:]
			w := idle[0]
			idle = idle[1:]
			inflight[t.id] = t
			p.inboxes[w] <- t // never blocks: a worker holds at most one task
		}
	}
}

// work runs tasks received on inbox one at a time.
func (p *Pool) work(worker int, inbox <-chan *task) {
	var buf []byte
	for {
		select {
		case <-p.quit:
			return
		case t := <-inbox:
			if cap(buf) < t.chunkSize {
				buf = make([]byte, t.chunkSize)
			}
			start := time.Now()
			res, err := p.run(t, buf[:t.chunkSize])
			if err != nil {
				p.logger.Debug("checksum task failed", "task_id", t.id, "worker", worker, "error", err)
			} else {
				p.logger.Debug("checksum task completed",
					"task_id", t.id, "worker", worker, "bytes", res.n, "duration", time.Since(start))
			}

			select {
			case p.done <- completion{worker: worker, taskID: t.id, res: res, err: err}:
			case <-p.quit:
				return
			}
		}
	}
}

// run checksums one source. A panicking source fails only its own task.
func (p *Pool) run(t *task, buf []byte) (res result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("checksum: source panicked: %v", r)
		}
	}()

	rc, err := t.src.Open()
	if err != nil {
		return result{}, fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()

	sum, n, err := Reader(p.ctx, rc, buf)
	if err != nil {
		return result{}, err
	}
	return result{sum: sum, n: n}, nil
}

func sourceKey(src Opener) string {
	if id, ok := src.(identified); ok {
		return id.SourceID()
	}
	return ""
}
