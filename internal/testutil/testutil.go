// Package testutil provides content sources and archive inspection helpers
// shared by tests.
package testutil

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// ErrInjected is returned by FailingSource reads.
var ErrInjected = errors.New("testutil: injected read failure")

// MockByteSource implements a simple in-memory random-access source.
type MockByteSource struct {
	data []byte
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	return &MockByteSource{data: data}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if off+int64(n) >= int64(len(m.data)) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// StreamSource is a restartable in-memory stream that counts how often it
// was opened.
type StreamSource struct {
	data     []byte
	declared int64
	opens    atomic.Int64
}

// NewStreamSource returns a stream over data declaring its true length.
func NewStreamSource(data []byte) *StreamSource {
	return &StreamSource{data: data, declared: int64(len(data))}
}

// NewLyingSource returns a stream over data that declares size instead of
// its true length.
func NewLyingSource(data []byte, size int64) *StreamSource {
	return &StreamSource{data: data, declared: size}
}

// Open returns a reader positioned at the first byte.
func (s *StreamSource) Open() (io.ReadCloser, error) {
	s.opens.Add(1)
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

// Size returns the declared size.
func (s *StreamSource) Size() int64 {
	return s.declared
}

// Opens returns the number of Open calls so far.
func (s *StreamSource) Opens() int {
	return int(s.opens.Load())
}

// IDSource is a StreamSource that names its content.
type IDSource struct {
	*StreamSource
	ID string
}

// NewIDSource returns a stream over data identified by id.
func NewIDSource(data []byte, id string) IDSource {
	return IDSource{StreamSource: NewStreamSource(data), ID: id}
}

// SourceID returns the content identifier.
func (s IDSource) SourceID() string {
	return s.ID
}

// FailingSource yields good bytes and then fails.
// Opens numbered below FailFromOpen succeed completely.
type FailingSource struct {
	Data []byte

	// FailAfter is the number of bytes delivered before the error.
	FailAfter int

	// FailFromOpen is the 1-based Open call from which reads fail.
	// Zero fails every open.
	FailFromOpen int

	opens atomic.Int64
}

// Open returns a reader that fails according to the source configuration.
func (s *FailingSource) Open() (io.ReadCloser, error) {
	n := int(s.opens.Add(1))
	if s.FailFromOpen > 0 && n < s.FailFromOpen {
		return io.NopCloser(bytes.NewReader(s.Data)), nil
	}
	limit := min(s.FailAfter, len(s.Data))
	return io.NopCloser(io.MultiReader(
		bytes.NewReader(s.Data[:limit]),
		errReader{},
	)), nil
}

// Size returns the length of Data.
func (s *FailingSource) Size() int64 {
	return int64(len(s.Data))
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, ErrInjected
}

// ZeroSource is a synthetic stream of size zero bytes that is never held
// in memory.
type ZeroSource struct {
	N int64
}

// Open returns a reader of N zero bytes.
func (s ZeroSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(io.LimitReader(zeroReader{}, s.N)), nil
}

// Size returns N.
func (s ZeroSource) Size() int64 {
	return s.N
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// GatedSource blocks every Open until Release is called.
type GatedSource struct {
	*StreamSource
	gate    chan struct{}
	once    sync.Once
	started chan struct{}
	mark    sync.Once
}

// NewGatedSource returns a closed gate over data.
func NewGatedSource(data []byte) *GatedSource {
	return &GatedSource{
		StreamSource: NewStreamSource(data),
		gate:         make(chan struct{}),
		started:      make(chan struct{}),
	}
}

// Open waits for Release before returning the reader.
func (s *GatedSource) Open() (io.ReadCloser, error) {
	s.mark.Do(func() { close(s.started) })
	<-s.gate
	return s.StreamSource.Open()
}

// Started is closed once Open was first called.
func (s *GatedSource) Started() <-chan struct{} {
	return s.started
}

// Release unblocks current and future Open calls.
func (s *GatedSource) Release() {
	s.once.Do(func() { close(s.gate) })
}

// Capture is an io.Writer that keeps the first and last bytes written and
// counts the rest. It lets tests inspect archives too large to buffer.
type Capture struct {
	HeadLimit int
	TailLimit int

	Head  []byte
	tail  []byte
	Total uint64
}

// Write records p.
func (c *Capture) Write(p []byte) (int, error) {
	c.Total += uint64(len(p))
	if room := c.HeadLimit - len(c.Head); room > 0 {
		c.Head = append(c.Head, p[:min(room, len(p))]...)
	}
	if len(p) >= c.TailLimit {
		c.tail = append(c.tail[:0], p[len(p)-c.TailLimit:]...)
		return len(p), nil
	}
	c.tail = append(c.tail, p...)
	if over := len(c.tail) - c.TailLimit; over > 0 {
		c.tail = append(c.tail[:0], c.tail[over:]...)
	}
	return len(p), nil
}

// Tail returns the last bytes written and their absolute offset.
func (c *Capture) Tail() ([]byte, uint64) {
	return c.tail, c.Total - uint64(len(c.tail))
}
