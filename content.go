package zipstream

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// Streamable is content that can be read from the beginning any number of
// times. Size reports the number of bytes every Open yields.
//
// A Streamable may also implement SourceID() string. Sources that share an
// identifier are assumed to hold the same bytes, letting concurrent checksum
// requests for them share a single read.
type Streamable interface {
	Open() (io.ReadCloser, error)
	Size() int64
}

// ByteSource is random-access content of a known size.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// PathSource is a Streamable backed by a file on disk.
// Each Open reopens the path.
type PathSource struct {
	path string
	size int64
	id   string
}

// FileSource returns a Streamable for the file at path.
// The size is captured now; a file that changes size before generation
// fails with ErrSizeMismatch.
func FileSource(path string) (*PathSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w: is a directory", path, ErrUnsupportedContent)
	}
	return &PathSource{
		path: path,
		size: info.Size(),
		id:   fmt.Sprintf("file:%s:%d:%d", path, info.Size(), info.ModTime().UnixNano()),
	}, nil
}

// Open opens the file for reading.
func (s *PathSource) Open() (io.ReadCloser, error) {
	return os.Open(s.path)
}

// Size returns the file size observed by FileSource.
func (s *PathSource) Size() int64 {
	return s.size
}

// SourceID identifies the file by path, size and modification time.
func (s *PathSource) SourceID() string {
	return s.id
}

// SectionSource is a Streamable over a fixed range of an io.ReaderAt.
type SectionSource struct {
	r    io.ReaderAt
	size int64
	id   string
}

// ReaderAtSource returns a Streamable reading the first size bytes of r.
func ReaderAtSource(r io.ReaderAt, size int64) *SectionSource {
	return &SectionSource{r: r, size: size}
}

// Open returns a reader positioned at the start of the range.
func (s *SectionSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(io.NewSectionReader(s.r, 0, s.size)), nil
}

// Size returns the length of the range.
func (s *SectionSource) Size() int64 {
	return s.size
}

// SourceID returns the identifier derived from an *os.File, or "" if none.
func (s *SectionSource) SourceID() string {
	return s.id
}

// classified is the resolved form of a registration's content.
type classified struct {
	kind Kind
	data []byte
	src  Streamable
	size int64
}

// classify resolves content into one of the entry kinds. The order of the
// checks matters: a type implementing several shapes takes the first match.
func classify(content any) (classified, error) {
	switch c := content.(type) {
	case []byte:
		// Copied so later changes by the caller cannot diverge from the checksum.
		return classified{kind: KindBytes, data: bytes.Clone(c), size: int64(len(c))}, nil
	case string:
		data := []byte(strings.ToValidUTF8(c, "\uFFFD"))
		return classified{kind: KindText, data: data, size: int64(len(data))}, nil
	case Streamable:
		return classified{kind: KindStream, src: c, size: c.Size()}, nil
	case *os.File:
		if c == nil {
			return classified{}, fmt.Errorf("%w: nil *os.File", ErrUnsupportedContent)
		}
		info, err := c.Stat()
		if err != nil {
			return classified{}, fmt.Errorf("stat %s: %w", c.Name(), err)
		}
		if info.IsDir() {
			return classified{}, fmt.Errorf("%s: %w: is a directory", c.Name(), ErrUnsupportedContent)
		}
		src := &SectionSource{
			r:    c,
			size: info.Size(),
			id:   fmt.Sprintf("file:%s:%d:%d", c.Name(), info.Size(), info.ModTime().UnixNano()),
		}
		return classified{kind: KindStream, src: src, size: src.size}, nil
	case ByteSource:
		src := ReaderAtSource(c, c.Size())
		return classified{kind: KindStream, src: src, size: src.size}, nil
	default:
		return classified{}, fmt.Errorf("%w: %T", ErrUnsupportedContent, content)
	}
}
