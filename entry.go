package zipstream

import (
	"time"

	"github.com/meigma/zipstream/internal/zipfmt"
)

// Kind identifies how an entry's content is held.
type Kind uint8

// Entry kinds.
const (
	// KindBytes is an in-memory byte slice.
	KindBytes Kind = iota

	// KindText is a string stored as UTF-8.
	KindText

	// KindStream is a Streamable read during generation.
	KindStream

	// KindDirectory is a folder with no content.
	KindDirectory
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindText:
		return "text"
	case KindStream:
		return "stream"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// entry is one archive member. CRC and offset are filled in by a successful
// generation; bytes, text and directories know their CRC at registration.
type entry struct {
	name    string
	kind    Kind
	data    []byte
	src     Streamable
	size    uint64
	crc     uint32
	hasCRC  bool
	modTime time.Time

	offset    uint64
	hasOffset bool
}

func (e *entry) pendingCRC() bool {
	return e.kind == KindStream && !e.hasCRC
}

func (e *entry) header() *zipfmt.Header {
	date, clock := zipfmt.DOSDateTime(e.modTime)
	return &zipfmt.Header{
		Name:   e.name,
		CRC32:  e.crc,
		Size:   e.size,
		Date:   date,
		Time:   clock,
		Offset: e.offset,
		Dir:    e.kind == KindDirectory,
	}
}

// EntryView is a read-only snapshot of a registered entry.
type EntryView struct {
	entry entry
}

// Name returns the normalized entry name. Directory names end with "/".
func (ev EntryView) Name() string {
	return ev.entry.name
}

// Kind returns how the content is held.
func (ev EntryView) Kind() Kind {
	return ev.entry.kind
}

// IsDir reports whether the entry is a directory.
func (ev EntryView) IsDir() bool {
	return ev.entry.kind == KindDirectory
}

// Size returns the content size in bytes.
func (ev EntryView) Size() uint64 {
	return ev.entry.size
}

// CRC32 returns the content checksum and whether it is known yet.
// Stream checksums become known after a generation that kept the registry.
func (ev EntryView) CRC32() (uint32, bool) {
	return ev.entry.crc, ev.entry.hasCRC
}

// ModTime returns the entry's modification time.
func (ev EntryView) ModTime() time.Time {
	return ev.entry.modTime
}

// Offset returns the local header offset assigned by the last successful
// generation, and whether one was assigned.
func (ev EntryView) Offset() (uint64, bool) {
	return ev.entry.offset, ev.entry.hasOffset
}
