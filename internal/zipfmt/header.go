package zipfmt

import "encoding/binary"

// Header describes one entry as it appears in both its local file header
// and its central directory record.
type Header struct {
	Name   string
	CRC32  uint32
	Size   uint64 // compressed and uncompressed; the store method keeps them equal
	Date   uint16 // MS-DOS date
	Time   uint16 // MS-DOS time
	Offset uint64 // offset of the local file header
	Dir    bool
}

// SizeNeedsZip64 reports whether the entry's sizes must move to a ZIP64 extra field.
func (h *Header) SizeNeedsZip64() bool {
	return h.Size >= Uint32Max
}

// OffsetNeedsZip64 reports whether the local header offset must move to a ZIP64 extra field.
func (h *Header) OffsetNeedsZip64() bool {
	return h.Offset >= Uint32Max
}

// LocalHeaderSize returns the encoded length of the local header including
// its name and extra field.
func (h *Header) LocalHeaderSize() int {
	n := LocalHeaderLen + len(h.Name)
	if h.SizeNeedsZip64() {
		n += 20
	}
	return n
}

// AppendLocalHeader appends the local file header for h to dst.
func AppendLocalHeader(dst []byte, h *Header) []byte {
	zip64 := h.SizeNeedsZip64()
	version := uint16(VersionDefault)
	size := uint32(h.Size) //nolint:gosec // replaced by the sentinel below when it does not fit
	var extraLen uint16
	if zip64 {
		version = VersionZip64
		size = Uint32Max
		extraLen = 20
	}

	dst = binary.LittleEndian.AppendUint32(dst, LocalHeaderSignature)
	dst = binary.LittleEndian.AppendUint16(dst, version)
	dst = binary.LittleEndian.AppendUint16(dst, FlagUTF8)
	dst = binary.LittleEndian.AppendUint16(dst, MethodStore)
	dst = binary.LittleEndian.AppendUint16(dst, h.Time)
	dst = binary.LittleEndian.AppendUint16(dst, h.Date)
	dst = binary.LittleEndian.AppendUint32(dst, h.CRC32)
	dst = binary.LittleEndian.AppendUint32(dst, size) // compressed
	dst = binary.LittleEndian.AppendUint32(dst, size) // uncompressed
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(h.Name))) //nolint:gosec // names are validated at registration
	dst = binary.LittleEndian.AppendUint16(dst, extraLen)
	dst = append(dst, h.Name...)
	if zip64 {
		dst = binary.LittleEndian.AppendUint16(dst, Zip64ExtraID)
		dst = binary.LittleEndian.AppendUint16(dst, 16)
		dst = binary.LittleEndian.AppendUint64(dst, h.Size) // uncompressed
		dst = binary.LittleEndian.AppendUint64(dst, h.Size) // compressed
	}
	return dst
}

// centralExtraLen returns the length of the ZIP64 extra field data in the
// central directory record, or 0 when none is needed.
func (h *Header) centralExtraLen() int {
	n := 0
	if h.SizeNeedsZip64() {
		n += 16
	}
	if h.OffsetNeedsZip64() {
		n += 8
	}
	return n
}

// CentralHeaderSize returns the encoded length of the central directory
// record including its name and extra field.
func (h *Header) CentralHeaderSize() int {
	n := CentralHeaderLen + len(h.Name)
	if extra := h.centralExtraLen(); extra > 0 {
		n += 4 + extra
	}
	return n
}

// AppendCentralHeader appends the central directory record for h to dst.
//
// The ZIP64 extra field lists only the values whose 32-bit fields hold the
// sentinel: uncompressed size, compressed size, then the header offset.
// The version fields match the local header, so an offset-only extra keeps
// the default version.
func AppendCentralHeader(dst []byte, h *Header) []byte {
	extra := h.centralExtraLen()
	version := uint16(VersionDefault)
	if h.SizeNeedsZip64() {
		version = VersionZip64
	}

	size := uint32(Uint32Max)
	if !h.SizeNeedsZip64() {
		size = uint32(h.Size)
	}
	offset := uint32(Uint32Max)
	if !h.OffsetNeedsZip64() {
		offset = uint32(h.Offset)
	}
	var attrs uint32
	if h.Dir {
		attrs = DirExternalAttrs
	}
	var extraLen uint16
	if extra > 0 {
		extraLen = uint16(4 + extra) //nolint:gosec // at most 28
	}

	dst = binary.LittleEndian.AppendUint32(dst, CentralHeaderSignature)
	dst = binary.LittleEndian.AppendUint16(dst, version) // made by, MS-DOS host
	dst = binary.LittleEndian.AppendUint16(dst, version) // needed to extract
	dst = binary.LittleEndian.AppendUint16(dst, FlagUTF8)
	dst = binary.LittleEndian.AppendUint16(dst, MethodStore)
	dst = binary.LittleEndian.AppendUint16(dst, h.Time)
	dst = binary.LittleEndian.AppendUint16(dst, h.Date)
	dst = binary.LittleEndian.AppendUint32(dst, h.CRC32)
	dst = binary.LittleEndian.AppendUint32(dst, size) // compressed
	dst = binary.LittleEndian.AppendUint32(dst, size) // uncompressed
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(h.Name))) //nolint:gosec // names are validated at registration
	dst = binary.LittleEndian.AppendUint16(dst, extraLen)
	dst = binary.LittleEndian.AppendUint16(dst, 0) // comment length
	dst = binary.LittleEndian.AppendUint16(dst, 0) // disk number start
	dst = binary.LittleEndian.AppendUint16(dst, 0) // internal attributes
	dst = binary.LittleEndian.AppendUint32(dst, attrs)
	dst = binary.LittleEndian.AppendUint32(dst, offset)
	dst = append(dst, h.Name...)
	if extra > 0 {
		dst = binary.LittleEndian.AppendUint16(dst, Zip64ExtraID)
		dst = binary.LittleEndian.AppendUint16(dst, uint16(extra)) //nolint:gosec // at most 24
		if h.SizeNeedsZip64() {
			dst = binary.LittleEndian.AppendUint64(dst, h.Size)
			dst = binary.LittleEndian.AppendUint64(dst, h.Size)
		}
		if h.OffsetNeedsZip64() {
			dst = binary.LittleEndian.AppendUint64(dst, h.Offset)
		}
	}
	return dst
}
