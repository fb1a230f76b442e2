package zipfmt

import "encoding/binary"

// Directory summarizes the central directory for the end-of-archive records.
type Directory struct {
	Records uint64 // number of central directory records
	Size    uint64 // byte length of the central directory
	Offset  uint64 // offset of the first central directory record
}

// NeedsZip64 reports whether any field reaches its 16- or 32-bit limit.
func (d Directory) NeedsZip64() bool {
	return d.Records >= Uint16Max || d.Size >= Uint32Max || d.Offset >= Uint32Max
}

// EndSize returns the total length of the end-of-archive records for d.
func (d Directory) EndSize() int {
	if d.NeedsZip64() {
		return End64Len + End64LocatorLen + EndLen
	}
	return EndLen
}

// AppendEnd appends the end-of-archive records for d to dst.
//
// When d needs ZIP64, the ZIP64 end record and its locator are written
// first; the standard record always comes last. The ZIP64 end record is
// assumed to start immediately after the central directory.
func AppendEnd(dst []byte, d Directory) []byte {
	if d.NeedsZip64() {
		end64Offset := d.Offset + d.Size

		dst = binary.LittleEndian.AppendUint32(dst, End64Signature)
		dst = binary.LittleEndian.AppendUint64(dst, End64Len-12) // excludes signature and this field
		dst = binary.LittleEndian.AppendUint16(dst, VersionZip64) // made by
		dst = binary.LittleEndian.AppendUint16(dst, VersionZip64) // needed to extract
		dst = binary.LittleEndian.AppendUint32(dst, 0)            // this disk
		dst = binary.LittleEndian.AppendUint32(dst, 0)            // disk with central directory
		dst = binary.LittleEndian.AppendUint64(dst, d.Records)    // records on this disk
		dst = binary.LittleEndian.AppendUint64(dst, d.Records)    // total records
		dst = binary.LittleEndian.AppendUint64(dst, d.Size)
		dst = binary.LittleEndian.AppendUint64(dst, d.Offset)

		dst = binary.LittleEndian.AppendUint32(dst, End64LocatorSignature)
		dst = binary.LittleEndian.AppendUint32(dst, 0) // disk with ZIP64 end record
		dst = binary.LittleEndian.AppendUint64(dst, end64Offset)
		dst = binary.LittleEndian.AppendUint32(dst, 1) // total disks
	}

	records := uint16(Uint16Max)
	if d.Records < Uint16Max {
		records = uint16(d.Records)
	}
	size := uint32(Uint32Max)
	if d.Size < Uint32Max {
		size = uint32(d.Size)
	}
	offset := uint32(Uint32Max)
	if d.Offset < Uint32Max {
		offset = uint32(d.Offset)
	}

	dst = binary.LittleEndian.AppendUint32(dst, EndSignature)
	dst = binary.LittleEndian.AppendUint16(dst, 0) // this disk
	dst = binary.LittleEndian.AppendUint16(dst, 0) // disk with central directory
	dst = binary.LittleEndian.AppendUint16(dst, records)
	dst = binary.LittleEndian.AppendUint16(dst, records)
	dst = binary.LittleEndian.AppendUint32(dst, size)
	dst = binary.LittleEndian.AppendUint32(dst, offset)
	dst = binary.LittleEndian.AppendUint16(dst, 0) // comment length
	return dst
}
