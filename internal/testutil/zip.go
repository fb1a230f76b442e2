package testutil

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Record signatures and fixed lengths.
const (
	localSig        = 0x04034b50
	centralSig      = 0x02014b50
	endSig          = 0x06054b50
	end64Sig        = 0x06064b50
	end64LocSig     = 0x07064b50
	endLen          = 22
	end64Len        = 56
	end64LocLen     = 20
	localFixedLen   = 30
	centralFixedLen = 46
)

// LocalRecord is a decoded local file header.
type LocalRecord struct {
	Version        uint16
	Flags          uint16
	Method         uint16
	Time           uint16
	Date           uint16
	CRC32          uint32
	CompressedSize uint32
	Size           uint32
	Name           string
	Extra          []byte

	// Len is the header length including name and extra field.
	Len int
}

// CentralRecord is a decoded central directory header.
type CentralRecord struct {
	VersionMadeBy  uint16
	VersionNeeded  uint16
	Flags          uint16
	Method         uint16
	Time           uint16
	Date           uint16
	CRC32          uint32
	CompressedSize uint32
	Size           uint32
	Name           string
	Extra          []byte
	DiskStart      uint16
	InternalAttrs  uint16
	ExternalAttrs  uint32
	Offset         uint32
}

// End is the classic end of central directory record.
type End struct {
	Disk         uint16
	DirDisk      uint16
	DiskRecords  uint16
	TotalRecords uint16
	DirSize      uint32
	DirOffset    uint32
	CommentLen   uint16
}

// End64 is the ZIP64 end of central directory record and its locator.
type End64 struct {
	Offset        uint64
	VersionNeeded uint16
	DiskRecords   uint64
	TotalRecords  uint64
	DirSize       uint64
	DirOffset     uint64

	LocatorOffset uint64
	LocatorDisks  uint32
}

// Archive is the structural view of a stored ZIP container.
type Archive struct {
	Central []CentralRecord
	End     End
	End64   *End64
}

// ParseLocal decodes the local header at the start of b.
func ParseLocal(b []byte) (LocalRecord, error) {
	if len(b) < localFixedLen || binary.LittleEndian.Uint32(b) != localSig {
		return LocalRecord{}, errors.New("testutil: no local header")
	}
	le := binary.LittleEndian
	nameLen := int(le.Uint16(b[26:]))
	extraLen := int(le.Uint16(b[28:]))
	total := localFixedLen + nameLen + extraLen
	if len(b) < total {
		return LocalRecord{}, errors.New("testutil: truncated local header")
	}
	return LocalRecord{
		Version:        le.Uint16(b[4:]),
		Flags:          le.Uint16(b[6:]),
		Method:         le.Uint16(b[8:]),
		Time:           le.Uint16(b[10:]),
		Date:           le.Uint16(b[12:]),
		CRC32:          le.Uint32(b[14:]),
		CompressedSize: le.Uint32(b[18:]),
		Size:           le.Uint32(b[22:]),
		Name:           string(b[localFixedLen : localFixedLen+nameLen]),
		Extra:          b[localFixedLen+nameLen : total],
		Len:            total,
	}, nil
}

// Parse decodes the central directory and end records of a complete archive.
func Parse(b []byte) (*Archive, error) {
	return ParseTail(b, 0)
}

// ParseTail decodes the central directory and end records from the final
// bytes of an archive. base is the absolute offset of tail[0]; the central
// directory must lie entirely within tail.
func ParseTail(tail []byte, base uint64) (*Archive, error) {
	le := binary.LittleEndian
	if len(tail) < endLen {
		return nil, errors.New("testutil: archive too short")
	}
	eocd := tail[len(tail)-endLen:]
	if le.Uint32(eocd) != endSig {
		return nil, errors.New("testutil: no end of central directory record")
	}
	a := &Archive{End: End{
		Disk:         le.Uint16(eocd[4:]),
		DirDisk:      le.Uint16(eocd[6:]),
		DiskRecords:  le.Uint16(eocd[8:]),
		TotalRecords: le.Uint16(eocd[10:]),
		DirSize:      le.Uint32(eocd[12:]),
		DirOffset:    le.Uint32(eocd[16:]),
		CommentLen:   le.Uint16(eocd[20:]),
	}}

	records := uint64(a.End.TotalRecords)
	dirSize := uint64(a.End.DirSize)
	dirOffset := uint64(a.End.DirOffset)

	locPos := len(tail) - endLen - end64LocLen
	if locPos >= 0 && le.Uint32(tail[locPos:]) == end64LocSig {
		loc := tail[locPos:]
		e64 := &End64{
			LocatorOffset: le.Uint64(loc[8:]),
			LocatorDisks:  le.Uint32(loc[16:]),
		}
		pos := int64(e64.LocatorOffset) - int64(base)
		if pos < 0 || pos+end64Len > int64(len(tail)) {
			return nil, fmt.Errorf("testutil: zip64 record at %d outside tail", e64.LocatorOffset)
		}
		rec := tail[pos:]
		if le.Uint32(rec) != end64Sig {
			return nil, errors.New("testutil: bad zip64 end record signature")
		}
		e64.Offset = e64.LocatorOffset
		e64.VersionNeeded = le.Uint16(rec[14:])
		e64.DiskRecords = le.Uint64(rec[24:])
		e64.TotalRecords = le.Uint64(rec[32:])
		e64.DirSize = le.Uint64(rec[40:])
		e64.DirOffset = le.Uint64(rec[48:])
		a.End64 = e64

		records, dirSize, dirOffset = e64.TotalRecords, e64.DirSize, e64.DirOffset
	}

	if dirOffset < base {
		return nil, fmt.Errorf("testutil: directory at %d outside tail", dirOffset)
	}
	pos := dirOffset - base
	end := pos + dirSize
	if end > uint64(len(tail)) {
		return nil, errors.New("testutil: directory overruns archive")
	}
	dir := tail[pos:end]
	for range records {
		rec, n, err := parseCentral(dir)
		if err != nil {
			return nil, err
		}
		a.Central = append(a.Central, rec)
		dir = dir[n:]
	}
	if len(dir) != 0 {
		return nil, fmt.Errorf("testutil: %d trailing directory bytes", len(dir))
	}
	return a, nil
}

func parseCentral(b []byte) (CentralRecord, int, error) {
	le := binary.LittleEndian
	if len(b) < centralFixedLen || le.Uint32(b) != centralSig {
		return CentralRecord{}, 0, errors.New("testutil: no central directory header")
	}
	nameLen := int(le.Uint16(b[28:]))
	extraLen := int(le.Uint16(b[30:]))
	commentLen := int(le.Uint16(b[32:]))
	total := centralFixedLen + nameLen + extraLen + commentLen
	if len(b) < total {
		return CentralRecord{}, 0, errors.New("testutil: truncated central directory header")
	}
	return CentralRecord{
		VersionMadeBy:  le.Uint16(b[4:]),
		VersionNeeded:  le.Uint16(b[6:]),
		Flags:          le.Uint16(b[8:]),
		Method:         le.Uint16(b[10:]),
		Time:           le.Uint16(b[12:]),
		Date:           le.Uint16(b[14:]),
		CRC32:          le.Uint32(b[16:]),
		CompressedSize: le.Uint32(b[20:]),
		Size:           le.Uint32(b[24:]),
		DiskStart:      le.Uint16(b[34:]),
		InternalAttrs:  le.Uint16(b[36:]),
		ExternalAttrs:  le.Uint32(b[38:]),
		Offset:         le.Uint32(b[42:]),
		Name:           string(b[centralFixedLen : centralFixedLen+nameLen]),
		Extra:          b[centralFixedLen+nameLen : centralFixedLen+nameLen+extraLen],
	}, total, nil
}

// Zip64Values returns the 64-bit values of the ZIP64 extended information
// field in extra, or nil if there is none.
func Zip64Values(extra []byte) []uint64 {
	le := binary.LittleEndian
	for len(extra) >= 4 {
		id := le.Uint16(extra)
		size := int(le.Uint16(extra[2:]))
		if len(extra) < 4+size {
			return nil
		}
		if id == 0x0001 {
			var vals []uint64
			for body := extra[4 : 4+size]; len(body) >= 8; body = body[8:] {
				vals = append(vals, le.Uint64(body))
			}
			return vals
		}
		extra = extra[4+size:]
	}
	return nil
}
