package zipfmt

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localFields mirrors the fixed part of a local file header.
type localFields struct {
	Signature uint32
	Version   uint16
	Flags     uint16
	Method    uint16
	Time      uint16
	Date      uint16
	CRC32     uint32
	CSize     uint32
	USize     uint32
	NameLen   uint16
	ExtraLen  uint16
}

func decodeLocal(t *testing.T, b []byte) localFields {
	t.Helper()
	require.GreaterOrEqual(t, len(b), LocalHeaderLen)
	le := binary.LittleEndian
	return localFields{
		Signature: le.Uint32(b[0:]),
		Version:   le.Uint16(b[4:]),
		Flags:     le.Uint16(b[6:]),
		Method:    le.Uint16(b[8:]),
		Time:      le.Uint16(b[10:]),
		Date:      le.Uint16(b[12:]),
		CRC32:     le.Uint32(b[14:]),
		CSize:     le.Uint32(b[18:]),
		USize:     le.Uint32(b[22:]),
		NameLen:   le.Uint16(b[26:]),
		ExtraLen:  le.Uint16(b[28:]),
	}
}

// centralFields mirrors the fixed part of a central directory header.
type centralFields struct {
	Signature     uint32
	MadeBy        uint16
	Version       uint16
	Flags         uint16
	Method        uint16
	CRC32         uint32
	CSize         uint32
	USize         uint32
	NameLen       uint16
	ExtraLen      uint16
	ExternalAttrs uint32
	Offset        uint32
}

func decodeCentral(t *testing.T, b []byte) centralFields {
	t.Helper()
	require.GreaterOrEqual(t, len(b), CentralHeaderLen)
	le := binary.LittleEndian
	return centralFields{
		Signature:     le.Uint32(b[0:]),
		MadeBy:        le.Uint16(b[4:]),
		Version:       le.Uint16(b[6:]),
		Flags:         le.Uint16(b[8:]),
		Method:        le.Uint16(b[10:]),
		CRC32:         le.Uint32(b[16:]),
		CSize:         le.Uint32(b[20:]),
		USize:         le.Uint32(b[24:]),
		NameLen:       le.Uint16(b[28:]),
		ExtraLen:      le.Uint16(b[30:]),
		ExternalAttrs: le.Uint32(b[38:]),
		Offset:        le.Uint32(b[42:]),
	}
}

func TestAppendLocalHeader_SmallFile(t *testing.T) {
	t.Parallel()

	date, clock := DOSDateTime(time.Date(2024, time.March, 9, 13, 45, 31, 0, time.UTC))
	h := &Header{Name: "a.txt", CRC32: 0xe8b7be43, Size: 1, Date: date, Time: clock}
	b := AppendLocalHeader(nil, h)

	require.Len(t, b, LocalHeaderLen+len("a.txt"))
	assert.Equal(t, h.LocalHeaderSize(), len(b))
	want := localFields{
		Signature: LocalHeaderSignature,
		Version:   VersionDefault,
		Flags:     FlagUTF8,
		Method:    MethodStore,
		Time:      clock,
		Date:      date,
		CRC32:     0xe8b7be43,
		CSize:     1,
		USize:     1,
		NameLen:   5,
	}
	if diff := cmp.Diff(want, decodeLocal(t, b)); diff != "" {
		t.Fatalf("local header mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "a.txt", string(b[LocalHeaderLen:]))
}

func TestAppendLocalHeader_Zip64Threshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		size      uint64
		wantZip64 bool
	}{
		{name: "just below sentinel", size: 0xfffffffe, wantZip64: false},
		{name: "sentinel", size: 0xffffffff, wantZip64: true},
		{name: "four gibibytes", size: 0x100000000, wantZip64: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := &Header{Name: "big.bin", Size: tt.size}
			b := AppendLocalHeader(nil, h)
			got := decodeLocal(t, b)
			assert.Equal(t, h.LocalHeaderSize(), len(b))

			if !tt.wantZip64 {
				assert.Equal(t, uint16(VersionDefault), got.Version)
				assert.Equal(t, uint16(0), got.ExtraLen)
				assert.Equal(t, uint32(tt.size), got.USize)
				return
			}

			assert.Equal(t, uint16(VersionZip64), got.Version)
			assert.Equal(t, uint32(Uint32Max), got.USize)
			assert.Equal(t, uint32(Uint32Max), got.CSize)
			require.Equal(t, uint16(20), got.ExtraLen)

			extra := b[LocalHeaderLen+len(h.Name):]
			le := binary.LittleEndian
			assert.Equal(t, uint16(Zip64ExtraID), le.Uint16(extra[0:]))
			assert.Equal(t, uint16(16), le.Uint16(extra[2:]))
			assert.Equal(t, tt.size, le.Uint64(extra[4:]))
			assert.Equal(t, tt.size, le.Uint64(extra[12:]))
		})
	}
}

func TestAppendCentralHeader_Directory(t *testing.T) {
	t.Parallel()

	h := &Header{Name: "dir/", Dir: true, Offset: 1234}
	b := AppendCentralHeader(nil, h)
	require.Len(t, b, CentralHeaderLen+len("dir/"))
	assert.Equal(t, h.CentralHeaderSize(), len(b))

	got := decodeCentral(t, b)
	assert.Equal(t, uint32(CentralHeaderSignature), got.Signature)
	assert.Equal(t, uint32(0), got.CRC32)
	assert.Equal(t, uint32(0), got.USize)
	assert.Equal(t, uint32(DirExternalAttrs), got.ExternalAttrs)
	assert.NotZero(t, got.ExternalAttrs&msdosDir)
	assert.NotZero(t, got.ExternalAttrs&(msdosDir<<16))
	assert.Equal(t, uint32(1234), got.Offset)
}

func TestAppendCentralHeader_Zip64Fields(t *testing.T) {
	t.Parallel()

	le := binary.LittleEndian
	tests := []struct {
		name        string
		header      Header
		wantExtra   []uint64
		wantOffset  uint32
		wantSize    uint32
		wantVersion uint16
	}{
		{
			name:        "no zip64",
			header:      Header{Name: "f", Size: 10, Offset: 0xfffffffe},
			wantOffset:  0xfffffffe,
			wantSize:    10,
			wantVersion: VersionDefault,
		},
		{
			name:        "size only",
			header:      Header{Name: "f", Size: 0x100000000, Offset: 40},
			wantExtra:   []uint64{0x100000000, 0x100000000},
			wantOffset:  40,
			wantSize:    Uint32Max,
			wantVersion: VersionZip64,
		},
		{
			name:        "offset only",
			header:      Header{Name: "f", Size: 3, Offset: 0x100000000},
			wantExtra:   []uint64{0x100000000},
			wantOffset:  Uint32Max,
			wantSize:    3,
			wantVersion: VersionDefault,
		},
		{
			name:        "size and offset",
			header:      Header{Name: "f", Size: 0x1ffffffff, Offset: 0x2ffffffff},
			wantExtra:   []uint64{0x1ffffffff, 0x1ffffffff, 0x2ffffffff},
			wantOffset:  Uint32Max,
			wantSize:    Uint32Max,
			wantVersion: VersionZip64,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := AppendCentralHeader(nil, &tt.header)
			assert.Equal(t, tt.header.CentralHeaderSize(), len(b))
			got := decodeCentral(t, b)
			assert.Equal(t, tt.wantOffset, got.Offset)
			assert.Equal(t, tt.wantSize, got.USize)
			assert.Equal(t, tt.wantSize, got.CSize)
			assert.Equal(t, tt.wantVersion, got.Version)
			assert.Equal(t, tt.wantVersion, got.MadeBy)
			local := AppendLocalHeader(nil, &tt.header)
			assert.Equal(t, le.Uint16(local[4:]), got.Version, "mirrors local header")

			if len(tt.wantExtra) == 0 {
				assert.Equal(t, uint16(0), got.ExtraLen)
				return
			}
			require.Equal(t, uint16(4+8*len(tt.wantExtra)), got.ExtraLen)

			extra := b[CentralHeaderLen+len(tt.header.Name):]
			assert.Equal(t, uint16(Zip64ExtraID), le.Uint16(extra))
			assert.Equal(t, uint16(8*len(tt.wantExtra)), le.Uint16(extra[2:]))
			var values []uint64
			for i := range tt.wantExtra {
				values = append(values, le.Uint64(extra[4+8*i:]))
			}
			assert.Equal(t, tt.wantExtra, values)
		})
	}
}

func TestAppendEnd(t *testing.T) {
	t.Parallel()

	le := binary.LittleEndian

	t.Run("standard", func(t *testing.T) {
		t.Parallel()

		d := Directory{Records: 0xfffe, Size: 500, Offset: 1000}
		b := AppendEnd(nil, d)
		require.Len(t, b, EndLen)
		assert.Equal(t, d.EndSize(), len(b))
		assert.Equal(t, uint32(EndSignature), le.Uint32(b))
		assert.Equal(t, uint16(0xfffe), le.Uint16(b[8:]))
		assert.Equal(t, uint16(0xfffe), le.Uint16(b[10:]))
		assert.Equal(t, uint32(500), le.Uint32(b[12:]))
		assert.Equal(t, uint32(1000), le.Uint32(b[16:]))
		assert.Equal(t, uint16(0), le.Uint16(b[20:]))
	})

	t.Run("zip64 by record count", func(t *testing.T) {
		t.Parallel()

		d := Directory{Records: 0xffff, Size: 500, Offset: 1000}
		b := AppendEnd(nil, d)
		require.Len(t, b, End64Len+End64LocatorLen+EndLen)
		assert.Equal(t, d.EndSize(), len(b))

		end64 := b[:End64Len]
		assert.Equal(t, uint32(End64Signature), le.Uint32(end64))
		assert.Equal(t, uint64(End64Len-12), le.Uint64(end64[4:]))
		assert.Equal(t, uint64(0xffff), le.Uint64(end64[24:]))
		assert.Equal(t, uint64(0xffff), le.Uint64(end64[32:]))
		assert.Equal(t, uint64(500), le.Uint64(end64[40:]))
		assert.Equal(t, uint64(1000), le.Uint64(end64[48:]))

		loc := b[End64Len : End64Len+End64LocatorLen]
		assert.Equal(t, uint32(End64LocatorSignature), le.Uint32(loc))
		assert.Equal(t, uint64(1500), le.Uint64(loc[8:]))
		assert.Equal(t, uint32(1), le.Uint32(loc[16:]))

		end := b[End64Len+End64LocatorLen:]
		assert.Equal(t, uint32(EndSignature), le.Uint32(end))
		assert.Equal(t, uint16(Uint16Max), le.Uint16(end[10:]))
		assert.Equal(t, uint32(500), le.Uint32(end[12:]))
		assert.Equal(t, uint32(1000), le.Uint32(end[16:]))
	})

	t.Run("zip64 by offset", func(t *testing.T) {
		t.Parallel()

		d := Directory{Records: 2, Size: 100, Offset: 0x100000000}
		b := AppendEnd(nil, d)
		require.Len(t, b, End64Len+End64LocatorLen+EndLen)
		end := b[End64Len+End64LocatorLen:]
		assert.Equal(t, uint16(2), le.Uint16(end[10:]))
		assert.Equal(t, uint32(100), le.Uint32(end[12:]))
		assert.Equal(t, uint32(Uint32Max), le.Uint32(end[16:]))
	})
}

func TestDOSDateTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        time.Time
		wantDate  uint16
		wantClock uint16
	}{
		{
			name:      "epoch",
			in:        time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC),
			wantDate:  1<<5 | 1,
			wantClock: 0,
		},
		{
			name:      "before epoch clamps",
			in:        time.Date(1975, time.June, 15, 12, 30, 10, 0, time.UTC),
			wantDate:  1<<5 | 1,
			wantClock: 0,
		},
		{
			name:      "odd seconds truncate",
			in:        time.Date(2024, time.March, 9, 13, 45, 31, 0, time.UTC),
			wantDate:  uint16((2024-1980)<<9 | 3<<5 | 9),
			wantClock: uint16(13<<11 | 45<<5 | 15),
		},
		{
			name:      "after 2107 clamps",
			in:        time.Date(2200, time.January, 1, 0, 0, 0, 0, time.UTC),
			wantDate:  uint16(127<<9 | 12<<5 | 31),
			wantClock: uint16(23<<11 | 59<<5 | 29),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			date, clock := DOSDateTime(tt.in)
			assert.Equal(t, tt.wantDate, date)
			assert.Equal(t, tt.wantClock, clock)
		})
	}
}
