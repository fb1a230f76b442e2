// Package zipfmt encodes the binary records of a stored-method ZIP archive.
//
// Every function appends little-endian record bytes to a caller-owned slice so
// the encoder can batch records without intermediate allocations. Field
// selection between the 32-bit and ZIP64 forms happens here and nowhere else.
package zipfmt

// Record signatures.
const (
	LocalHeaderSignature   = 0x04034b50
	CentralHeaderSignature = 0x02014b50
	EndSignature           = 0x06054b50
	End64Signature         = 0x06064b50
	End64LocatorSignature  = 0x07064b50
)

// Fixed record lengths, excluding variable-length names and extras.
const (
	LocalHeaderLen   = 30
	CentralHeaderLen = 46
	EndLen           = 22
	End64Len         = 56
	End64LocatorLen  = 20
)

// Field values shared by every entry.
const (
	VersionDefault = 20 // 2.0: directories and stored files
	VersionZip64   = 45 // 4.5: ZIP64 extensions

	FlagUTF8    = 0x0800
	MethodStore = 0

	Zip64ExtraID = 0x0001

	Uint16Max = 0xffff
	Uint32Max = 0xffffffff
)

// msdosDir is the MS-DOS directory attribute bit.
const msdosDir = 0x10

// DirExternalAttrs is the external attribute value written for directories.
// The MS-DOS byte carries the directory bit and the high word mirrors it.
const DirExternalAttrs = msdosDir<<16 | msdosDir
