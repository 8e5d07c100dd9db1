// Package index encodes and decodes the archive header and entries tables.
//
// All integers are little-endian. The layout is:
//
//	header   magic[4] version:u32 metaComp:u8 tablesOffset:u64
//	blocks   (metadata, data) pairs, each pair aligned
//	tables   dirCount:u64 {hash:u64 n:u64 child:u64*n}*
//	         fileCount:u64 {hash:u64 comp:u8 metaOff:u64 metaSize:u64 dataSize:u64}*
//
// The tables end exactly at end of file.
package index

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/hpak/compression"
)

const (
	// Magic identifies an archive.
	Magic = "HPAK"

	// Version is the newest format version this package reads and writes.
	Version uint32 = 1

	// HeaderSize is the encoded size of Header.
	HeaderSize = 17

	headerVersionOff = 4
	headerMetaOff    = 8
	headerTablesOff  = 9
)

// Header is the fixed-size record at offset zero.
type Header struct {
	Version             uint32
	MetadataCompression compression.Algorithm
	TablesOffset        uint64
}

// AppendHeader appends the encoded header to b.
func AppendHeader(b []byte, h Header) []byte {
	b = append(b, Magic...)
	b = binary.LittleEndian.AppendUint32(b, h.Version)
	b = append(b, byte(h.MetadataCompression))
	return binary.LittleEndian.AppendUint64(b, h.TablesOffset)
}

// ParseHeader decodes and validates the header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) >= len(Magic) && string(data[:len(Magic)]) != Magic {
		return Header{}, fmt.Errorf("%w: got %q", ErrInvalidMagic, data[:len(Magic)])
	}
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), HeaderSize)
	}

	h := Header{
		Version:             binary.LittleEndian.Uint32(data[headerVersionOff:]),
		MetadataCompression: compression.Algorithm(data[headerMetaOff]),
		TablesOffset:        binary.LittleEndian.Uint64(data[headerTablesOff:]),
	}
	if h.Version == 0 || h.Version > Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}
