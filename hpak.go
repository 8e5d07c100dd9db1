package hpak

import (
	"github.com/meigma/hpak/compression"
	"github.com/meigma/hpak/internal/index"
)

// Format constants.
const (
	// Magic is the four-byte file signature.
	Magic = index.Magic

	// Version is the newest format version written and accepted.
	Version = index.Version

	// HeaderSize is the size of the fixed header at offset zero.
	HeaderSize = index.HeaderSize

	// FileEntrySize is the encoded size of one file entry.
	FileEntrySize = index.FileEntrySize
)

const (
	// DefaultAlignment is the block alignment used when WithAlignment is not given.
	DefaultAlignment = 4096

	// DefaultMaxEntrySize bounds the decoded size of a single block read.
	DefaultMaxEntrySize = 256 << 20
)

// FileEntry locates a file's metadata and data blocks inside an archive.
type FileEntry = index.FileEntry

// RawBlock is a zero-copy view of a stored data block.
//
// Bytes aliases the reader's mapping and is only valid until the reader is
// closed. It must not be modified.
type RawBlock struct {
	Compression compression.Algorithm
	Offset      uint64
	Bytes       []byte
}
