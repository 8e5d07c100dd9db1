package hpak

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/meigma/hpak/internal/index"
)

// Format errors returned by Open and NewReader.
var (
	// ErrInvalidMagic is returned when the file does not start with Magic.
	ErrInvalidMagic = index.ErrInvalidMagic

	// ErrUnsupportedVersion is returned for version 0 and versions newer than Version.
	ErrUnsupportedVersion = index.ErrUnsupportedVersion

	// ErrTruncatedArchive is returned when the header, the tables or an entry
	// range extends past the available bytes.
	ErrTruncatedArchive = index.ErrTruncated

	// ErrCorruptArchive is returned for duplicate hashes, overlapping entries
	// or bytes after the tables.
	ErrCorruptArchive = index.ErrCorrupt
)

// Sentinel errors.
var (
	// ErrEntryNotFound is returned when no file is stored under a path.
	// It matches fs.ErrNotExist.
	ErrEntryNotFound = fmt.Errorf("hpak: entry not found: %w", fs.ErrNotExist)

	// ErrCorruptEntry is returned when a stored block fails to decompress.
	ErrCorruptEntry = errors.New("hpak: corrupt entry")

	// ErrEntryTooLarge is returned when a block decodes to more than the
	// reader's maximum entry size.
	ErrEntryTooLarge = errors.New("hpak: entry too large")

	// ErrHashCollision is returned when two distinct paths hash to the same
	// value. The archive cannot be built.
	ErrHashCollision = errors.New("hpak: path hash collision")

	// ErrDuplicatePath is returned when a path is added twice.
	ErrDuplicatePath = errors.New("hpak: duplicate path")

	// ErrPathConflict is returned when a path is used as both a file and a directory.
	ErrPathConflict = errors.New("hpak: path is both a file and a directory")

	// ErrInvalidPath is returned for empty paths and paths with ".." segments.
	ErrInvalidPath = errors.New("hpak: invalid path")

	// ErrMissingMetadata is returned when an ingested file has no .meta sidecar.
	ErrMissingMetadata = errors.New("hpak: missing metadata sidecar")

	// ErrWriterClosed is returned by Writer methods after Finish or Close.
	ErrWriterClosed = errors.New("hpak: writer closed")

	// ErrReaderClosed is returned by Reader methods after Close.
	ErrReaderClosed = errors.New("hpak: reader closed")

	// ErrSizeOverflow is returned when offsets or sizes exceed 64 bits.
	ErrSizeOverflow = errors.New("hpak: size overflow")
)

// EntryError records a failed operation on a single archive entry.
// It plays the role fs.PathError plays for files.
type EntryError struct {
	Op     string
	Path   string
	Hash   uint64
	Offset uint64
	Err    error
}

func (e *EntryError) Error() string {
	if e.Offset != 0 {
		return fmt.Sprintf("%s %s (hash %016x, offset %d): %v", e.Op, e.Path, e.Hash, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s %s (hash %016x): %v", e.Op, e.Path, e.Hash, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }
