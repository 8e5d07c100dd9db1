package index

import "errors"

// Sentinel errors for archive structure problems.
var (
	// ErrInvalidMagic is returned when the file does not start with the archive magic.
	ErrInvalidMagic = errors.New("hpak: invalid magic")

	// ErrUnsupportedVersion is returned for format versions this package cannot read.
	ErrUnsupportedVersion = errors.New("hpak: unsupported format version")

	// ErrTruncated is returned when a header, table or entry range extends past
	// the bytes available.
	ErrTruncated = errors.New("hpak: truncated archive")

	// ErrCorrupt is returned when the tables are structurally inconsistent.
	ErrCorrupt = errors.New("hpak: corrupt archive")
)
