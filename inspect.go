package hpak

import (
	"github.com/meigma/hpak/compression"
)

// Stats summarizes the contents of an archive.
type Stats struct {
	// Files and Dirs count the table entries.
	Files int
	Dirs  int

	// MetadataBytes and DataBytes are stored (compressed) block sizes.
	MetadataBytes uint64
	DataBytes     uint64

	// PaddingBytes is the space between blocks introduced by alignment.
	PaddingBytes uint64

	// ArchiveSize is the total size of the archive in bytes.
	ArchiveSize int64

	// ByCompression counts files by data compression algorithm.
	ByCompression map[compression.Algorithm]int
}

// Stats returns aggregate statistics for the archive.
// This requires iterating all entries on first call; the result is cached.
func (r *Reader) Stats() Stats {
	r.statsOnce.Do(r.computeStats)
	s := r.stats
	s.ByCompression = make(map[compression.Algorithm]int, len(r.stats.ByCompression))
	for alg, n := range r.stats.ByCompression {
		s.ByCompression[alg] = n
	}
	return s
}

func (r *Reader) computeStats() {
	s := Stats{
		Files:         len(r.idx.Files),
		Dirs:          len(r.idx.Dirs),
		ArchiveSize:   int64(len(r.data)),
		ByCompression: make(map[compression.Algorithm]int),
	}
	for _, f := range r.idx.Files {
		s.MetadataBytes += f.MetadataSize
		s.DataBytes += f.DataSize
		s.ByCompression[f.Compression]++
	}
	blocks := r.header.TablesOffset - HeaderSize
	if used := s.MetadataBytes + s.DataBytes; blocks > used {
		s.PaddingBytes = blocks - used
	}
	r.stats = s
}
