package index

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/meigma/hpak/compression"
	"github.com/meigma/hpak/internal/sizing"
)

const (
	// FileEntrySize is the encoded size of FileEntry.
	FileEntrySize = 33

	dirEntryFixedSize = 16
	countSize         = 8
	hashSize          = 8
)

// DirEntry lists the path hashes of a directory's immediate children.
type DirEntry struct {
	Hash     uint64
	Children []uint64
}

// FileEntry locates a file's metadata and data blocks. The data block
// immediately follows the metadata block.
type FileEntry struct {
	Hash           uint64
	Compression    compression.Algorithm
	MetadataOffset uint64
	MetadataSize   uint64
	DataSize       uint64
}

// DataOffset returns the absolute offset of the data block.
func (e FileEntry) DataOffset() uint64 {
	return e.MetadataOffset + e.MetadataSize
}

// End returns the offset one past the data block.
func (e FileEntry) End() uint64 {
	return e.MetadataOffset + e.MetadataSize + e.DataSize
}

// Index holds the entries tables.
//
// Dirs and Files are sorted ascending by hash and each child list is sorted
// ascending. Lookups binary-search these slices.
type Index struct {
	Dirs  []DirEntry
	Files []FileEntry
}

// Sort puts the tables into canonical order.
func (idx *Index) Sort() {
	slices.SortFunc(idx.Dirs, func(a, b DirEntry) int { return cmp.Compare(a.Hash, b.Hash) })
	for i := range idx.Dirs {
		slices.Sort(idx.Dirs[i].Children)
	}
	slices.SortFunc(idx.Files, func(a, b FileEntry) int { return cmp.Compare(a.Hash, b.Hash) })
}

// EncodedSize returns the number of bytes AppendTo will write.
func (idx *Index) EncodedSize() int {
	n := countSize + countSize + len(idx.Files)*FileEntrySize
	for _, d := range idx.Dirs {
		n += dirEntryFixedSize + len(d.Children)*hashSize
	}
	return n
}

// AppendTo appends the encoded tables to b in their current order.
func (idx *Index) AppendTo(b []byte) []byte {
	le := binary.LittleEndian
	b = le.AppendUint64(b, uint64(len(idx.Dirs)))
	for _, d := range idx.Dirs {
		b = le.AppendUint64(b, d.Hash)
		b = le.AppendUint64(b, uint64(len(d.Children)))
		for _, c := range d.Children {
			b = le.AppendUint64(b, c)
		}
	}
	b = le.AppendUint64(b, uint64(len(idx.Files)))
	for _, f := range idx.Files {
		b = le.AppendUint64(b, f.Hash)
		b = append(b, byte(f.Compression))
		b = le.AppendUint64(b, f.MetadataOffset)
		b = le.AppendUint64(b, f.MetadataSize)
		b = le.AppendUint64(b, f.DataSize)
	}
	return b
}

// Dir returns the directory entry with the given hash.
func (idx *Index) Dir(hash uint64) (DirEntry, bool) {
	i, ok := slices.BinarySearchFunc(idx.Dirs, hash, func(d DirEntry, h uint64) int {
		return cmp.Compare(d.Hash, h)
	})
	if !ok {
		return DirEntry{}, false
	}
	return idx.Dirs[i], true
}

// File returns the file entry with the given hash.
func (idx *Index) File(hash uint64) (FileEntry, bool) {
	i, ok := slices.BinarySearchFunc(idx.Files, hash, func(f FileEntry, h uint64) int {
		return cmp.Compare(f.Hash, h)
	})
	if !ok {
		return FileEntry{}, false
	}
	return idx.Files[i], true
}

// HasChild reports whether dir lists child.
func (d DirEntry) HasChild(child uint64) bool {
	_, ok := slices.BinarySearch(d.Children, child)
	return ok
}

// Parse decodes the tables of a complete archive image.
//
// data must hold the whole archive, header included. Parse validates that
// the tables end exactly at len(data), that hashes are unique, and that every
// file entry's blocks lie inside [HeaderSize, TablesOffset) without
// overlapping. Tables written in non-canonical order are sorted.
func Parse(data []byte, h Header) (*Index, error) {
	if h.TablesOffset < HeaderSize || h.TablesOffset > uint64(len(data)) {
		return nil, fmt.Errorf("%w: tables offset %d outside [%d, %d]",
			ErrTruncated, h.TablesOffset, HeaderSize, len(data))
	}

	d := decoder{buf: data[h.TablesOffset:], off: h.TablesOffset}
	idx := &Index{}

	dirCount, err := d.count(dirEntryFixedSize, "directory")
	if err != nil {
		return nil, err
	}
	idx.Dirs = make([]DirEntry, dirCount)
	for i := range idx.Dirs {
		if d.remaining() < dirEntryFixedSize {
			return nil, d.truncated("directory entry")
		}
		idx.Dirs[i].Hash = d.u64()
		n, err := d.count(hashSize, "child")
		if err != nil {
			return nil, err
		}
		children := make([]uint64, n)
		for j := range children {
			children[j] = d.u64()
		}
		idx.Dirs[i].Children = children
	}

	fileCount, err := d.count(FileEntrySize, "file")
	if err != nil {
		return nil, err
	}
	idx.Files = make([]FileEntry, fileCount)
	for i := range idx.Files {
		f := &idx.Files[i]
		f.Hash = d.u64()
		f.Compression = compression.Algorithm(d.u8())
		f.MetadataOffset = d.u64()
		f.MetadataSize = d.u64()
		f.DataSize = d.u64()
	}

	if d.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after tables", ErrCorrupt, d.remaining())
	}

	idx.Sort()
	if err := idx.validate(h.TablesOffset); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) validate(tablesOffset uint64) error {
	for i := 1; i < len(idx.Dirs); i++ {
		if idx.Dirs[i].Hash == idx.Dirs[i-1].Hash {
			return fmt.Errorf("%w: duplicate directory hash %016x", ErrCorrupt, idx.Dirs[i].Hash)
		}
	}
	for i := 1; i < len(idx.Files); i++ {
		if idx.Files[i].Hash == idx.Files[i-1].Hash {
			return fmt.Errorf("%w: duplicate file hash %016x", ErrCorrupt, idx.Files[i].Hash)
		}
	}
	for _, f := range idx.Files {
		if _, ok := idx.Dir(f.Hash); ok {
			return fmt.Errorf("%w: hash %016x names both a file and a directory", ErrCorrupt, f.Hash)
		}
	}

	ranges := make([]FileEntry, len(idx.Files))
	copy(ranges, idx.Files)
	for _, f := range ranges {
		if f.MetadataOffset < HeaderSize {
			return fmt.Errorf("%w: entry %016x starts at %d inside the header", ErrTruncated, f.Hash, f.MetadataOffset)
		}
		end, ok := sizing.AddUint64(f.MetadataOffset, f.MetadataSize)
		if ok {
			end, ok = sizing.AddUint64(end, f.DataSize)
		}
		if !ok || end > tablesOffset {
			return fmt.Errorf("%w: entry %016x range [%d, +%d+%d) exceeds tables offset %d",
				ErrTruncated, f.Hash, f.MetadataOffset, f.MetadataSize, f.DataSize, tablesOffset)
		}
	}
	slices.SortFunc(ranges, func(a, b FileEntry) int { return cmp.Compare(a.MetadataOffset, b.MetadataOffset) })
	for i := 1; i < len(ranges); i++ {
		if ranges[i].MetadataOffset < ranges[i-1].End() {
			return fmt.Errorf("%w: entries %016x and %016x overlap", ErrCorrupt, ranges[i-1].Hash, ranges[i].Hash)
		}
	}
	return nil
}

type decoder struct {
	buf []byte
	off uint64 // absolute offset of buf[0], for error messages
}

func (d *decoder) remaining() int { return len(d.buf) }

func (d *decoder) u64() uint64 {
	v := binary.LittleEndian.Uint64(d.buf)
	d.buf = d.buf[8:]
	d.off += 8
	return v
}

func (d *decoder) u8() uint8 {
	v := d.buf[0]
	d.buf = d.buf[1:]
	d.off++
	return v
}

// count reads an element count and checks that the remaining bytes can hold
// at least that many elements of minSize each.
func (d *decoder) count(minSize int, what string) (int, error) {
	if d.remaining() < countSize {
		return 0, d.truncated(what + " count")
	}
	n := d.u64()
	if n > uint64(d.remaining()/minSize) {
		return 0, fmt.Errorf("%w: %d %s entries at offset %d need more than the %d bytes left",
			ErrTruncated, n, what, d.off, d.remaining())
	}
	return int(n), nil
}

func (d *decoder) truncated(what string) error {
	return fmt.Errorf("%w: %s at offset %d", ErrTruncated, what, d.off)
}
