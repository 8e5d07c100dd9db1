package hpak

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/hpak/compression"
	"github.com/meigma/hpak/internal/index"
	"github.com/meigma/hpak/internal/mmap"
	"github.com/meigma/hpak/internal/sizing"
)

// Reader provides random access to an archive.
//
// The tables are decoded once when the Reader is created and never change,
// so all methods are safe for concurrent use. Close must not race with
// in-flight reads.
type Reader struct {
	data         []byte
	region       *mmap.Region
	header       index.Header
	idx          *index.Index
	maxEntrySize uint64
	logger       *slog.Logger
	closed       atomic.Bool

	digestOnce sync.Once
	digest     digest.Digest

	statsOnce sync.Once
	stats     Stats
}

// Open maps the archive at path read-only.
func Open(path string, opts ...ReaderOption) (*Reader, error) {
	region, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(region.Bytes(), opts)
	if err != nil {
		_ = region.Close() //nolint:errcheck // parse error takes precedence
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	r.region = region
	r.log().Info("opened archive",
		"path", path,
		"size", len(r.data),
		"files", len(r.idx.Files),
		"dirs", len(r.idx.Dirs))
	return r, nil
}

// NewReader returns a Reader over an archive image held in memory.
// The Reader retains data; callers must not modify it.
func NewReader(data []byte, opts ...ReaderOption) (*Reader, error) {
	return newReader(data, opts)
}

func newReader(data []byte, opts []ReaderOption) (*Reader, error) {
	r := &Reader{
		data:         data,
		maxEntrySize: DefaultMaxEntrySize,
	}
	for _, opt := range opts {
		opt(r)
	}

	h, err := index.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if !h.MetadataCompression.Supported() {
		return nil, fmt.Errorf("%w: unknown metadata compression %d", ErrCorruptArchive, uint8(h.MetadataCompression))
	}
	idx, err := index.Parse(data, h)
	if err != nil {
		return nil, err
	}
	r.header = h
	r.idx = idx
	return r, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Version returns the format version in the header.
func (r *Reader) Version() uint32 {
	return r.header.Version
}

// MetadataCompression returns the algorithm of every metadata block.
func (r *Reader) MetadataCompression() compression.Algorithm {
	return r.header.MetadataCompression
}

// Len returns the number of files in the archive.
func (r *Reader) Len() int {
	return len(r.idx.Files)
}

// Exists reports whether path names a file or a directory.
func (r *Reader) Exists(path string) bool {
	h := HashPath(path)
	if _, ok := r.idx.File(h); ok {
		return true
	}
	_, ok := r.idx.Dir(h)
	return ok
}

// IsFile reports whether path names a file.
func (r *Reader) IsFile(path string) bool {
	_, ok := r.idx.File(HashPath(path))
	return ok
}

// IsDir reports whether path names a directory. The root ("") is a
// directory in every non-empty archive.
func (r *Reader) IsDir(path string) bool {
	_, ok := r.idx.Dir(HashPath(path))
	return ok
}

// ListDirectory returns the path hashes of the immediate children of a
// directory in ascending order, or nil if path is not a directory.
// The archive stores no names; use HasChild to test for a known name.
func (r *Reader) ListDirectory(path string) []uint64 {
	d, ok := r.idx.Dir(HashPath(path))
	if !ok {
		return nil
	}
	return slices.Clone(d.Children)
}

// HasChild reports whether the directory dir lists name as an immediate child.
func (r *Reader) HasChild(dir, name string) bool {
	d, ok := r.idx.Dir(HashPath(dir))
	if !ok {
		return false
	}
	return d.HasChild(HashPath(dir + "/" + name))
}

// Entry returns the file entry for path.
func (r *Reader) Entry(path string) (FileEntry, bool) {
	return r.idx.File(HashPath(path))
}

// ReadMetadata returns the decompressed metadata of the file at path.
func (r *Reader) ReadMetadata(path string) ([]byte, error) {
	const op = "read metadata"
	f, name, err := r.lookup(op, path)
	if err != nil {
		return nil, err
	}
	return r.decode(op, name, f, r.header.MetadataCompression, f.MetadataOffset, r.metadataBlock(f))
}

// ReadData returns the decompressed data of the file at path.
func (r *Reader) ReadData(path string) ([]byte, error) {
	const op = "read data"
	f, name, err := r.lookup(op, path)
	if err != nil {
		return nil, err
	}
	return r.decode(op, name, f, f.Compression, f.DataOffset(), r.dataBlock(f))
}

// OpenMetadata returns a streaming decoder over the metadata of the file at
// path. The reader must be closed before the Reader is.
func (r *Reader) OpenMetadata(path string) (io.ReadCloser, error) {
	const op = "open metadata"
	f, name, err := r.lookup(op, path)
	if err != nil {
		return nil, err
	}
	return r.stream(op, name, f, r.header.MetadataCompression, f.MetadataOffset, r.metadataBlock(f))
}

// OpenData returns a streaming decoder over the data of the file at path.
// The reader must be closed before the Reader is.
func (r *Reader) OpenData(path string) (io.ReadCloser, error) {
	const op = "open data"
	f, name, err := r.lookup(op, path)
	if err != nil {
		return nil, err
	}
	return r.stream(op, name, f, f.Compression, f.DataOffset(), r.dataBlock(f))
}

// RawData returns the stored, still-compressed data block of the file at path.
func (r *Reader) RawData(path string) (RawBlock, error) {
	f, _, err := r.lookup("raw data", path)
	if err != nil {
		return RawBlock{}, err
	}
	return RawBlock{Compression: f.Compression, Offset: f.DataOffset(), Bytes: r.dataBlock(f)}, nil
}

// Digest returns the SHA-256 digest of the whole archive. It is computed
// on first use. After Close it returns the digest computed before Close,
// or "" if none was.
func (r *Reader) Digest() digest.Digest {
	if r.closed.Load() {
		return r.digest
	}
	r.digestOnce.Do(func() {
		r.digest = digest.FromBytes(r.data)
	})
	return r.digest
}

// Close releases the mapping. Slices returned by RawData become invalid.
// Close is idempotent.
func (r *Reader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.region != nil {
		return r.region.Close()
	}
	return nil
}

// lookup resolves path to its file entry and normalized name.
func (r *Reader) lookup(op, path string) (index.FileEntry, string, error) {
	name := NormalizePath(path)
	h := HashPath(name)
	if r.closed.Load() {
		return index.FileEntry{}, name, &EntryError{Op: op, Path: name, Hash: h, Err: ErrReaderClosed}
	}
	f, ok := r.idx.File(h)
	if !ok {
		return index.FileEntry{}, name, &EntryError{Op: op, Path: name, Hash: h, Err: ErrEntryNotFound}
	}
	return f, name, nil
}

// Block ranges were bounds-checked against the tables offset when the
// tables were parsed.
func (r *Reader) metadataBlock(f index.FileEntry) []byte {
	return r.data[f.MetadataOffset:f.DataOffset():f.DataOffset()]
}

func (r *Reader) dataBlock(f index.FileEntry) []byte {
	return r.data[f.DataOffset():f.End():f.End()]
}

func (r *Reader) decode(op, name string, f index.FileEntry, alg compression.Algorithm, off uint64, src []byte) ([]byte, error) {
	out, err := r.decodeBlock(alg, src)
	if err != nil {
		if !errors.Is(err, ErrEntryTooLarge) {
			err = fmt.Errorf("%w: %w", ErrCorruptEntry, err)
		}
		r.log().Warn("entry read failed", "op", op, "path", name, "offset", off, "error", err)
		return nil, &EntryError{Op: op, Path: name, Hash: f.Hash, Offset: off, Err: err}
	}
	return out, nil
}

func (r *Reader) decodeBlock(alg compression.Algorithm, src []byte) ([]byte, error) {
	if alg == compression.None {
		if r.maxEntrySize > 0 && uint64(len(src)) > r.maxEntrySize {
			return nil, ErrEntryTooLarge
		}
		return bytes.Clone(src), nil
	}
	rc, err := compression.NewReader(alg, bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return sizing.ReadAllWithLimit(rc, r.maxEntrySize, ErrEntryTooLarge)
}

func (r *Reader) stream(op, name string, f index.FileEntry, alg compression.Algorithm, off uint64, src []byte) (io.ReadCloser, error) {
	rc, err := compression.NewReader(alg, bytes.NewReader(src))
	if err != nil {
		return nil, &EntryError{Op: op, Path: name, Hash: f.Hash, Offset: off, Err: fmt.Errorf("%w: %w", ErrCorruptEntry, err)}
	}
	return &entryReader{rc: rc, op: op, name: name, hash: f.Hash, off: off}, nil
}

// entryReader reports decoder failures as ErrCorruptEntry.
type entryReader struct {
	rc   io.ReadCloser
	op   string
	name string
	hash uint64
	off  uint64
}

func (e *entryReader) Read(p []byte) (int, error) {
	n, err := e.rc.Read(p)
	if err != nil && err != io.EOF {
		err = &EntryError{Op: e.op, Path: e.name, Hash: e.hash, Offset: e.off, Err: fmt.Errorf("%w: %w", ErrCorruptEntry, err)}
	}
	return n, err
}

func (e *entryReader) Close() error {
	return e.rc.Close()
}
