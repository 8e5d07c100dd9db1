package hpak

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/meigma/hpak/compression"
	"github.com/meigma/hpak/internal/index"
	"github.com/meigma/hpak/internal/sizing"
	"github.com/meigma/hpak/minify"
)

// finishBufferSize is the write buffer used while laying out blocks.
const finishBufferSize = 1 << 20

// Writer builds an archive.
//
// Entries may be added in any order. Each entry is compressed into a
// temporary spool file as it is added; Finish lays the blocks out in
// ascending path-hash order, so the bytes produced depend only on what was
// added. A Writer is not safe for concurrent use.
type Writer struct {
	cfg  writerConfig
	dst  io.WriteSeeker
	base int64

	// file is set when the Writer created its own output.
	file     *os.File
	filePath string

	hash func(string) uint64

	spool     *os.File
	spoolSize int64

	files map[uint64]*pendingFile
	dirs  map[uint64]*pendingDir

	closed bool
}

// pendingFile is a file entry whose blocks sit in the spool.
type pendingFile struct {
	path        string
	compression compression.Algorithm
	spoolOffset int64
	metaSize    uint64
	dataSize    uint64
}

type pendingDir struct {
	path     string
	children map[uint64]struct{}
}

// block is an entry compressed and ready to commit.
type block struct {
	path        string
	hash        uint64
	compression compression.Algorithm
	meta        []byte
	data        []byte
}

// NewWriter returns a Writer that builds an archive into dst, starting at
// dst's current position. The header slot is reserved immediately and
// patched by Finish.
func NewWriter(dst io.WriteSeeker, opts ...WriterOption) (*Writer, error) {
	cfg := defaultWriterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	for _, alg := range []compression.Algorithm{cfg.metadataCompression, cfg.defaultCompression} {
		if !alg.Supported() {
			return nil, &compression.Error{Op: "configure", Algorithm: alg, Err: compression.ErrUnsupported}
		}
	}

	base, err := dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("hpak: locate archive start: %w", err)
	}
	var placeholder [HeaderSize]byte
	if _, err := dst.Write(placeholder[:]); err != nil {
		return nil, fmt.Errorf("hpak: reserve header: %w", err)
	}

	w := &Writer{
		cfg:   cfg,
		dst:   dst,
		base:  base,
		hash:  xxhash.Sum64String,
		files: make(map[uint64]*pendingFile),
		dirs:  make(map[uint64]*pendingDir),
	}
	w.log().Info("creating archive",
		"alignment", cfg.alignment,
		"metadata_compression", cfg.metadataCompression.String(),
		"default_compression", cfg.defaultCompression.String())
	return w, nil
}

// Create creates the file at path and returns a Writer that owns it.
// The file is closed by Finish, and closed and removed by Close if the
// archive was never finished.
func Create(path string, opts ...WriterOption) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, opts...)
	if err != nil {
		return nil, errors.Join(err, f.Close(), os.Remove(path))
	}
	w.file = f
	w.filePath = path
	return w, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.cfg.logger
}

// reportProgress sends a progress event if a callback is configured.
func (w *Writer) reportProgress(stage ProgressStage, path string, bytesDone uint64, filesDone, filesTotal int) {
	if w.cfg.progress == nil {
		return
	}
	w.cfg.progress(ProgressEvent{
		Stage:      stage,
		Path:       path,
		BytesDone:  bytesDone,
		FilesDone:  filesDone,
		FilesTotal: filesTotal,
	})
}

// Len returns the number of files added.
func (w *Writer) Len() int {
	return len(w.files)
}

// AddEntry adds a file to the archive.
//
// Both readers are consumed before AddEntry returns. metadata is minified
// (unless disabled) and compressed with the archive's metadata algorithm.
// data is compressed with override[0] if given, otherwise with the policy
// entry for the path's extension, otherwise with the default algorithm.
// Missing parent directories are created.
//
// A failed AddEntry leaves the Writer as it was. Adding the same path twice
// fails with ErrDuplicatePath; a path whose hash equals another path's fails
// with ErrHashCollision and the archive cannot be completed.
func (w *Writer) AddEntry(path string, metadata, data io.Reader, override ...compression.Algorithm) error {
	if w.closed {
		return ErrWriterClosed
	}
	name, err := ValidatePath(path)
	if err != nil {
		return err
	}
	b, err := w.prepare(name, metadata, data, w.dataCompression(name, override))
	if err != nil {
		return &EntryError{Op: "add", Path: name, Hash: w.hash(name), Err: err}
	}
	return w.commit(b)
}

func (w *Writer) dataCompression(name string, override []compression.Algorithm) compression.Algorithm {
	if len(override) > 0 {
		return override[0]
	}
	return w.cfg.policy.Resolve(name, w.cfg.defaultCompression)
}

// prepare reads and compresses an entry. It only reads immutable Writer
// state and may run concurrently.
func (w *Writer) prepare(name string, metadata, data io.Reader, alg compression.Algorithm) (*block, error) {
	var meta []byte
	if metadata != nil {
		var err error
		if meta, err = io.ReadAll(metadata); err != nil {
			return nil, fmt.Errorf("read metadata: %w", err)
		}
	}
	if w.cfg.minify {
		meta = minify.Minify(meta)
	}
	metaBlock, err := compression.Encode(w.cfg.metadataCompression, meta)
	if err != nil {
		return nil, fmt.Errorf("compress metadata: %w", err)
	}

	if data == nil {
		data = bytes.NewReader(nil)
	}
	var dataBlock bytes.Buffer
	if err := compression.EncodeTo(&dataBlock, alg, data); err != nil {
		return nil, fmt.Errorf("compress data: %w", err)
	}

	return &block{
		path:        name,
		hash:        w.hash(name),
		compression: alg,
		meta:        metaBlock,
		data:        dataBlock.Bytes(),
	}, nil
}

// commit validates b against the entries added so far, appends its blocks
// to the spool and registers it.
func (w *Writer) commit(b *block) error {
	if err := w.checkConflicts(b); err != nil {
		return err
	}
	off, err := w.spoolBlock(b)
	if err != nil {
		return err
	}

	w.files[b.hash] = &pendingFile{
		path:        b.path,
		compression: b.compression,
		spoolOffset: off,
		metaSize:    uint64(len(b.meta)),
		dataSize:    uint64(len(b.data)),
	}
	w.link(b.path, b.hash)
	w.log().Debug("added entry",
		"path", b.path,
		"compression", b.compression.String(),
		"metadata_size", len(b.meta),
		"data_size", len(b.data))
	return nil
}

func (w *Writer) checkConflicts(b *block) error {
	if f, ok := w.files[b.hash]; ok {
		if f.path == b.path {
			return &EntryError{Op: "add", Path: b.path, Hash: b.hash, Err: ErrDuplicatePath}
		}
		return w.collision(b.path, f.path, b.hash)
	}
	if d, ok := w.dirs[b.hash]; ok {
		if d.path == b.path {
			return &EntryError{Op: "add", Path: b.path, Hash: b.hash, Err: ErrPathConflict}
		}
		return w.collision(b.path, d.path, b.hash)
	}

	seen := map[uint64]string{b.hash: b.path}
	for _, dir := range ancestors(b.path) {
		h := w.hash(dir)
		if other, ok := seen[h]; ok {
			return w.collision(dir, other, h)
		}
		seen[h] = dir
		if f, ok := w.files[h]; ok {
			if f.path == dir {
				return &EntryError{Op: "add", Path: b.path, Hash: b.hash,
					Err: fmt.Errorf("%w: parent %q is a file", ErrPathConflict, dir)}
			}
			return w.collision(dir, f.path, h)
		}
		if d, ok := w.dirs[h]; ok && d.path != dir {
			return w.collision(dir, d.path, h)
		}
	}
	return nil
}

func (w *Writer) collision(path, other string, hash uint64) error {
	w.log().Error("path hash collision", "path", path, "other", other, "hash", hash)
	return fmt.Errorf("%w: %q and %q both hash to %016x", ErrHashCollision, path, other, hash)
}

// spoolBlock appends the block pair to the spool and returns its offset.
// On failure the spool is truncated back to its previous size.
func (w *Writer) spoolBlock(b *block) (int64, error) {
	if w.spool == nil {
		f, err := os.CreateTemp(w.cfg.spoolDir, "hpak-spool-*")
		if err != nil {
			return 0, fmt.Errorf("hpak: create spool: %w", err)
		}
		w.spool = f
	}

	off := w.spoolSize
	if _, err := w.spool.WriteAt(b.meta, off); err != nil {
		return 0, w.rollbackSpool(off, err)
	}
	if _, err := w.spool.WriteAt(b.data, off+int64(len(b.meta))); err != nil {
		return 0, w.rollbackSpool(off, err)
	}
	w.spoolSize = off + int64(len(b.meta)) + int64(len(b.data))
	return off, nil
}

func (w *Writer) rollbackSpool(off int64, err error) error {
	return errors.Join(fmt.Errorf("hpak: write spool: %w", err), w.spool.Truncate(off))
}

// link records hash as a child of its parent, creating missing ancestors.
func (w *Writer) link(path string, hash uint64) {
	child := hash
	for _, dir := range ancestors(path) {
		h := w.hash(dir)
		d, ok := w.dirs[h]
		if !ok {
			d = &pendingDir{path: dir, children: make(map[uint64]struct{})}
			w.dirs[h] = d
		}
		d.children[child] = struct{}{}
		if ok {
			// Existing directories are already linked to their parents.
			return
		}
		child = h
	}
}

// Finish writes the archive: the blocks in ascending path-hash order, each
// (metadata, data) pair padded to the alignment boundary, then the entries
// tables, then the patched header. The spool is removed and a file opened
// by Create is closed. Further calls return ErrWriterClosed.
func (w *Writer) Finish() (err error) {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true
	defer func() {
		err = errors.Join(err, w.cleanup(err != nil))
	}()

	hashes := slices.Sorted(maps.Keys(w.files))
	idx := index.Index{
		Files: make([]index.FileEntry, 0, len(hashes)),
		Dirs:  make([]index.DirEntry, 0, len(w.dirs)),
	}

	bw := bufio.NewWriterSize(w.dst, finishBufferSize)
	offset := uint64(HeaderSize)
	for i, h := range hashes {
		f := w.files[h]
		start, err := w.writeBlocks(bw, f, offset)
		if err != nil {
			return err
		}
		idx.Files = append(idx.Files, index.FileEntry{
			Hash:           h,
			Compression:    f.compression,
			MetadataOffset: start,
			MetadataSize:   f.metaSize,
			DataSize:       f.dataSize,
		})
		offset = start + f.metaSize + f.dataSize
		w.reportProgress(StageWriting, f.path, offset, i+1, len(hashes))
	}

	for h, d := range w.dirs {
		idx.Dirs = append(idx.Dirs, index.DirEntry{Hash: h, Children: slices.Collect(maps.Keys(d.children))})
	}
	idx.Sort()

	tables := idx.AppendTo(make([]byte, 0, idx.EncodedSize()))
	if _, err := bw.Write(tables); err != nil {
		return fmt.Errorf("hpak: write tables: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("hpak: write archive: %w", err)
	}

	header := index.AppendHeader(nil, index.Header{
		Version:             Version,
		MetadataCompression: w.cfg.metadataCompression,
		TablesOffset:        offset,
	})
	if err := w.patchHeader(header, offset+uint64(len(tables))); err != nil {
		return err
	}
	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("hpak: sync archive: %w", err)
		}
	}

	w.log().Info("archive finished",
		"files", len(idx.Files),
		"dirs", len(idx.Dirs),
		"size", offset+uint64(len(tables)))
	return nil
}

// writeBlocks pads bw from offset to the alignment boundary and copies the
// file's spooled blocks. It returns the offset the metadata block starts at.
func (w *Writer) writeBlocks(bw io.Writer, f *pendingFile, offset uint64) (uint64, error) {
	pad := sizing.Padding(offset, w.cfg.alignment)
	start, ok := sizing.AddUint64(offset, pad)
	if !ok {
		return 0, ErrSizeOverflow
	}
	size, ok := sizing.AddUint64(f.metaSize, f.dataSize)
	if !ok {
		return 0, ErrSizeOverflow
	}
	if _, ok := sizing.AddUint64(start, size); !ok {
		return 0, ErrSizeOverflow
	}
	n, err := sizing.ToInt64(size, ErrSizeOverflow)
	if err != nil {
		return 0, err
	}

	if err := sizing.WriteZeros(bw, pad); err != nil {
		return 0, fmt.Errorf("hpak: write padding: %w", err)
	}
	if _, err := io.Copy(bw, io.NewSectionReader(w.spool, f.spoolOffset, n)); err != nil {
		return 0, fmt.Errorf("hpak: copy %s from spool: %w", f.path, err)
	}
	return start, nil
}

// patchHeader writes header at the archive start and leaves dst positioned
// at the archive end.
func (w *Writer) patchHeader(header []byte, size uint64) error {
	end, err := sizing.ToInt64(size, ErrSizeOverflow)
	if err != nil {
		return err
	}
	if _, err := w.dst.Seek(w.base, io.SeekStart); err != nil {
		return fmt.Errorf("hpak: seek to header: %w", err)
	}
	if _, err := w.dst.Write(header); err != nil {
		return fmt.Errorf("hpak: write header: %w", err)
	}
	if _, err := w.dst.Seek(w.base+end, io.SeekStart); err != nil {
		return fmt.Errorf("hpak: seek to end: %w", err)
	}
	return nil
}

// Close releases the Writer's resources. If Finish has not completed, the
// archive is abandoned and a file created by Create is removed. Close is
// idempotent and safe to call after Finish.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.log().Debug("archive abandoned", "files", len(w.files))
	return w.cleanup(true)
}

// cleanup removes the spool and closes an owned output file, removing it
// when abort is set.
func (w *Writer) cleanup(abort bool) error {
	var errs []error
	if w.spool != nil {
		errs = append(errs, w.spool.Close(), os.Remove(w.spool.Name()))
		w.spool = nil
		w.spoolSize = 0
	}
	if w.file != nil {
		errs = append(errs, w.file.Close())
		if abort {
			errs = append(errs, os.Remove(w.filePath))
		}
		w.file = nil
	}
	return errors.Join(errs...)
}
