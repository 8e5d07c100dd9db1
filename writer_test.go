package hpak

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/hpak/compression"
	"github.com/meigma/hpak/internal/testutil"
	"github.com/meigma/hpak/minify"
)

type testEntry struct {
	path string
	meta string
	data []byte
	alg  []compression.Algorithm
}

// buildArchive writes entries in the given order and returns the archive bytes.
func buildArchive(t *testing.T, entries []testEntry, opts ...WriterOption) []byte {
	t.Helper()
	var buf testutil.SeekBuffer
	w, err := NewWriter(&buf, opts...)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, w.AddEntry(e.path, strings.NewReader(e.meta), bytes.NewReader(e.data), e.alg...))
	}
	require.NoError(t, w.Finish())
	return buf.Bytes()
}

func sampleEntries() []testEntry {
	return []testEntry{
		{path: "a/x.txt", meta: "(\n  kind: Text, // plain\n)", data: []byte("hello hello hello")},
		{path: "a/b/y.bin", meta: "(kind: Blob)", data: bytes.Repeat([]byte{1, 2, 3, 4}, 300)},
		{path: "textures/grass.png", meta: "(srgb: true)", data: []byte("\x89PNG not really")},
		{path: "shaders/main.wgsl", meta: "()", data: []byte("@vertex fn main() {}"), alg: []compression.Algorithm{compression.Zstd}},
		{path: "sfx/hit.ogg", meta: "(volume: 0.5)", data: []byte("OggS..."), alg: []compression.Algorithm{compression.LZ4}},
		{path: "levels/one.scn", meta: "(id: 1)", data: []byte("entities: []"), alg: []compression.Algorithm{compression.Snappy}},
		{path: "levels/two.scn", meta: "(id: 2)", data: []byte("entities: [a, b]"), alg: []compression.Algorithm{compression.Zlib}},
		{path: "empty.dat", meta: "", data: nil},
	}
}

func TestWriterRoundTrip(t *testing.T) {
	t.Parallel()

	entries := sampleEntries()
	data := buildArchive(t, entries, WithAlignment(16))

	r, err := NewReader(data)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, len(entries), r.Len())
	assert.Equal(t, Version, r.Version())
	assert.Equal(t, compression.Deflate, r.MetadataCompression())

	for _, e := range entries {
		got, err := r.ReadData(e.path)
		require.NoError(t, err, e.path)
		assert.Equal(t, len(e.data), len(got), e.path)
		assert.True(t, bytes.Equal(e.data, got), e.path)

		meta, err := r.ReadMetadata(e.path)
		require.NoError(t, err, e.path)
		assert.Equal(t, minify.String(e.meta), string(meta), e.path)

		entry, ok := r.Entry(e.path)
		require.True(t, ok)
		want := compression.DefaultPolicy().Resolve(e.path, compression.Deflate)
		if len(e.alg) > 0 {
			want = e.alg[0]
		}
		assert.Equal(t, want, entry.Compression, e.path)
	}

	png, _ := r.Entry("textures/grass.png")
	assert.Equal(t, compression.None, png.Compression)
}

func TestWriterHeaderAndTablesLayout(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, sampleEntries(), WithMetadataCompression(compression.Zstd))

	require.GreaterOrEqual(t, len(data), HeaderSize)
	assert.Equal(t, Magic, string(data[:4]))
	assert.Equal(t, Version, binary.LittleEndian.Uint32(data[4:]))
	assert.Equal(t, byte(compression.Zstd), data[8])

	tablesOff := binary.LittleEndian.Uint64(data[9:])
	require.Less(t, tablesOff, uint64(len(data)))

	// dirs: root, a, a/b, textures, shaders, sfx, levels
	dirCount := binary.LittleEndian.Uint64(data[tablesOff:])
	assert.Equal(t, uint64(7), dirCount)
}

func TestWriterDeterministicAcrossInsertionOrder(t *testing.T) {
	t.Parallel()

	entries := sampleEntries()
	forward := buildArchive(t, entries)

	reversed := make([]testEntry, len(entries))
	for i, e := range entries {
		reversed[len(entries)-1-i] = e
	}
	backward := buildArchive(t, reversed)

	assert.Equal(t, forward, backward)
}

func TestWriterBlocksOrderedByHash(t *testing.T) {
	t.Parallel()

	r, err := NewReader(buildArchive(t, sampleEntries(), WithAlignment(0)))
	require.NoError(t, err)

	var prevHash, prevOffset uint64
	for i, f := range r.idx.Files {
		if i > 0 {
			assert.Greater(t, f.Hash, prevHash)
			assert.Greater(t, f.MetadataOffset, prevOffset)
		}
		prevHash, prevOffset = f.Hash, f.MetadataOffset
	}
}

func TestWriterAlignment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		alignment uint64
	}{
		{name: "default", alignment: DefaultAlignment},
		{name: "odd", alignment: 7},
		{name: "none", alignment: 0},
		{name: "one", alignment: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := buildArchive(t, sampleEntries(), WithAlignment(tt.alignment))
			r, err := NewReader(data)
			require.NoError(t, err)

			prevEnd := uint64(HeaderSize)
			for _, f := range r.idx.Files {
				if tt.alignment > 1 {
					assert.Zero(t, f.MetadataOffset%tt.alignment, "offset %d", f.MetadataOffset)
					assert.Less(t, f.MetadataOffset-prevEnd, tt.alignment)
				} else {
					assert.Equal(t, prevEnd, f.MetadataOffset)
				}
				for _, b := range data[prevEnd:f.MetadataOffset] {
					require.Zero(t, b, "padding must be zero")
				}
				prevEnd = f.End()
			}
			assert.Equal(t, prevEnd, binary.LittleEndian.Uint64(data[9:]), "tables follow the last block without padding")
		})
	}
}

func TestWriterEmptyArchive(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, nil)
	assert.Len(t, data, HeaderSize+16)

	r, err := NewReader(data)
	require.NoError(t, err)
	assert.Zero(t, r.Len())
	assert.False(t, r.IsDir(""))
	assert.Nil(t, r.ListDirectory(""))
}

func TestWriterDuplicatePath(t *testing.T) {
	t.Parallel()

	var buf testutil.SeekBuffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)

	require.NoError(t, w.AddEntry("a/x.txt", strings.NewReader("(v: 1)"), strings.NewReader("first")))
	err = w.AddEntry(`/a\x.txt`, strings.NewReader("(v: 2)"), strings.NewReader("second"))
	require.ErrorIs(t, err, ErrDuplicatePath)

	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, "a/x.txt", entryErr.Path)
	assert.Equal(t, HashPath("a/x.txt"), entryErr.Hash)
	assert.Equal(t, 1, w.Len())

	require.NoError(t, w.Finish())
	r, err := NewReader(buf.Bytes())
	require.NoError(t, err)
	got, err := r.ReadData("a/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestWriterHashCollision(t *testing.T) {
	t.Parallel()

	collide := func(collider, victim string) func(string) uint64 {
		return func(p string) uint64 {
			if p == collider {
				return xxhash.Sum64String(victim)
			}
			return xxhash.Sum64String(p)
		}
	}

	tests := []struct {
		name   string
		hash   func(string) uint64
		first  string
		second string
	}{
		{name: "two files", hash: collide("b.txt", "a.txt"), first: "a.txt", second: "b.txt"},
		{name: "file and existing directory", hash: collide("z.txt", "dir"), first: "dir/a.txt", second: "z.txt"},
		{name: "new directory and existing file", hash: collide("newdir", "a.txt"), first: "a.txt", second: "newdir/x.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf testutil.SeekBuffer
			w, err := NewWriter(&buf)
			require.NoError(t, err)
			w.hash = tt.hash

			require.NoError(t, w.AddEntry(tt.first, nil, strings.NewReader("1")))
			err = w.AddEntry(tt.second, nil, strings.NewReader("2"))
			require.ErrorIs(t, err, ErrHashCollision)
			assert.Equal(t, 1, w.Len())
			require.NoError(t, w.Close())
		})
	}
}

func TestWriterPathConflict(t *testing.T) {
	t.Parallel()

	var buf testutil.SeekBuffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddEntry("a", nil, strings.NewReader("file")))
	require.ErrorIs(t, w.AddEntry("a/b", nil, strings.NewReader("child")), ErrPathConflict)

	require.NoError(t, w.AddEntry("x/y", nil, strings.NewReader("file")))
	require.ErrorIs(t, w.AddEntry("x", nil, strings.NewReader("dir clash")), ErrPathConflict)
	assert.Equal(t, 2, w.Len())
}

func TestWriterInvalidPath(t *testing.T) {
	t.Parallel()

	var buf testutil.SeekBuffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	defer w.Close()

	for _, p := range []string{"", "/", "../escape", "a/../b"} {
		require.ErrorIs(t, w.AddEntry(p, nil, nil), ErrInvalidPath, "path %q", p)
	}
	assert.Zero(t, w.Len())
}

func TestWriterFailedAddLeavesWriterUnchanged(t *testing.T) {
	t.Parallel()

	good := []testEntry{{path: "ok.txt", meta: "(a: 1)", data: []byte("fine")}}
	want := buildArchive(t, good)

	var buf testutil.SeekBuffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)

	err = w.AddEntry("broken.txt", strings.NewReader("()"), &testutil.FailingReader{Data: []byte("partial")})
	require.ErrorIs(t, err, testutil.ErrInjected)
	err = w.AddEntry("broken-meta.txt", &testutil.FailingReader{}, strings.NewReader("x"))
	require.ErrorIs(t, err, testutil.ErrInjected)
	err = w.AddEntry("bad-alg.txt", nil, strings.NewReader("x"), compression.Algorithm(200))
	require.ErrorIs(t, err, compression.ErrUnsupported)
	assert.Zero(t, w.Len())

	require.NoError(t, w.AddEntry("ok.txt", strings.NewReader("(a: 1)"), strings.NewReader("fine")))
	require.NoError(t, w.Finish())
	assert.Equal(t, want, buf.Bytes())
}

func TestWriterClosed(t *testing.T) {
	t.Parallel()

	var buf testutil.SeekBuffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.Finish())

	require.ErrorIs(t, w.AddEntry("a", nil, nil), ErrWriterClosed)
	require.ErrorIs(t, w.Finish(), ErrWriterClosed)
	_, err = w.AddPathsFromDir(t.Context(), t.TempDir())
	require.ErrorIs(t, err, ErrWriterClosed)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWriterUnsupportedConfiguration(t *testing.T) {
	t.Parallel()

	var buf testutil.SeekBuffer
	_, err := NewWriter(&buf, WithMetadataCompression(compression.Algorithm(99)))
	require.ErrorIs(t, err, compression.ErrUnsupported)

	_, err = NewWriter(&buf, WithDefaultCompression(compression.Algorithm(98)))
	require.ErrorIs(t, err, compression.ErrUnsupported)
}

func TestWriterMinifyDisabled(t *testing.T) {
	t.Parallel()

	meta := "(\n  name: \"x\", // keep me\n)\n"
	data := buildArchive(t, []testEntry{{path: "m.ron", meta: meta, data: []byte("d")}}, WithMinifyMetadata(false))

	r, err := NewReader(data)
	require.NoError(t, err)
	got, err := r.ReadMetadata("m.ron")
	require.NoError(t, err)
	assert.Equal(t, meta, string(got))
}

func TestWriterMinifyPreservesEscapes(t *testing.T) {
	t.Parallel()

	meta := `( label: "tab\there \"quoted\"" , path: r"C:\dir with space" )`
	data := buildArchive(t, []testEntry{{path: "m.ron", meta: meta, data: []byte("d")}})

	r, err := NewReader(data)
	require.NoError(t, err)
	got, err := r.ReadMetadata("m.ron")
	require.NoError(t, err)
	assert.Equal(t, `(label:"tab\there \"quoted\"",path:r"C:\dir with space")`, string(got))
}

func TestWriterPolicyOptions(t *testing.T) {
	t.Parallel()

	entries := []testEntry{
		{path: "a.png", data: []byte("png")},
		{path: "b.txt", data: []byte("txt")},
		{path: "c.unknown", data: []byte("???")},
	}
	data := buildArchive(t, entries,
		WithCompressionPolicy(compression.Policy{"txt": compression.Zstd}),
		WithExtensionCompression(".PNG", compression.LZ4),
		WithDefaultCompression(compression.None),
	)

	r, err := NewReader(data)
	require.NoError(t, err)
	for path, want := range map[string]compression.Algorithm{
		"a.png":     compression.LZ4,
		"b.txt":     compression.Zstd,
		"c.unknown": compression.None,
	} {
		e, ok := r.Entry(path)
		require.True(t, ok)
		assert.Equal(t, want, e.Compression, path)
	}
}

func TestWriterProgress(t *testing.T) {
	t.Parallel()

	var events []ProgressEvent
	buildArchive(t, sampleEntries(), WithProgress(func(ev ProgressEvent) {
		events = append(events, ev)
	}))

	require.Len(t, events, len(sampleEntries()))
	for i, ev := range events {
		assert.Equal(t, StageWriting, ev.Stage)
		assert.Equal(t, i+1, ev.FilesDone)
		assert.Equal(t, len(sampleEntries()), ev.FilesTotal)
	}
	assert.Equal(t, "writing", StageWriting.String())
}

func TestCreateWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	spool := t.TempDir()
	path := filepath.Join(dir, "out.hpak")

	w, err := Create(path, WithSpoolDir(spool))
	require.NoError(t, err)
	require.NoError(t, w.AddEntry("a.txt", nil, strings.NewReader("abc")))

	spooled, err := os.ReadDir(spool)
	require.NoError(t, err)
	assert.Len(t, spooled, 1, "entries are spooled before Finish")

	require.NoError(t, w.Finish())
	require.NoError(t, w.Close())

	spooled, err = os.ReadDir(spool)
	require.NoError(t, err)
	assert.Empty(t, spooled, "spool is removed by Finish")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	got, err := r.ReadData("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestCreateCloseAbandonsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.hpak")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.AddEntry("a.txt", nil, strings.NewReader("abc")))
	require.NoError(t, w.Close())

	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}
