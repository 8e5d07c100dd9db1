package hpak

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/hpak/compression"
)

func TestReaderStats(t *testing.T) {
	t.Parallel()

	entries := []testEntry{
		{path: "a/x.txt", meta: "(a: 1)", data: []byte("hello hello hello"), alg: []compression.Algorithm{compression.None}},
		{path: "a/b/y.bin", meta: "()", data: []byte("0123456789"), alg: []compression.Algorithm{compression.None}},
		{path: "z.txt", meta: "", data: []byte("zzz"), alg: []compression.Algorithm{compression.Zstd}},
	}
	data := buildArchive(t, entries, WithAlignment(64), WithMetadataCompression(compression.None))
	r, err := NewReader(data)
	require.NoError(t, err)

	st := r.Stats()
	assert.Equal(t, 3, st.Files)
	assert.Equal(t, 3, st.Dirs)
	assert.Equal(t, int64(len(data)), st.ArchiveSize)
	assert.Equal(t, uint64(len("(a:1)")+len("()")), st.MetadataBytes)
	assert.Equal(t, map[compression.Algorithm]int{compression.None: 2, compression.Zstd: 1}, st.ByCompression)

	var meta, stored uint64
	for _, p := range []string{"a/x.txt", "a/b/y.bin", "z.txt"} {
		f, ok := r.Entry(p)
		require.True(t, ok)
		meta += f.MetadataSize
		stored += f.DataSize
	}
	assert.Equal(t, meta, st.MetadataBytes)
	assert.Equal(t, stored, st.DataBytes)
	assert.Positive(t, st.PaddingBytes)

	st.ByCompression[compression.LZ4] = 7
	assert.NotContains(t, r.Stats().ByCompression, compression.LZ4, "Stats must return an independent map")
}

func TestReaderStatsEmpty(t *testing.T) {
	t.Parallel()

	r, err := NewReader(buildArchive(t, nil))
	require.NoError(t, err)
	st := r.Stats()
	assert.Zero(t, st.Files)
	assert.Zero(t, st.Dirs)
	assert.Zero(t, st.PaddingBytes)
	assert.Empty(t, st.ByCompression)
}
