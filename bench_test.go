package hpak

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/hpak/compression"
	"github.com/meigma/hpak/internal/testutil"
)

var (
	benchSinkBytes []byte
	benchSinkBool  bool
	benchSinkHash  uint64
)

const benchFileCount = 1024

func benchArchive(b *testing.B, alg compression.Algorithm, fileSize int) ([]byte, []string) {
	b.Helper()
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // reproducible benchmark data

	var buf testutil.SeekBuffer
	w, err := NewWriter(&buf, WithDefaultCompression(alg), WithCompressionPolicy(nil))
	require.NoError(b, err)

	paths := make([]string, benchFileCount)
	data := make([]byte, fileSize)
	for i := range paths {
		paths[i] = fmt.Sprintf("dir%02d/asset%04d.bin", i%16, i)
		for j := range data {
			data[j] = byte('a' + rng.Intn(4))
		}
		require.NoError(b, w.AddEntry(paths[i], strings.NewReader("(index: 1)"), bytes.NewReader(data)))
	}
	require.NoError(b, w.Finish())
	return buf.Bytes(), paths
}

func BenchmarkHashPath(b *testing.B) {
	for _, p := range []string{"a.txt", "textures/terrain/grass_albedo.ktx2", `textures\terrain\\grass_albedo.ktx2`} {
		b.Run(p, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				benchSinkHash = HashPath(p)
			}
		})
	}
}

func BenchmarkReaderLookup(b *testing.B) {
	data, paths := benchArchive(b, compression.None, 64)
	r, err := NewReader(data)
	require.NoError(b, err)

	b.ReportAllocs()
	i := 0
	for b.Loop() {
		benchSinkBool = r.IsFile(paths[i%len(paths)])
		i++
	}
}

func BenchmarkReaderReadData(b *testing.B) {
	for _, alg := range []compression.Algorithm{compression.None, compression.Deflate, compression.Zstd, compression.LZ4, compression.Snappy} {
		b.Run(alg.String(), func(b *testing.B) {
			data, paths := benchArchive(b, alg, 16<<10)
			r, err := NewReader(data)
			require.NoError(b, err)

			b.SetBytes(16 << 10)
			b.ReportAllocs()
			i := 0
			for b.Loop() {
				benchSinkBytes, err = r.ReadData(paths[i%len(paths)])
				if err != nil {
					b.Fatal(err)
				}
				i++
			}
		})
	}
}

func BenchmarkWriterFinish(b *testing.B) {
	for _, alignment := range []uint64{0, DefaultAlignment} {
		b.Run(fmt.Sprintf("align=%d", alignment), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				var buf testutil.SeekBuffer
				w, err := NewWriter(&buf, WithAlignment(alignment), WithDefaultCompression(compression.None))
				if err != nil {
					b.Fatal(err)
				}
				for i := range 256 {
					if err := w.AddEntry(fmt.Sprintf("f%03d.dat", i), nil, strings.NewReader("payload")); err != nil {
						b.Fatal(err)
					}
				}
				if err := w.Finish(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
