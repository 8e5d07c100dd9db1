package compression

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdCodec pools encoders and decoders; both are expensive to create.
type zstdCodec struct {
	encoders sync.Pool
	decoders sync.Pool
}

func newZstdCodec() *zstdCodec {
	return &zstdCodec{}
}

func (c *zstdCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	if enc, ok := c.encoders.Get().(*zstd.Encoder); ok {
		enc.Reset(w)
		return &zstdWriter{enc: enc, pool: &c.encoders}, nil
	}
	// A single encoder goroutine keeps block boundaries, and therefore the
	// output bytes, independent of scheduling.
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.SpeedBestCompression),
		zstd.WithEncoderConcurrency(1),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		return nil, err
	}
	return &zstdWriter{enc: enc, pool: &c.encoders}, nil
}

func (c *zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	if dec, ok := c.decoders.Get().(*zstd.Decoder); ok {
		if err := dec.Reset(r); err == nil {
			return &zstdReader{dec: dec, pool: &c.decoders}, nil
		}
		dec.Close()
	}
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(false))
	if err != nil {
		return nil, err
	}
	return &zstdReader{dec: dec, pool: &c.decoders}, nil
}

type zstdWriter struct {
	enc  *zstd.Encoder
	pool *sync.Pool
}

func (w *zstdWriter) Write(p []byte) (int, error) {
	return w.enc.Write(p)
}

func (w *zstdWriter) Close() error {
	if w.enc == nil {
		return nil
	}
	err := w.enc.Close()
	w.pool.Put(w.enc)
	w.enc = nil
	return err
}

type zstdReader struct {
	dec  *zstd.Decoder
	pool *sync.Pool
}

func (r *zstdReader) Read(p []byte) (int, error) {
	return r.dec.Read(p)
}

func (r *zstdReader) Close() error {
	if r.dec == nil {
		return nil
	}
	_ = r.dec.Reset(nil) //nolint:errcheck // clearing state before pool return
	r.pool.Put(r.dec)
	r.dec = nil
	return nil
}
