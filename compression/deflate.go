package compression

import (
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// deflateLevel trades encode time for ratio; archives are built once.
const deflateLevel = flate.BestCompression

// deflateCodec produces raw DEFLATE streams (RFC 1951).
type deflateCodec struct {
	writers sync.Pool
	readers sync.Pool
}

func newDeflateCodec() *deflateCodec {
	return &deflateCodec{}
}

func (c *deflateCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	if fw, ok := c.writers.Get().(*flate.Writer); ok {
		fw.Reset(w)
		return &deflateWriter{Writer: fw, pool: &c.writers}, nil
	}
	fw, err := flate.NewWriter(w, deflateLevel)
	if err != nil {
		return nil, err
	}
	return &deflateWriter{Writer: fw, pool: &c.writers}, nil
}

func (c *deflateCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	if fr, ok := c.readers.Get().(io.ReadCloser); ok {
		if rs, ok := fr.(flate.Resetter); ok && rs.Reset(r, nil) == nil {
			return &deflateReader{ReadCloser: fr, pool: &c.readers}, nil
		}
	}
	return &deflateReader{ReadCloser: flate.NewReader(r), pool: &c.readers}, nil
}

type deflateWriter struct {
	*flate.Writer
	pool *sync.Pool
}

func (w *deflateWriter) Close() error {
	if w.Writer == nil {
		return nil
	}
	err := w.Writer.Close()
	w.pool.Put(w.Writer)
	w.Writer = nil
	return err
}

type deflateReader struct {
	io.ReadCloser
	pool *sync.Pool
}

func (r *deflateReader) Close() error {
	if r.ReadCloser == nil {
		return nil
	}
	err := r.ReadCloser.Close()
	r.pool.Put(r.ReadCloser)
	r.ReadCloser = nil
	return err
}

// zlibCodec produces zlib-wrapped DEFLATE streams (RFC 1950), the framing
// used by earlier asset packers.
type zlibCodec struct {
	writers sync.Pool
}

func newZlibCodec() *zlibCodec {
	return &zlibCodec{}
}

func (c *zlibCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	if zw, ok := c.writers.Get().(*zlib.Writer); ok {
		zw.Reset(w)
		return &zlibWriter{Writer: zw, pool: &c.writers}, nil
	}
	zw, err := zlib.NewWriterLevel(w, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	return &zlibWriter{Writer: zw, pool: &c.writers}, nil
}

func (c *zlibCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return zlib.NewReader(r)
}

type zlibWriter struct {
	*zlib.Writer
	pool *sync.Pool
}

func (w *zlibWriter) Close() error {
	if w.Writer == nil {
		return nil
	}
	err := w.Writer.Close()
	w.pool.Put(w.Writer)
	w.Writer = nil
	return err
}
