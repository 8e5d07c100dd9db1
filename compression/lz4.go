package compression

import (
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// lz4Codec writes LZ4 frames at the highest compression level.
type lz4Codec struct {
	writers sync.Pool
	readers sync.Pool
}

func newLZ4Codec() *lz4Codec {
	return &lz4Codec{}
}

func (c *lz4Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	if lw, ok := c.writers.Get().(*lz4.Writer); ok {
		lw.Reset(w)
		return &lz4Writer{Writer: lw, pool: &c.writers}, nil
	}
	lw := lz4.NewWriter(w)
	if err := lw.Apply(lz4.CompressionLevelOption(lz4.Level9), lz4.ConcurrencyOption(1)); err != nil {
		return nil, err
	}
	return &lz4Writer{Writer: lw, pool: &c.writers}, nil
}

func (c *lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	if lr, ok := c.readers.Get().(*lz4.Reader); ok {
		lr.Reset(r)
		return &lz4Reader{Reader: lr, pool: &c.readers}, nil
	}
	return &lz4Reader{Reader: lz4.NewReader(r), pool: &c.readers}, nil
}

type lz4Writer struct {
	*lz4.Writer
	pool *sync.Pool
}

func (w *lz4Writer) Close() error {
	if w.Writer == nil {
		return nil
	}
	err := w.Writer.Close()
	w.pool.Put(w.Writer)
	w.Writer = nil
	return err
}

type lz4Reader struct {
	*lz4.Reader
	pool *sync.Pool
}

func (r *lz4Reader) Close() error {
	if r.Reader == nil {
		return nil
	}
	r.Reader.Reset(nil)
	r.pool.Put(r.Reader)
	r.Reader = nil
	return nil
}
