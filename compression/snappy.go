package compression

import (
	"io"

	"github.com/golang/snappy"
)

// snappyCodec uses the framed snappy stream format so blocks can be
// decoded without knowing their uncompressed size up front.
type snappyCodec struct{}

func (snappyCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}

func (snappyCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(snappy.NewReader(r)), nil
}
