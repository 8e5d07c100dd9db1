// Package compression provides the block codecs used by hpak archives.
//
// Every algorithm is identified by a one-byte tag that is stored in the
// archive, so tag values are part of the on-disk format and never change.
// Encoders favour ratio over speed because archives are written once at
// build time; decoders are the fast streaming implementations and are
// pooled, since they sit on the runtime read path.
package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Algorithm identifies a compression algorithm. The numeric value is the
// tag written to the archive.
type Algorithm uint8

// Built-in algorithms.
const (
	None    Algorithm = 0
	Deflate Algorithm = 1
	Zlib    Algorithm = 2
	Zstd    Algorithm = 3
	LZ4     Algorithm = 4
	Snappy  Algorithm = 5
)

var (
	// ErrUnsupported is returned for tags with no registered codec.
	ErrUnsupported = errors.New("unsupported algorithm")

	// ErrCorrupt is returned when compressed input is malformed or truncated.
	ErrCorrupt = errors.New("corrupt input")
)

// Error describes a failed encode or decode.
type Error struct {
	Op        string
	Algorithm Algorithm
	Err       error
}

func (e *Error) Error() string {
	return "compression: " + e.Op + " " + e.Algorithm.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Codec creates streaming encoders and decoders for one algorithm.
//
// Implementations must be safe for concurrent use. Closing a writer must
// flush all pending output; closing a reader releases its resources.
type Codec interface {
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

type registration struct {
	name  string
	codec Codec
}

var (
	registryMu sync.RWMutex
	registry   = map[Algorithm]registration{}
)

func init() {
	Register(None, "none", noneCodec{})
	Register(Deflate, "deflate", newDeflateCodec())
	Register(Zlib, "zlib", newZlibCodec())
	Register(Zstd, "zstd", newZstdCodec())
	Register(LZ4, "lz4", newLZ4Codec())
	Register(Snappy, "snappy", snappyCodec{})
}

// Register makes a codec available under alg and name.
// It panics if codec is nil or if alg or name is already registered.
func Register(alg Algorithm, name string, codec Codec) {
	if codec == nil {
		panic("compression: Register codec is nil")
	}
	name = strings.ToLower(name)
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[alg]; dup {
		panic("compression: Register called twice for tag " + strconv.Itoa(int(alg)))
	}
	for _, r := range registry {
		if r.name == name {
			panic("compression: Register called twice for name " + name)
		}
	}
	registry[alg] = registration{name: name, codec: codec}
}

// Registered returns the registered algorithms in tag order.
func Registered() []Algorithm {
	registryMu.RLock()
	defer registryMu.RUnlock()
	algs := make([]Algorithm, 0, len(registry))
	for alg := range registry {
		algs = append(algs, alg)
	}
	slices.Sort(algs)
	return algs
}

func lookup(alg Algorithm) (registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[alg]
	return r, ok
}

// Supported reports whether alg has a registered codec.
func (a Algorithm) Supported() bool {
	_, ok := lookup(a)
	return ok
}

// String returns the registered name of the algorithm.
func (a Algorithm) String() string {
	if r, ok := lookup(a); ok {
		return r.name
	}
	return "unknown(" + strconv.Itoa(int(a)) + ")"
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	r, ok := lookup(a)
	if !ok {
		return nil, &Error{Op: "marshal", Algorithm: a, Err: ErrUnsupported}
	}
	return []byte(r.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	alg, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = alg
	return nil
}

// ParseAlgorithm returns the algorithm registered under name.
// Matching is case-insensitive; "store" and "stored" are accepted for None.
func ParseAlgorithm(name string) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "store", "stored":
		return None, nil
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	for alg, r := range registry {
		if r.name == name {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("compression: %w: %q", ErrUnsupported, name)
}

// NewWriter returns a writer that compresses into w using alg.
// The caller must Close the writer to flush the final block.
func NewWriter(alg Algorithm, w io.Writer) (io.WriteCloser, error) {
	r, ok := lookup(alg)
	if !ok {
		return nil, &Error{Op: "encode", Algorithm: alg, Err: ErrUnsupported}
	}
	wc, err := r.codec.NewWriter(w)
	if err != nil {
		return nil, &Error{Op: "encode", Algorithm: alg, Err: err}
	}
	return wc, nil
}

// NewReader returns a reader that decompresses r using alg.
// Read errors caused by malformed input wrap ErrCorrupt.
func NewReader(alg Algorithm, r io.Reader) (io.ReadCloser, error) {
	reg, ok := lookup(alg)
	if !ok {
		return nil, &Error{Op: "decode", Algorithm: alg, Err: ErrUnsupported}
	}
	rc, err := reg.codec.NewReader(r)
	if err != nil {
		return nil, &Error{Op: "decode", Algorithm: alg, Err: fmt.Errorf("%w: %v", ErrCorrupt, err)}
	}
	if alg == None {
		return rc, nil
	}
	return &checkedReader{rc: rc, alg: alg}, nil
}

// Encode compresses src with alg.
func Encode(alg Algorithm, src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, alg, bytes.NewReader(src)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo compresses everything read from src into dst.
func EncodeTo(dst io.Writer, alg Algorithm, src io.Reader) error {
	w, err := NewWriter(alg, dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close() //nolint:errcheck // copy error takes precedence
		return err
	}
	if err := w.Close(); err != nil {
		return &Error{Op: "encode", Algorithm: alg, Err: err}
	}
	return nil
}

// Decode decompresses src with alg.
func Decode(alg Algorithm, src []byte) ([]byte, error) {
	if alg == None && alg.Supported() {
		return bytes.Clone(src), nil
	}
	r, err := NewReader(alg, bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// checkedReader maps decoder failures to ErrCorrupt.
type checkedReader struct {
	rc  io.ReadCloser
	alg Algorithm
}

func (c *checkedReader) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	if err != nil && err != io.EOF {
		return n, &Error{Op: "decode", Algorithm: c.alg, Err: fmt.Errorf("%w: %v", ErrCorrupt, err)}
	}
	return n, err
}

func (c *checkedReader) Close() error {
	return c.rc.Close()
}

type noneCodec struct{}

func (noneCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (noneCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
