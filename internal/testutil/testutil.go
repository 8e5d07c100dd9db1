// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// SeekBuffer is an in-memory io.WriteSeeker. Writes past the end grow the
// buffer with zero bytes, like a sparse file.
type SeekBuffer struct {
	data []byte
	pos  int64
}

// Write implements io.Writer at the current position.
func (b *SeekBuffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.data)) {
		b.data = append(b.data, make([]byte, end-int64(len(b.data)))...)
	}
	copy(b.data[b.pos:], p)
	b.pos = end
	return len(p), nil
}

// Seek implements io.Seeker.
func (b *SeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.pos + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, errors.New("testutil: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("testutil: negative position")
	}
	b.pos = abs
	return abs, nil
}

// Bytes returns the backing slice.
func (b *SeekBuffer) Bytes() []byte {
	return b.data
}

// WriteTree creates files under root. Keys are slash-separated relative
// paths; parent directories are created as needed.
func WriteTree(tb testing.TB, root string, files map[string]string) {
	tb.Helper()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			tb.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			tb.Fatalf("write %s: %v", name, err)
		}
	}
}

// ErrInjected is returned by FailingReader.
var ErrInjected = errors.New("testutil: injected read failure")

// FailingReader yields Data and then fails with ErrInjected.
type FailingReader struct {
	Data []byte
}

// Read implements io.Reader.
func (r *FailingReader) Read(p []byte) (int, error) {
	if len(r.Data) == 0 {
		return 0, ErrInjected
	}
	n := copy(p, r.Data)
	r.Data = r.Data[n:]
	return n, nil
}
