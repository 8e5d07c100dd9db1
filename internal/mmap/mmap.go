// Package mmap maps archive files read-only into memory.
//
// On unix systems the file is mapped with mmap(2) and advised for random
// access. Elsewhere the file is read into a private buffer, which keeps the
// same lifetime contract at the cost of an up-front read.
package mmap

import (
	"errors"
	"fmt"
	"math"
	"os"
)

// ErrTooLarge is returned when a file cannot be addressed by a byte slice.
var ErrTooLarge = errors.New("mmap: file too large")

// Region is a read-only view of a whole file.
//
// Bytes returned by Region are valid until Close. Writing to them faults on
// platforms that map the file.
type Region struct {
	data  []byte
	unmap func([]byte) error
}

// Open maps the named file.
func Open(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return &Region{}, nil
	}
	if size < 0 || uint64(size) > uint64(math.MaxInt) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	return mapFile(f, int(size))
}

// Bytes returns the mapped contents.
func (r *Region) Bytes() []byte {
	return r.data
}

// Len returns the mapped length in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

// Close releases the mapping. Close is idempotent.
func (r *Region) Close() error {
	data := r.data
	unmap := r.unmap
	r.data = nil
	r.unmap = nil
	if unmap == nil || data == nil {
		return nil
	}
	return unmap(data)
}
