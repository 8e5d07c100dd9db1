// Package sizing provides overflow-checked offset arithmetic for archive layout.
package sizing

import (
	"io"
	"math"
)

// ToInt64 converts a uint64 to int64, returning overflowErr if it doesn't fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Padding returns the number of zero bytes needed to move offset up to the
// next multiple of alignment. Alignments of 0 and 1 never pad.
func Padding(offset, alignment uint64) uint64 {
	if alignment <= 1 {
		return 0
	}
	rem := offset % alignment
	if rem == 0 {
		return 0
	}
	return alignment - rem
}

// WriteZeros writes n zero bytes to w.
func WriteZeros(w io.Writer, n uint64) error {
	if n == 0 {
		return nil
	}
	var zeros [4096]byte
	for n > 0 {
		chunk := min(n, uint64(len(zeros)))
		if _, err := w.Write(zeros[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// ReadAllWithLimit reads up to maxSize bytes from r.
// Returns overflowErr if more than maxSize bytes are available.
// A maxSize of zero disables the limit.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize == 0 {
		return io.ReadAll(r)
	}
	if maxSize > uint64(math.MaxInt-1) {
		return nil, overflowErr
	}
	limit := int64(maxSize) + 1 //nolint:gosec // checked above
	lr := &io.LimitedReader{R: r, N: limit}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize { //nolint:gosec // len is always non-negative
		return nil, overflowErr
	}
	return data, nil
}
