//go:build !unix

package mmap

import (
	"fmt"
	"io"
	"os"
)

func mapFile(f *os.File, size int) (*Region, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	return &Region{data: data, unmap: func([]byte) error { return nil }}, nil
}
