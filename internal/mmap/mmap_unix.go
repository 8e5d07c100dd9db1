//go:build unix

package mmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int) (*Region, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED) //nolint:gosec // fd fits in int
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", f.Name(), err)
	}
	// Lookups jump between unrelated entries; readahead only wastes page cache.
	_ = unix.Madvise(data, unix.MADV_RANDOM) //nolint:errcheck // advisory
	return &Region{data: data, unmap: unix.Munmap}, nil
}
