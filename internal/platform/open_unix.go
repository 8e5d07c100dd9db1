//go:build unix

package platform

import (
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// OpenRegular opens name inside root for reading. Symbolic links are
// rejected and anything but a regular file is refused. The open itself is
// non-blocking so a FIFO swapped in after the Lstat cannot stall ingestion.
//
// os.Root resolves links that stay inside the root, so the link check is
// an Lstat before the open plus an identity check after it.
func OpenRegular(root *os.Root, name string) (*os.File, error) {
	before, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if before.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	if !before.Mode().IsRegular() {
		return nil, ErrNotRegular
	}

	f, err := root.OpenFile(name, os.O_RDONLY|unix.O_NOFOLLOW|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	after, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !after.Mode().IsRegular() || !os.SameFile(before, after) {
		f.Close()
		return nil, ErrChanged
	}
	return f, nil
}
