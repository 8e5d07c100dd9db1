//go:build !unix

package platform

import (
	"io/fs"
	"os"
)

// OpenRegular opens name inside root for reading. Symbolic links and
// anything but a regular file are rejected, and the opened file must be
// the one that was checked.
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

	f, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	after, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !os.SameFile(before, after) {
		f.Close()
		return nil, ErrChanged
	}
	return f, nil
}
