// Package platform isolates OS-specific file opening used while ingesting
// asset directories.
package platform

import "errors"

var (
	// ErrSymlink is returned when the named file is a symbolic link.
	ErrSymlink = errors.New("platform: symbolic links not supported")

	// ErrNotRegular is returned for directories, devices, sockets and pipes.
	ErrNotRegular = errors.New("platform: not a regular file")

	// ErrChanged is returned when the file was replaced while being opened.
	ErrChanged = errors.New("platform: file changed during open")
)
