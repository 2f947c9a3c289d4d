package source

import (
	"errors"
	"io/fs"
)

var (
	// ErrNoMatchingFiles is returned for a directory that holds no file
	// with a scanned extension.
	ErrNoMatchingFiles = errors.New("no matching source files")

	// ErrTooLarge is returned when an input exceeds the size limit.
	ErrTooLarge = errors.New("file too large")

	// ErrUnsupportedArchive is returned for an archive format the
	// collector cannot open.
	ErrUnsupportedArchive = errors.New("unsupported archive format")
)

// PathError ties a collection problem to the path given by the user.
type PathError struct {
	Path string
	Err  error
}

// Error returns "path: reason". For file system errors the reason omits
// the operation and path already present in the message.
func (e *PathError) Error() string {
	var pe *fs.PathError
	if errors.As(e.Err, &pe) {
		return e.Path + ": " + pe.Err.Error()
	}
	return e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}
