package source

import (
	"fmt"
	"os"
)

// Input is one unit of work: a file on disk or a member of an archive.
type Input struct {
	// Path is the file on disk. For archive members it is the archive.
	Path string

	// Member is the name inside the archive; empty for plain files.
	Member string

	// Root is the command-line argument the input was found under.
	Root string

	// Size is the content length in bytes.
	Size int64

	// data holds archive member content, read while the archive was open.
	data []byte
}

// Name returns the display name used in diagnostics.
func (in Input) Name() string {
	if in.Member != "" {
		return in.Path + "!" + in.Member
	}
	return in.Path
}

// InArchive reports whether the input is an archive member.
func (in Input) InArchive() bool {
	return in.Member != ""
}

// ReadAll returns the content of the input. Plain files are read from disk
// at call time.
func (in Input) ReadAll() ([]byte, error) {
	if in.InArchive() {
		if in.data == nil && in.Size > 0 {
			return nil, fmt.Errorf("%s: %w", in.Name(), ErrTooLarge)
		}
		return in.data, nil
	}
	return os.ReadFile(in.Path) //nolint:gosec // Paths come from the user's command line
}
