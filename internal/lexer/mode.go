package lexer

import (
	"path/filepath"
	"strings"
)

// Mode selects the comment and string syntax the lexer recognizes.
type Mode int

const (
	// ModeC lexes C and C++: // and /* */ comments, "..." strings and
	// '...' character literals with optional encoding and raw prefixes.
	ModeC Mode = iota

	// ModeCython lexes Cython (.pyx, .pxd, .pxi): # comments to end of
	// line, '...' and "..." strings, and '''...''' and """...""" strings
	// that may span lines, all with optional r/b/u/f prefixes.
	ModeCython
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeC:
		return "c"
	case ModeCython:
		return "cython"
	default:
		return "unknown"
	}
}

var cythonExtensions = []string{".pyx", ".pxd", ".pxi"}

// ModeFor returns the mode for a file name, judged by its extension.
// Anything that is not Cython is lexed as C.
func ModeFor(name string) Mode {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range cythonExtensions {
		if ext == e {
			return ModeCython
		}
	}
	return ModeC
}

// Option configures a Lexer.
type Option func(*Lexer)

// WithMode sets the lexing mode. The default is ModeC.
func WithMode(mode Mode) Option {
	return func(lx *Lexer) {
		lx.mode = mode
	}
}

// isStringPrefix reports whether an identifier directly followed by a
// quote is a Cython string prefix such as r, b, u, f, rb or br.
func isStringPrefix(ident string) bool {
	if len(ident) == 0 || len(ident) > 2 {
		return false
	}
	seen := ""
	for _, c := range strings.ToLower(ident) {
		if !strings.ContainsRune("rbuf", c) || strings.ContainsRune(seen, c) {
			return false
		}
		seen += string(c)
	}
	return len(ident) == 1 || !strings.ContainsRune(seen, 'u')
}
