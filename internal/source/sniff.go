package source

import (
	"bytes"
	"regexp"
)

// sniffLen is how many leading bytes are examined by IsBinary.
const sniffLen = 256

// textChars marks the bytes that may appear in a text file: BEL, BS, TAB,
// LF, FF, CR, ESC and everything from space upward except DEL.
var textChars = func() [256]bool {
	var t [256]bool
	for _, c := range []byte{7, 8, 9, 10, 12, 13, 27} {
		t[c] = true
	}
	for c := 0x20; c <= 0xff; c++ {
		t[c] = c != 0x7f
	}
	return t
}()

// cythonHeader matches the first line Cython writes into generated C.
var cythonHeader = regexp.MustCompile(`^/\* Generated by Cython [0-9]+(\.[0-9]+)+ `)

// IsBinary reports whether data looks like a binary file, judged from the
// first 256 bytes.
func IsBinary(data []byte) bool {
	head := data[:min(len(data), sniffLen)]
	for _, c := range head {
		if !textChars[c] {
			return true
		}
	}
	return false
}

// IsCythonGenerated reports whether data is C code generated by Cython.
// Such files are rebuilt from .pyx sources and fixing them by hand is
// pointless.
func IsCythonGenerated(data []byte) bool {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}
	return cythonHeader.Match(line)
}
