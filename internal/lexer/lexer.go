package lexer

import (
	"bytes"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxRawDelimiter is the longest delimiter a raw string may carry.
const maxRawDelimiter = 16

// Lexer produces tokens from an in-memory source buffer on demand.
// A Lexer is not safe for concurrent use; each scan owns its own.
type Lexer struct {
	src  []byte
	mode Mode
	off  int
	line int
	col  int
	errs []*LexError
}

// mark is a saved lexer position.
type mark struct {
	off  int
	line int
	col  int
}

// New returns a Lexer positioned at the start of src.
func New(src []byte, opts ...Option) *Lexer {
	lx := &Lexer{src: src}
	for _, opt := range opts {
		opt(lx)
	}
	lx.Reset()
	return lx
}

// Reset rewinds the lexer to the start of its source and clears errors.
func (lx *Lexer) Reset() {
	lx.off = 0
	lx.line = 1
	lx.col = 1
	lx.errs = nil
}

// Errors returns the lex errors recorded so far.
func (lx *Lexer) Errors() []*LexError {
	return lx.errs
}

// All restarts the lexer and returns an iterator over every token up to,
// but not including, EOF.
func (lx *Lexer) All() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		lx.Reset()
		for {
			tok := lx.Next()
			if tok.Kind == EOF {
				return
			}
			if !yield(tok) {
				return
			}
		}
	}
}

// Next returns the next token. Once the source is exhausted it keeps
// returning an EOF token.
func (lx *Lexer) Next() Token {
	for lx.off < len(lx.src) {
		c := lx.src[lx.off]
		switch {
		case c == '\\' && lx.atContinuation():
			lx.skipContinuation()
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			lx.advance()
		case lx.mode == ModeCython && c == '#':
			lx.skipHashComment()
		case lx.mode == ModeC && c == '/' && lx.byteAt(1) == '/':
			lx.skipLineComment()
		case lx.mode == ModeC && c == '/' && lx.byteAt(1) == '*':
			lx.skipBlockComment()
		default:
			return lx.lexToken()
		}
	}
	return Token{Kind: EOF, Line: lx.line, Col: lx.col, Offset: lx.off}
}

func (lx *Lexer) lexToken() Token {
	start := lx.mark()
	r, _ := utf8.DecodeRune(lx.src[lx.off:])

	switch {
	case isIdentStart(r):
		return lx.lexIdentifier(start)
	case isDigit(lx.src[lx.off]) || (r == '.' && isDigit(lx.byteAt(1))):
		return lx.lexNumber(start)
	case r == '"' || r == '\'':
		if lx.mode == ModeCython {
			return lx.lexPyString(start, byte(r))
		}
		return lx.lexQuoted(start, byte(r))
	}

	rest := lx.src[lx.off:]
	for _, p := range punctuators {
		if len(rest) >= len(p) && string(rest[:len(p)]) == p {
			for range len(p) {
				lx.advance()
			}
			return lx.token(Punct, start)
		}
	}

	lx.advance()
	if r < utf8.RuneSelf && strings.IndexByte(singlePunct, byte(r)) >= 0 {
		return lx.token(Punct, start)
	}
	return lx.token(Other, start)
}

func (lx *Lexer) lexIdentifier(start mark) Token {
	for lx.off < len(lx.src) {
		r, _ := utf8.DecodeRune(lx.src[lx.off:])
		if !isIdentPart(r) {
			break
		}
		lx.advance()
	}

	// Encoding prefixes glue onto the literal that follows them.
	if q := lx.byteAt(0); q == '"' || q == '\'' {
		if lx.mode == ModeCython {
			if isStringPrefix(string(lx.src[start.off:lx.off])) {
				return lx.lexPyString(start, q)
			}
			return lx.token(Identifier, start)
		}
		switch string(lx.src[start.off:lx.off]) {
		case "L", "u", "U", "u8":
			return lx.lexQuoted(start, q)
		case "R", "LR", "uR", "UR", "u8R":
			if q == '"' {
				return lx.lexRaw(start)
			}
		}
	}
	return lx.token(Identifier, start)
}

// lexNumber reads a preprocessing number, which is a superset of every
// integer and floating constant.
func (lx *Lexer) lexNumber(start mark) Token {
	lx.advance()
	for lx.off < len(lx.src) {
		c := lx.src[lx.off]
		prev := lx.src[lx.off-1]
		switch {
		case (c == '+' || c == '-') && isExponent(prev):
			lx.advance()
		case c == '\'' && isAlnum(prev) && isAlnum(lx.byteAt(1)):
			lx.advance()
		case isAlnum(c) || c == '_' || c == '.':
			lx.advance()
		default:
			return lx.token(Literal, start)
		}
	}
	return lx.token(Literal, start)
}

// lexQuoted reads a string or character literal. The lexer must sit on
// the opening quote; start may point earlier when a prefix was read.
func (lx *Lexer) lexQuoted(start mark, quote byte) Token {
	msg := "unterminated string literal"
	if quote == '\'' && lx.mode == ModeC {
		msg = "unterminated character literal"
	}

	lx.advance()
	for lx.off < len(lx.src) {
		switch lx.src[lx.off] {
		case '\\':
			lx.advance()
			if lx.off < len(lx.src) {
				if lx.src[lx.off] == '\r' && lx.byteAt(1) == '\n' {
					lx.advance()
				}
				lx.advance()
			}
		case '\n':
			lx.errorAt(start, msg)
			return lx.token(Literal, start)
		case quote:
			lx.advance()
			return lx.token(Literal, start)
		default:
			lx.advance()
		}
	}
	lx.errorAt(start, msg)
	return lx.token(Literal, start)
}

// lexRaw reads a C++ raw string literal R"delim(...)delim".
func (lx *Lexer) lexRaw(start mark) Token {
	lx.advance()
	delimStart := lx.off
	for lx.off < len(lx.src) && lx.src[lx.off] != '(' {
		c := lx.src[lx.off]
		if c == '\n' || c == ' ' || c == '\\' || c == ')' || lx.off-delimStart >= maxRawDelimiter {
			lx.errorAt(start, "invalid raw string delimiter")
			return lx.restOfLine(start)
		}
		lx.advance()
	}
	if lx.off >= len(lx.src) {
		lx.errorAt(start, "unterminated raw string literal")
		return lx.restOfLine(start)
	}

	closing := ")" + string(lx.src[delimStart:lx.off]) + `"`
	lx.advance()
	idx := bytes.Index(lx.src[lx.off:], []byte(closing))
	if idx < 0 {
		lx.errorAt(start, "unterminated raw string literal")
		return lx.restOfLine(start)
	}
	end := lx.off + idx + len(closing)
	for lx.off < end {
		lx.advance()
	}
	return lx.token(Literal, start)
}

// lexPyString reads a Cython string literal. The lexer must sit on the
// opening quote. Triple-quoted strings may span lines; an unterminated
// one is reported and lexing resumes on the next line.
func (lx *Lexer) lexPyString(start mark, quote byte) Token {
	if lx.byteAt(1) != quote || lx.byteAt(2) != quote {
		return lx.lexQuoted(start, quote)
	}

	lx.advance()
	lx.advance()
	lx.advance()
	for lx.off < len(lx.src) {
		switch {
		case lx.src[lx.off] == '\\':
			lx.advance()
			if lx.off < len(lx.src) {
				lx.advance()
			}
		case lx.src[lx.off] == quote && lx.byteAt(1) == quote && lx.byteAt(2) == quote:
			lx.advance()
			lx.advance()
			lx.advance()
			return lx.token(Literal, start)
		default:
			lx.advance()
		}
	}
	lx.errorAt(start, "unterminated triple-quoted string")
	return lx.restOfLine(start)
}

// restOfLine rewinds to start and returns the remainder of that line as a
// single literal, leaving the lexer on the line break.
func (lx *Lexer) restOfLine(start mark) Token {
	lx.restore(start)
	for lx.off < len(lx.src) && lx.src[lx.off] != '\n' {
		lx.advance()
	}
	return lx.token(Literal, start)
}

func (lx *Lexer) skipLineComment() {
	for lx.off < len(lx.src) {
		c := lx.src[lx.off]
		if c == '\\' && lx.atContinuation() {
			lx.skipContinuation()
			continue
		}
		if c == '\n' {
			return
		}
		lx.advance()
	}
}

func (lx *Lexer) skipHashComment() {
	for lx.off < len(lx.src) && lx.src[lx.off] != '\n' {
		lx.advance()
	}
}

func (lx *Lexer) skipBlockComment() {
	start := lx.mark()
	lx.advance()
	lx.advance()
	for lx.off < len(lx.src) {
		if lx.src[lx.off] == '*' && lx.byteAt(1) == '/' {
			lx.advance()
			lx.advance()
			return
		}
		lx.advance()
	}

	// Resume on the line after the opener so the rest of the file is
	// still examined.
	lx.errorAt(start, "unterminated comment")
	lx.restore(start)
	for lx.off < len(lx.src) {
		if lx.advance() == '\n' {
			return
		}
	}
}

func (lx *Lexer) atContinuation() bool {
	n := lx.byteAt(1)
	return n == '\n' || (n == '\r' && lx.byteAt(2) == '\n')
}

func (lx *Lexer) skipContinuation() {
	lx.advance()
	if lx.byteAt(0) == '\r' {
		lx.advance()
	}
	lx.advance()
}

func (lx *Lexer) advance() rune {
	r, size := utf8.DecodeRune(lx.src[lx.off:])
	lx.off += size
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *Lexer) byteAt(n int) byte {
	if lx.off+n < len(lx.src) {
		return lx.src[lx.off+n]
	}
	return 0
}

func (lx *Lexer) mark() mark {
	return mark{off: lx.off, line: lx.line, col: lx.col}
}

func (lx *Lexer) restore(m mark) {
	lx.off = m.off
	lx.line = m.line
	lx.col = m.col
}

func (lx *Lexer) token(kind Kind, start mark) Token {
	return Token{
		Kind:   kind,
		Text:   string(lx.src[start.off:lx.off]),
		Line:   start.line,
		Col:    start.col,
		Offset: start.off,
	}
}

func (lx *Lexer) errorAt(m mark, msg string) {
	lx.errs = append(lx.errs, &LexError{Line: m.line, Col: m.col, Msg: msg})
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || (r != utf8.RuneError && unicode.IsLetter(r))
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isExponent(c byte) bool {
	return c == 'e' || c == 'E' || c == 'p' || c == 'P'
}
