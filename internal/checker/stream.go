package checker

import "github.com/nao1215/capilint/internal/lexer"

// tokenStream adds arbitrary lookahead on top of the lexer. Tokens are
// pulled lazily and buffered only while they are being looked at.
type tokenStream struct {
	lx  *lexer.Lexer
	buf []lexer.Token
}

// peek returns the token i positions ahead without consuming anything.
func (ts *tokenStream) peek(i int) lexer.Token {
	for len(ts.buf) <= i {
		if n := len(ts.buf); n > 0 && ts.buf[n-1].Kind == lexer.EOF {
			return ts.buf[n-1]
		}
		ts.buf = append(ts.buf, ts.lx.Next())
	}
	return ts.buf[i]
}

// next consumes and returns one token. EOF is never consumed.
func (ts *tokenStream) next() lexer.Token {
	tok := ts.peek(0)
	if tok.Kind != lexer.EOF {
		ts.buf = ts.buf[1:]
	}
	return tok
}
