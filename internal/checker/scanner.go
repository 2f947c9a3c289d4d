package checker

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nao1215/capilint/internal/lexer"
	"github.com/nao1215/capilint/internal/rules"
)

// ctxCheckInterval is how many tokens pass between cancellation checks.
const ctxCheckInterval = 256

// historySize is how many consumed tokens the scanner remembers. It bounds
// the longest cast recognized before "&SYMBOL".
const historySize = 16

// CallSite is a deny-listed identifier followed by a balanced argument list.
type CallSite struct {
	// Rule is the matching deny-list entry.
	Rule rules.SymbolRule

	// Symbol is the identifier token.
	Symbol lexer.Token

	// Close is the parenthesis that ends the argument list.
	Close lexer.Token

	// After is the first token following Close; EOF at end of input.
	After lexer.Token

	// AddressOf is set when a unary & directly precedes the symbol.
	AddressOf bool

	// Deref is set when a unary * directly precedes the symbol.
	Deref bool

	// PreIncDec is set when ++ or -- directly precedes the symbol.
	PreIncDec bool
}

// Scanner walks a token stream and yields call sites of deny-listed symbols.
// Nested call sites inside an argument list are reported too, since the
// scanner only ever steps past the identifier it matched.
type Scanner struct {
	ctx   context.Context
	rules *rules.RuleSet
	ts    tokenStream
	hist  [historySize]lexer.Token
	count int
	err   error
}

// NewScanner returns a Scanner reading from lx.
func NewScanner(ctx context.Context, rs *rules.RuleSet, lx *lexer.Lexer) *Scanner {
	return &Scanner{
		ctx:   ctx,
		rules: rs,
		ts:    tokenStream{lx: lx},
	}
}

// Next returns the next call site. The second result is false once the
// input is exhausted or the context is done; Err tells the two apart.
func (s *Scanner) Next() (CallSite, bool) {
	for {
		if s.count%ctxCheckInterval == 0 {
			if err := s.ctx.Err(); err != nil {
				s.err = err
				return CallSite{}, false
			}
		}
		s.count++

		tok := s.ts.next()
		if tok.Kind == lexer.EOF {
			return CallSite{}, false
		}
		site, ok := s.match(tok)
		s.push(tok)
		if ok {
			return site, true
		}
	}
}

// Err returns the context error that stopped the scan, if any.
func (s *Scanner) Err() error {
	return s.err
}

// match checks whether tok starts a call site. tok has been consumed but
// not yet pushed onto the history.
func (s *Scanner) match(tok lexer.Token) (CallSite, bool) {
	if tok.Kind != lexer.Identifier {
		return CallSite{}, false
	}
	rule, ok := s.rules.Lookup(tok.Text)
	if !ok {
		return CallSite{}, false
	}

	prev := s.prev(0)
	if prev.Is(".") || prev.Is("->") {
		return CallSite{}, false
	}
	if !s.ts.peek(0).Is("(") {
		return CallSite{}, false
	}
	closeIdx, ok := s.matchParen()
	if !ok {
		return CallSite{}, false
	}

	site := CallSite{
		Rule:      rule,
		Symbol:    tok,
		Close:     s.ts.peek(closeIdx),
		After:     s.ts.peek(closeIdx + 1),
		PreIncDec: prev.Is("++") || prev.Is("--"),
	}
	if (prev.Is("&") || prev.Is("*")) && s.prefixIsUnary() {
		site.AddressOf = prev.Is("&")
		site.Deref = prev.Is("*")
	}
	return site, true
}

// matchParen returns the lookahead index of the parenthesis closing the
// one at index 0. Literals are single tokens, so parentheses inside them
// never count.
func (s *Scanner) matchParen() (int, bool) {
	depth := 0
	for i := 0; ; i++ {
		tok := s.ts.peek(i)
		switch {
		case tok.Kind == lexer.EOF:
			return 0, false
		case tok.Is("("):
			depth++
		case tok.Is(")"):
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
}

// prefixIsUnary reports whether the & or * just before the symbol is a
// prefix operator rather than a binary one. It is binary only when it
// follows something that ends an operand.
func (s *Scanner) prefixIsUnary() bool {
	before := s.prev(1)
	switch before.Kind {
	case lexer.EOF:
		return true
	case lexer.Identifier:
		return lexer.IsKeyword(before.Text)
	case lexer.Literal:
		return false
	case lexer.Punct:
		switch before.Text {
		case ")":
			return s.closesCast(1)
		case "]", "++", "--":
			return false
		}
		return true
	default:
		return true
	}
}

// typeQualifiers may follow the last * of a pointer type.
var typeQualifiers = map[string]bool{
	"const":      true,
	"volatile":   true,
	"restrict":   true,
	"__restrict": true,
}

// builtinTypes are type names that can make up a cast on their own.
var builtinTypes = map[string]bool{
	"void":     true,
	"char":     true,
	"short":    true,
	"int":      true,
	"long":     true,
	"float":    true,
	"double":   true,
	"signed":   true,
	"unsigned": true,
	"_Bool":    true,
	"bool":     true,
}

// closesCast reports whether the ")" at history index n ends a cast such as
// (char * const), (void), (unsigned long) or (PySizePtr). A lone lowercase
// identifier in parentheses is taken as a parenthesized operand.
func (s *Scanner) closesCast(n int) bool {
	var inner []lexer.Token
	i := n + 1
	for ; i < historySize; i++ {
		tok := s.prev(i)
		if tok.Is("(") {
			break
		}
		if (tok.Kind != lexer.Identifier || lexer.IsKeyword(tok.Text)) && !tok.Is("*") {
			return false
		}
		inner = append(inner, tok)
	}
	if i >= historySize || len(inner) == 0 {
		return false
	}

	// f(a)&SYMBOL and x[i](a)&SYMBOL are calls, not casts.
	before := s.prev(i + 1)
	if (before.Kind == lexer.Identifier && !lexer.IsKeyword(before.Text)) || before.Is(")") || before.Is("]") {
		return false
	}

	// inner is in reverse order; skip trailing qualifiers.
	j := 0
	for j < len(inner) && typeQualifiers[inner[j].Text] {
		j++
	}
	if j == len(inner) {
		return false
	}
	if inner[j].Is("*") {
		return true
	}

	for _, tok := range inner {
		if tok.Is("*") {
			return false
		}
	}
	// Two adjacent identifiers never form an expression.
	if len(inner) > 1 {
		return true
	}
	return looksLikeTypeName(inner[0].Text)
}

// looksLikeTypeName guesses whether a lone identifier names a type.
func looksLikeTypeName(name string) bool {
	if builtinTypes[name] || strings.HasSuffix(name, "_t") {
		return true
	}
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r) && strings.ToUpper(name) != name
}

// prev returns the n-th most recently consumed token, or a zero EOF token.
func (s *Scanner) prev(n int) lexer.Token {
	if n >= historySize {
		return lexer.Token{}
	}
	return s.hist[n]
}

func (s *Scanner) push(tok lexer.Token) {
	copy(s.hist[1:], s.hist[:historySize-1])
	s.hist[0] = tok
}
