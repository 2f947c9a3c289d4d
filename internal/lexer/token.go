package lexer

import "fmt"

// Kind classifies a token.
type Kind int

const (
	// EOF marks the end of the token sequence. It is returned repeatedly
	// once the source is exhausted.
	EOF Kind = iota
	// Identifier is a C identifier or keyword (main, Py_TYPE, return).
	Identifier
	// Punct is an operator or punctuator (=, ==, ->, (, ;).
	Punct
	// Literal is a string, character or numeric literal.
	Literal
	// Other is any character the C grammar does not assign a meaning to
	// (stray backslashes, '@', '$' outside identifiers, ...).
	Other
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Identifier:
		return "Identifier"
	case Punct:
		return "Punct"
	case Literal:
		return "Literal"
	case Other:
		return "Other"
	default:
		return "Unknown"
	}
}

// Token is a single lexical token with its 1-based source position.
// Col counts runes, not bytes.
type Token struct {
	Kind   Kind
	Text   string
	Line   int
	Col    int
	Offset int
}

// Is reports whether the token is a punctuator with the given text.
func (t Token) Is(punct string) bool {
	return t.Kind == Punct && t.Text == punct
}

// String returns a debug representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Text, t.Line, t.Col)
}

// punctuators lists the multi-character punctuators, longest first.
var punctuators = []string{
	"<<=", ">>=", "...",
	"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "##", "::",
}

// singlePunct holds the characters that form a punctuator on their own.
const singlePunct = "{}[]()<>;:,.?!~+-*/%^&|=#"

// keywords are the C keywords that may directly precede an expression.
// An identifier in this set does not end an operand.
var keywords = map[string]bool{
	"return":   true,
	"case":     true,
	"sizeof":   true,
	"_Alignof": true,
	"alignof":  true,
	"else":     true,
	"do":       true,
	"goto":     true,
	"typeof":   true,
	"__typeof": true,
}

// IsKeyword reports whether text is a keyword that can be followed by an
// expression operand.
func IsKeyword(text string) bool {
	return keywords[text]
}
