// Package lexer turns C-like source text into a lazy sequence of tokens.
//
// The lexer is shallow: it knows enough of the C lexical
// grammar to never report an identifier that sits inside a comment, a
// string literal or a character literal, and to split punctuators using
// the longest-match rule so that "==" is never confused with "=".
// It performs no preprocessing; directives are tokenized like any other
// line.
//
// Cython sources use ModeCython, where "#" starts a comment and
// triple-quoted strings may span lines. ModeFor picks the mode from a file
// name.
//
// Malformed input never stops the lexer. Unterminated literals and
// comments are recorded as LexError values and lexing resumes at the next
// line boundary.
package lexer
