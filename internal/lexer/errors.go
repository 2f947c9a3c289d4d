package lexer

import (
	"errors"
	"fmt"
)

// ErrUnterminated is the sentinel wrapped by every LexError.
var ErrUnterminated = errors.New("unterminated construct")

// LexError describes an unterminated literal or comment.
// It is recoverable: the lexer keeps going after recording it.
type LexError struct {
	Line int
	Col  int
	Msg  string
}

// Error implements the error interface.
func (e *LexError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

// Unwrap allows errors.Is(err, ErrUnterminated).
func (e *LexError) Unwrap() error {
	return ErrUnterminated
}
