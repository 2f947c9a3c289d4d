package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrRuleConflict is returned when two rules share a name.
	// Lookups must be unambiguous, so a conflict is fatal at load time.
	ErrRuleConflict = errors.New("rule conflict")

	// ErrInvalidRule is returned when a rule entry is malformed,
	// for example when its name is not a C identifier.
	ErrInvalidRule = errors.New("invalid rule")
)

// ConflictError reports the two entries that define the same symbol.
type ConflictError struct {
	Name   string
	First  SymbolRule
	Second SymbolRule
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %q defined twice (%s and %s)",
		ErrRuleConflict, e.Name, originOf(e.First), originOf(e.Second))
}

// Unwrap allows errors.Is(err, ErrRuleConflict).
func (e *ConflictError) Unwrap() error {
	return ErrRuleConflict
}

func originOf(r SymbolRule) string {
	if r.Origin == "" {
		return "<inline>"
	}
	return r.Origin
}
