package model

import (
	"fmt"
	"strings"
)

// Finding is one l-value use of a deny-listed symbol.
// Findings are immutable once emitted.
type Finding struct {
	// File is the display path. Archive members use "archive!member".
	File string `json:"file"`

	// Archive is the containing archive, if any.
	Archive string `json:"archive,omitempty"`

	// Line and Col are 1-based; Col counts runes.
	Line int `json:"line"`
	Col  int `json:"column"`

	// Symbol is the deny-listed name, always present in the active rule set.
	Symbol string `json:"symbol"`

	// Context is how the symbol was misused.
	Context Context `json:"context"`

	// Suggestion is the replacement function, when the rule names one.
	Suggestion string `json:"suggestion,omitempty"`

	// Category is copied from the rule.
	Category string `json:"category,omitempty"`

	// Snippet is the trimmed source line holding the symbol.
	Snippet string `json:"snippet,omitempty"`
}

// Location returns "file:line:col".
func (f Finding) Location() string {
	return fmt.Sprintf("%s:%d:%d", f.File, f.Line, f.Col)
}

// Message returns the diagnostic text without the location prefix.
func (f Finding) Message() string {
	switch f.Context {
	case AddressOf:
		return fmt.Sprintf("'%s' address taken", f.Symbol)
	case Increment:
		return fmt.Sprintf("'%s' used as increment/decrement operand", f.Symbol)
	default:
		if f.Suggestion == "" {
			return fmt.Sprintf("'%s' used as assignment target", f.Symbol)
		}
		return fmt.Sprintf("'%s' used as assignment target; use '%s' instead", f.Symbol, f.Suggestion)
	}
}

// String returns the full diagnostic line.
func (f Finding) String() string {
	return f.Location() + ": " + f.Message()
}

// Key identifies a finding across runs. Line numbers are left out so that
// unrelated edits above a finding do not make it look new.
func (f Finding) Key() string {
	return strings.Join([]string{f.File, f.Symbol, f.Context.String(), f.Snippet}, "|")
}
