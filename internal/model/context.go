package model

import "fmt"

// Context says how a deny-listed symbol was used as an l-value.
type Context int

const (
	// Assignment is SYMBOL(x) = y, or any compound assignment.
	Assignment Context = iota

	// AddressOf is &SYMBOL(x) for a symbol whose address may not be taken.
	AddressOf

	// Increment is ++SYMBOL(x), SYMBOL(x)++ and the decrement forms.
	Increment
)

// String returns the stable name used in JSON, history and reports.
func (c Context) String() string {
	switch c {
	case Assignment:
		return "assignment"
	case AddressOf:
		return "address-of"
	case Increment:
		return "increment"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Context) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Context) UnmarshalText(text []byte) error {
	parsed, err := ParseContext(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseContext is the inverse of Context.String.
func ParseContext(s string) (Context, error) {
	switch s {
	case "assignment":
		return Assignment, nil
	case "address-of":
		return AddressOf, nil
	case "increment":
		return Increment, nil
	default:
		return 0, fmt.Errorf("unknown finding context %q", s)
	}
}

// ContextInfo describes a finding context for human readers.
type ContextInfo struct {
	Title          string
	Impact         string
	Recommendation string
}

// contextInfoMapping is the single source of the explanatory text shown by
// the Markdown report and the rules command.
var contextInfoMapping = map[Context]ContextInfo{
	Assignment: {
		Title:          "Used as assignment target",
		Impact:         "Fails to compile once the macro becomes a static inline function, because a function call is not an l-value.",
		Recommendation: "Call the setter function instead, for example Py_SET_TYPE(obj, type) rather than Py_TYPE(obj) = type.",
	},
	AddressOf: {
		Title:          "Address taken",
		Impact:         "Fails to compile once the macro becomes a function, because the address of a returned value cannot be taken.",
		Recommendation: "Store the value in a local variable and take the address of that variable.",
	},
	Increment: {
		Title:          "Used as increment/decrement operand",
		Impact:         "Fails to compile once the macro becomes a function, because ++ and -- need an l-value.",
		Recommendation: "Read the value, adjust it, and write it back with the setter function.",
	},
}

// GetContextInfo returns the explanatory text for c.
func GetContextInfo(c Context) ContextInfo {
	if info, ok := contextInfoMapping[c]; ok {
		return info
	}
	return ContextInfo{
		Title:          "Unknown usage",
		Impact:         "Unknown finding context. Review manually.",
		Recommendation: "Inspect the call site.",
	}
}
