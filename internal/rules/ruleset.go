package rules

import (
	"fmt"
	"regexp"
	"slices"
)

// identPattern matches a plain C identifier.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SymbolRule describes one deny-listed symbol.
type SymbolRule struct {
	// Name is the macro or function name as it appears in source.
	Name string `yaml:"name" json:"name"`

	// Replacement is the setter suggested for assignments. Optional.
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty"`

	// AllowedAddressOf marks symbols whose address may legitimately be
	// taken, such as &PyTuple_GET_ITEM(t, 0).
	AllowedAddressOf bool `yaml:"allowedAddressOf,omitempty" json:"allowedAddressOf"`

	// Category groups related symbols in reports ("object", "get", ...).
	Category string `yaml:"category,omitempty" json:"category,omitempty"`

	// Note is free text shown by the rules command.
	Note string `yaml:"note,omitempty" json:"note,omitempty"`

	// Origin records where the rule was defined ("file.yaml:12").
	Origin string `yaml:"-" json:"-"`
}

// Validate checks that the rule names valid C identifiers.
func (r SymbolRule) Validate() error {
	if !identPattern.MatchString(r.Name) {
		return fmt.Errorf("%w: name %q is not a C identifier (%s)", ErrInvalidRule, r.Name, originOf(r))
	}
	if r.Replacement != "" && !identPattern.MatchString(r.Replacement) {
		return fmt.Errorf("%w: replacement %q for %s is not a C identifier (%s)",
			ErrInvalidRule, r.Replacement, r.Name, originOf(r))
	}
	return nil
}

// RuleSet is an immutable, name-indexed collection of SymbolRules.
// It is safe for concurrent use.
type RuleSet struct {
	rules  []SymbolRule
	byName map[string]int
}

// New validates rules and builds a RuleSet from them.
// Duplicate names fail with a *ConflictError.
func New(rules []SymbolRule) (*RuleSet, error) {
	rs := &RuleSet{
		rules:  make([]SymbolRule, 0, len(rules)),
		byName: make(map[string]int, len(rules)),
	}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if idx, ok := rs.byName[r.Name]; ok {
			return nil, &ConflictError{Name: r.Name, First: rs.rules[idx], Second: r}
		}
		rs.byName[r.Name] = len(rs.rules)
		rs.rules = append(rs.rules, r)
	}
	return rs, nil
}

// Lookup returns the rule for name.
func (rs *RuleSet) Lookup(name string) (SymbolRule, bool) {
	idx, ok := rs.byName[name]
	if !ok {
		return SymbolRule{}, false
	}
	return rs.rules[idx], true
}

// Has reports whether name is deny-listed.
func (rs *RuleSet) Has(name string) bool {
	_, ok := rs.byName[name]
	return ok
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Rules returns a copy of the rules in definition order.
func (rs *RuleSet) Rules() []SymbolRule {
	return slices.Clone(rs.rules)
}

// Categories returns the distinct categories in definition order.
func (rs *RuleSet) Categories() []string {
	var out []string
	for _, r := range rs.rules {
		if r.Category != "" && !slices.Contains(out, r.Category) {
			out = append(out, r.Category)
		}
	}
	return out
}

// Unknown returns the names that match neither a rule nor a category, in
// the order given.
func (rs *RuleSet) Unknown(names ...string) []string {
	var out []string
	categories := rs.Categories()
	for _, name := range names {
		if rs.Has(name) || slices.Contains(categories, name) || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Without returns a RuleSet lacking the named rules. Names may also be
// category names, which drops every rule in that category. The receiver is
// returned unchanged when nothing matches.
func (rs *RuleSet) Without(names ...string) *RuleSet {
	if len(names) == 0 {
		return rs
	}
	kept := make([]SymbolRule, 0, len(rs.rules))
	for _, r := range rs.rules {
		if slices.Contains(names, r.Name) || (r.Category != "" && slices.Contains(names, r.Category)) {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == len(rs.rules) {
		return rs
	}
	out := &RuleSet{rules: kept, byName: make(map[string]int, len(kept))}
	for i, r := range kept {
		out.byName[r.Name] = i
	}
	return out
}
