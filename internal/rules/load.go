package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultOrigin is the origin recorded for rules from the embedded table.
const DefaultOrigin = "default_rules.yaml"

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// ErrNoRules is returned by Load when every source is empty or disabled.
var ErrNoRules = errors.New("no rules configured")

// DefaultYAML returns the embedded rule table.
func DefaultYAML() []byte {
	return defaultRulesYAML
}

// tableFile is the on-disk shape of a rule table. Entries are decoded one
// by one so that each rule can carry its line number.
type tableFile struct {
	Rules []yaml.Node `yaml:"rules"`
}

// Parse decodes a YAML rule table. origin names the table in error messages
// and becomes the prefix of each rule's Origin.
func Parse(data []byte, origin string) ([]SymbolRule, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRule, origin, err)
	}

	rules := make([]SymbolRule, 0, len(tf.Rules))
	for i := range tf.Rules {
		node := &tf.Rules[i]
		var r SymbolRule
		if err := node.Decode(&r); err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %w", ErrInvalidRule, origin, node.Line, err)
		}
		r.Origin = fmt.Sprintf("%s:%d", origin, node.Line)
		rules = append(rules, r)
	}
	return rules, nil
}

// LoadFile reads and parses a rule table from disk.
func LoadFile(path string) ([]SymbolRule, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided rule path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return Parse(data, path)
}

// DefaultRules returns the embedded rule table.
func DefaultRules() []SymbolRule {
	rules, err := Parse(defaultRulesYAML, DefaultOrigin)
	if err != nil {
		panic(fmt.Sprintf("embedded rule table is malformed: %v", err))
	}
	return rules
}

// Default returns a RuleSet built from the embedded table.
func Default() *RuleSet {
	rs, err := New(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("embedded rule table is malformed: %v", err))
	}
	return rs
}

// LoadOptions selects the rule sources combined by Load.
type LoadOptions struct {
	// NoDefaults skips the embedded table.
	NoDefaults bool

	// File is an optional YAML rule table on disk.
	File string

	// Inline rules, typically from the configuration file.
	Inline []SymbolRule
}

// Load combines the embedded table, the rule file and inline rules, in that
// order, into one RuleSet. A symbol defined by more than one source is a
// *ConflictError.
func Load(opts LoadOptions) (*RuleSet, error) {
	var all []SymbolRule
	if !opts.NoDefaults {
		all = append(all, DefaultRules()...)
	}
	if opts.File != "" {
		fromFile, err := LoadFile(opts.File)
		if err != nil {
			return nil, err
		}
		all = append(all, fromFile...)
	}
	all = append(all, opts.Inline...)

	if len(all) == 0 {
		return nil, ErrNoRules
	}
	return New(all)
}
