// Package rules holds the deny list of C API symbols that must not be used
// as l-values.
//
// A RuleSet is built once from one or more YAML rule tables, validated, and
// then shared read-only between all scanning goroutines. Per-symbol
// behavior lives entirely in the SymbolRule data; the checker never branches
// on a symbol name.
package rules
