// Package checker finds l-value uses of deny-listed C API symbols.
//
// It works in two stages over the lexer's token stream. The Scanner finds
// call sites: a deny-listed identifier followed by a balanced argument
// list. classify then looks at the tokens around each call site and decides
// whether the call is used as an assignment target, has its address taken,
// is incremented, or is a plain r-value.
package checker
