// Package main provides the entry point for the capilint CLI.
//
// capilint finds places in C extension sources where a Python C-API macro
// is used as an l-value: assigned to, incremented, or having its address
// taken. Such code stops compiling once the macro becomes a static inline
// function.
//
// Usage:
//
//	capilint check src/
//	capilint check --json -o report.json src/ dist/pkg-1.0.tar.gz
//	capilint compare
//
// See --help for all available options.
package main

func main() {
	Execute()
}
