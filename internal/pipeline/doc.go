// Package pipeline runs each input file through a fixed sequence of steps
// and processes many files concurrently.
//
// A file moves through read, filter, tokenize, check and report. The
// steps advance the FileResult through the states Idle, Tokenizing,
// Scanning, Reporting and Done. Every file reaches Done, including files
// that were skipped or could not be read.
//
// BatchProcessor fans files out over an errgroup with a concurrency limit
// and an optional wall-clock budget per file. Results come back in input
// order whatever order the workers finish in.
package pipeline
