// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - TextWriter: one diagnostic per line, optionally colored for a terminal
//   - JSONWriter: structured JSON output for tool integration
//   - MarkdownWriter: GitHub-flavored Markdown with tables and a chart
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
