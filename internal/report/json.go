package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/capilint/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
// The report is wrapped with the tool version and a summary so consumers
// need not recount findings.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is the capilint version recorded in the output.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the tool version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report wrapped with metadata.
func (w *JSONWriter) Write(report *model.Report) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// Summary holds the totals of a report.
type Summary struct {
	Files     int           `json:"files"`
	Scanned   int           `json:"scanned"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Findings  int           `json:"findings"`
	Warnings  int           `json:"warnings"`
	BySymbol  []model.Count `json:"by_symbol,omitempty"`
	ByContext []model.Count `json:"by_context,omitempty"`
}

// NewSummary computes the totals of report.
func NewSummary(report *model.Report) Summary {
	return Summary{
		Files:     len(report.Files),
		Scanned:   report.ScannedFiles(),
		Skipped:   report.SkippedFiles(),
		Failed:    report.FailedFiles(),
		Findings:  report.TotalFindings(),
		Warnings:  report.WarningCount(),
		BySymbol:  report.SymbolCounts(),
		ByContext: report.ContextCounts(),
	}
}

// JSONReport is the top-level JSON document.
type JSONReport struct {
	// Version is the capilint version that generated this report.
	Version string `json:"version,omitempty"`

	// Summary holds the totals.
	Summary Summary `json:"summary"`

	// Report is the full report.
	Report *model.Report `json:"report"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(report *model.Report, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Summary: NewSummary(report),
		Report:  report,
	}
}
