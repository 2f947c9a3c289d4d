package report

import (
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/nao1215/capilint/internal/model"
)

// TextWriter outputs one diagnostic per line in the form editors and CI
// annotators understand: "<path>:<line>:<col>: <message>". Scan problems
// carry an "error: ", "warning: " or "skipped: " prefix.
type TextWriter struct {
	baseWriter

	// verbose also lists skipped files.
	verbose bool

	// color highlights locations and prefixes with ANSI escapes.
	color bool

	palette palette
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithVerbose also lists skipped files.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// WithColor enables ANSI colors. Callers normally pass ColorEnabled(os.Stdout, noColor).
func WithColor(enabled bool) TextWriterOption {
	return func(w *TextWriter) {
		w.color = enabled
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}
	w.palette = newPalette(w.color)

	return w
}

// Write outputs the report lines.
func (w *TextWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder
	for _, line := range report.Lines(w.verbose) {
		sb.WriteString(w.paint(line))
		sb.WriteByte('\n')
	}
	return io.WriteString(w.output, sb.String())
}

// palette holds the colors for each kind of line.
type palette struct {
	location *color.Color
	symbol   *color.Color
	err      *color.Color
	warning  *color.Color
	skipped  *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		location: color.New(color.Bold),
		symbol:   color.New(color.FgMagenta, color.Bold),
		err:      color.New(color.FgRed, color.Bold),
		warning:  color.New(color.FgYellow),
		skipped:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.location, p.symbol, p.err, p.warning, p.skipped} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// paint colors a single report line. The text is unchanged when color is
// off.
func (w *TextWriter) paint(line string) string {
	if !w.color {
		return line
	}
	p := w.palette

	for prefix, c := range map[string]*color.Color{
		"error: ":   p.err,
		"warning: ": p.warning,
		"skipped: ": p.skipped,
	} {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return c.Sprint(strings.TrimSuffix(prefix, " ")) + " " + rest
		}
	}

	// "<path>:<line>:<col>: '<symbol>' ..."
	loc, msg, ok := strings.Cut(line, ": '")
	if !ok {
		return line
	}
	symbol, rest, ok := strings.Cut(msg, "'")
	if !ok {
		return line
	}
	return p.location.Sprint(loc+":") + " '" + p.symbol.Sprint(symbol) + "'" + rest
}
