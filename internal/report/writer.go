package report

import (
	"io"

	"github.com/nao1215/capilint/internal/model"
)

// Writer renders a Report somewhere.
type Writer interface {
	// Write renders report and returns the number of bytes written.
	Write(report *model.Report) (int, error)
}

// MultiWriter renders one report through several Writers, for example a
// JSON file plus diagnostics on the terminal.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter returns a MultiWriter over writers, used in order.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders report with every Writer and sums the byte counts. The
// first error stops the remaining Writers.
func (m *MultiWriter) Write(report *model.Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the destination shared by the concrete writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
