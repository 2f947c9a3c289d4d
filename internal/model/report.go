package model

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Report is the ordered collection of FileResults for one run.
// File order is input order, independent of how many workers ran.
type Report struct {
	// RunID uniquely identifies the run in the history database.
	RunID string `json:"run_id"`

	// Label groups runs over the same inputs for comparison.
	Label string `json:"label,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed_ns"`

	// ScannedBytes is the total size of fully examined files.
	ScannedBytes int64 `json:"scanned_bytes"`

	// RuleCount is the number of active rules.
	RuleCount int `json:"rule_count"`

	// Files holds one entry per input file in input order.
	Files []*FileResult `json:"files"`

	// Errors are problems with the inputs themselves (missing paths,
	// unreadable archives) that have no FileResult.
	Errors []string `json:"errors,omitempty"`
}

// NewReport returns an empty report with a fresh run ID.
func NewReport(label string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Label:     label,
		StartedAt: time.Now(),
		Files:     make([]*FileResult, 0),
	}
}

// Add appends a file result. Findings are never deduplicated.
func (r *Report) Add(fr *FileResult) {
	r.Files = append(r.Files, fr)
	if fr.Scanned() {
		r.ScannedBytes += fr.Size
	}
}

// AddError records an input-level problem.
func (r *Report) AddError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

// Findings returns every finding in file order, then source order.
func (r *Report) Findings() []Finding {
	var out []Finding
	for _, fr := range r.Files {
		out = append(out, fr.Findings...)
	}
	return out
}

// TotalFindings returns the number of findings across all files.
func (r *Report) TotalFindings() int {
	n := 0
	for _, fr := range r.Files {
		n += len(fr.Findings)
	}
	return n
}

// HasFindings reports whether any file produced a finding.
func (r *Report) HasFindings() bool {
	return r.TotalFindings() > 0
}

// FilesWithFindings returns how many files produced at least one finding.
func (r *Report) FilesWithFindings() int {
	n := 0
	for _, fr := range r.Files {
		if len(fr.Findings) > 0 {
			n++
		}
	}
	return n
}

// ScannedFiles returns how many files were fully examined.
func (r *Report) ScannedFiles() int {
	n := 0
	for _, fr := range r.Files {
		if fr.Scanned() {
			n++
		}
	}
	return n
}

// SkippedFiles returns how many files were skipped.
func (r *Report) SkippedFiles() int {
	n := 0
	for _, fr := range r.Files {
		if fr.Skipped {
			n++
		}
	}
	return n
}

// FailedFiles returns how many files could not be scanned.
func (r *Report) FailedFiles() int {
	n := 0
	for _, fr := range r.Files {
		if fr.Failed() {
			n++
		}
	}
	return n
}

// WarningCount returns the number of lex warnings across all files.
func (r *Report) WarningCount() int {
	n := 0
	for _, fr := range r.Files {
		n += len(fr.Warnings)
	}
	return n
}

// Count pairs a label with a number of findings.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SymbolCounts returns findings per symbol, most frequent first, ties by name.
func (r *Report) SymbolCounts() []Count {
	return r.countBy(func(f Finding) string { return f.Symbol })
}

// ContextCounts returns findings per context, most frequent first.
func (r *Report) ContextCounts() []Count {
	return r.countBy(func(f Finding) string { return f.Context.String() })
}

func (r *Report) countBy(key func(Finding) string) []Count {
	counts := make(map[string]int)
	for _, f := range r.Findings() {
		counts[key(f)]++
	}
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// Lines renders the report as line-oriented diagnostics.
//
// Findings use "<path>:<line>:<col>: <message>". Scan problems carry a
// prefix so tools can filter them out: "error: " for inputs and files that
// could not be read, "warning: " for lex errors, and, in verbose mode only,
// "skipped: " for files that were intentionally not scanned.
func (r *Report) Lines(verbose bool) []string {
	var lines []string
	for _, msg := range r.Errors {
		lines = append(lines, "error: "+msg)
	}
	for _, fr := range r.Files {
		switch {
		case fr.Failed():
			lines = append(lines, fmt.Sprintf("error: %s: %s", fr.Display, fr.ErrorMessage))
			continue
		case fr.Skipped:
			if verbose {
				lines = append(lines, fmt.Sprintf("skipped: %s: %s", fr.Display, fr.SkipReason))
			}
			continue
		}
		for _, f := range fr.Findings {
			lines = append(lines, f.String())
		}
		for _, w := range fr.Warnings {
			lines = append(lines, fmt.Sprintf("warning: %s:%d:%d: %s", fr.Display, w.Line, w.Col, w.Message))
		}
	}
	return lines
}
