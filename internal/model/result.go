package model

import (
	"fmt"
)

// ScanState is the position of a file in the per-file state machine:
// Idle, Tokenizing, Scanning, Reporting, Done.
type ScanState int

const (
	// StateIdle is the state before any work on the file.
	StateIdle ScanState = iota
	// StateTokenizing is entered when the lexer is built.
	StateTokenizing
	// StateScanning is entered when call sites are examined.
	StateScanning
	// StateReporting is entered when findings are finalized.
	StateReporting
	// StateDone is terminal and reached even with zero findings.
	StateDone
)

// String returns the state name.
func (s ScanState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTokenizing:
		return "tokenizing"
	case StateScanning:
		return "scanning"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ScanState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so stored reports can
// be read back.
func (s *ScanState) UnmarshalText(text []byte) error {
	for state := StateIdle; state <= StateDone; state++ {
		if state.String() == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown scan state %q", text)
}

// Warning is a recoverable problem found while lexing a file.
type Warning struct {
	Line    int    `json:"line"`
	Col     int    `json:"column"`
	Message string `json:"message"`
}

// ScanError wraps a failure that aborted the scan of a single file.
type ScanError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScanError) Unwrap() error {
	return e.Err
}

// FileResult is everything learned about one input file.
//
// Source and Lexer state are transient and never serialized; the pipeline
// drops them once the file reaches StateDone.
type FileResult struct {
	// Path is the file on disk, or the archive for archive members.
	Path string `json:"path"`

	// Display is the name used in diagnostics ("archive!member" for members).
	Display string `json:"display"`

	// Hash is the hex SHA3-256 of the raw content.
	Hash string `json:"sha3,omitempty"`

	// Size is the raw content length in bytes.
	Size int64 `json:"size"`

	// State is the last state reached.
	State ScanState `json:"state"`

	// Findings are in source order.
	Findings []Finding `json:"findings,omitempty"`

	// Warnings are lex errors; scanning continued past them.
	Warnings []Warning `json:"warnings,omitempty"`

	// Skipped is set for binary or generated files and oversized inputs.
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`

	// TimedOut is set when the per-file budget ran out. Partial findings
	// are discarded in that case.
	TimedOut bool `json:"timed_out,omitempty"`

	// Err aborted the scan of this file.
	Err error `json:"-"`

	// ErrorMessage is the string form of Err for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// Source is the decoded file content while the file is in flight.
	Source []byte `json:"-"`
}

// NewFileResult returns an idle result for the given input.
func NewFileResult(path, display string) *FileResult {
	if display == "" {
		display = path
	}
	return &FileResult{Path: path, Display: display, State: StateIdle}
}

// SetError records err as the reason this file's scan stopped.
func (r *FileResult) SetError(err error) {
	if err == nil {
		return
	}
	r.Err = err
	r.ErrorMessage = err.Error()
}

// Skip marks the file as intentionally not scanned.
func (r *FileResult) Skip(reason string) {
	r.Skipped = true
	r.SkipReason = reason
}

// Failed reports whether the scan of this file aborted.
func (r *FileResult) Failed() bool {
	return r.ErrorMessage != ""
}

// Scanned reports whether the file was fully examined.
func (r *FileResult) Scanned() bool {
	return !r.Skipped && !r.Failed() && r.State == StateDone
}
