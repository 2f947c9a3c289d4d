package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and let callers use
// errors.Is() while still giving human-readable messages.
var (
	// ErrNoTarget is returned when no file or directory is given.
	ErrNoTarget = errors.New("no target specified: provide at least one file or directory")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidFileTimeout is returned when the per-file timeout is negative.
	// Use 0 to disable the limit.
	ErrInvalidFileTimeout = errors.New("invalid file timeout: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingVerbosity is returned when both --verbose and --quiet
	// are specified.
	ErrConflictingVerbosity = errors.New("conflicting verbosity: --verbose and --quiet cannot be used together")

	// ErrInvalidMaxFileSize is returned when the file size limit is not positive.
	ErrInvalidMaxFileSize = errors.New("invalid max file size: must be positive")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
