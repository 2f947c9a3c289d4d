package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/capilint/internal/source"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "capilint"

	// DefaultWorkers is the number of files scanned concurrently.
	DefaultWorkers = 10

	// DefaultFileTimeout bounds the time spent on one file. Even very large
	// generated sources finish in well under a second.
	DefaultFileTimeout = 30 * time.Second

	// DefaultMaxFileSize is the largest file read, in bytes.
	DefaultMaxFileSize = 8 * 1024 * 1024 // 8MiB
)

// Config holds all configuration options for a capilint run.
// It is populated from CLI flags and the config file and passed through
// the application rather than kept in global state.
type Config struct {
	// Paths are the files and directories to check.
	Paths []string

	// Workers is the number of files scanned concurrently.
	Workers int

	// FileTimeout is the wall-clock budget for one file. Zero disables it.
	FileTimeout time.Duration

	// Verbose enables debug logging and lists skipped files.
	Verbose bool

	// Quiet suppresses the summary and everything below error level.
	Quiet bool

	// LogJSON switches the logger to the JSON handler.
	LogJSON bool

	// NoColor disables colored diagnostics even on a terminal.
	NoColor bool

	// ConfigFilePath is the explicit --config path. When empty the file
	// is searched for (see FindConfigFile).
	ConfigFilePath string

	// File is the loaded configuration file, if any.
	File *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output.
	MarkdownReport bool

	// ReportFile is the output file path for the report. Directories are
	// created when missing. Empty means stdout.
	ReportFile string

	// Tee also writes text diagnostics to stdout when ReportFile is set.
	Tee bool

	// Text scans files that look binary.
	Text bool

	// Generated scans files produced by Cython, which are skipped by default.
	Generated bool

	// Archives enables scanning inside tarballs, zips and wheels.
	Archives bool

	// MaxFileSize is the largest file or archive member scanned, in bytes.
	MaxFileSize int64

	// Extensions replaces the default list of scanned suffixes.
	Extensions []string

	// Exclude holds glob patterns for paths that are not scanned.
	Exclude []string

	// RulesFile is an extra YAML rule table merged into the defaults.
	RulesFile string

	// NoDefaultRules drops the embedded rule table.
	NoDefaultRules bool

	// Disable lists rule names or categories switched off for every path.
	Disable []string

	// DBDir is the directory holding the history database.
	// Defaults to the XDG data directory (~/.local/share/capilint on Linux).
	DBDir string

	// SaveToDB stores the run in the history database.
	SaveToDB bool

	// Label names the run in history. Defaults to the joined input paths.
	Label string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Workers:     DefaultWorkers,
		FileTimeout: DefaultFileTimeout,
		Archives:    true,
		MaxFileSize: DefaultMaxFileSize,
		Extensions:  append([]string(nil), source.DefaultExtensions...),
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory for capilint.
// On Linux: ~/.local/share/capilint
// On macOS: ~/Library/Application Support/capilint
// On Windows: %LOCALAPPDATA%\capilint
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for capilint.
// On Linux: ~/.config/capilint
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid. It returns the first
// problem found as one of the sentinel errors in this package.
func (c *Config) Validate() error {
	if len(c.Paths) == 0 {
		return ErrNoTarget
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.FileTimeout < 0 {
		return ErrInvalidFileTimeout
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.Verbose && c.Quiet {
		return ErrConflictingVerbosity
	}

	if c.MaxFileSize <= 0 {
		return ErrInvalidMaxFileSize
	}

	return nil
}

// ApplyFile merges the settings of f into c. Command-line flags that
// should override the file are applied afterwards by the caller.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.File = f

	if len(f.Defaults.Extensions) > 0 {
		c.Extensions = append([]string(nil), f.Defaults.Extensions...)
	}
	c.Exclude = append(c.Exclude, f.Defaults.Exclude...)
	c.Disable = append(c.Disable, f.Defaults.Disable...)

	if c.RulesFile == "" {
		c.RulesFile = f.RulesFile
	}
	if f.NoDefaultRules {
		c.NoDefaultRules = true
	}
}
