package source

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/karrick/godirwalk"
)

// DefaultExtensions are the file extensions scanned inside directories and
// archives.
var DefaultExtensions = []string{".c", ".h", ".cc", ".cpp", ".cxx", ".hpp", ".hh", ".pyx", ".pxd", ".pxi", ".inc"}

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{".git", ".hg", ".tox", ".venv", "node_modules", "__pycache__"}

// Options controls which files are collected.
type Options struct {
	// Extensions lists the scanned suffixes, compared case-insensitively.
	Extensions []string

	// SkipDirs lists directory base names that are not walked.
	SkipDirs []string

	// Exclude holds glob patterns matched against paths relative to the
	// command-line argument (see MatchPattern).
	Exclude []string

	// Excluded is an extra per-path filter, called with the path on disk.
	Excluded func(path string) bool

	// Archives enables scanning inside tarballs, zips and wheels.
	Archives bool

	// MaxFileSize is the largest archive member read into memory.
	// Zero means no limit.
	MaxFileSize int64
}

// Collector expands paths into inputs.
type Collector struct {
	opts   Options
	logger *slog.Logger
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithLogger sets the logger used for debug output while walking.
func WithLogger(logger *slog.Logger) CollectorOption {
	return func(c *Collector) {
		c.logger = logger
	}
}

// NewCollector returns a Collector. Empty Extensions and SkipDirs fall back
// to the defaults.
func NewCollector(opts Options, options ...CollectorOption) *Collector {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.SkipDirs == nil {
		opts.SkipDirs = DefaultSkipDirs
	}
	c := &Collector{opts: opts}
	for _, opt := range options {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Collect returns the inputs found under paths, in argument order and, for
// directories, in lexical order. Problems with individual paths are
// returned as *PathError values and never stop collection.
func (c *Collector) Collect(paths []string) ([]Input, []error) {
	var (
		inputs []Input
		errs   []error
	)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, &PathError{Path: p, Err: err})
			continue
		}

		if !info.IsDir() {
			// Explicit files are scanned whatever their extension.
			found, err := c.collectFile(p, p, info.Size(), true)
			if err != nil {
				errs = append(errs, &PathError{Path: p, Err: err})
			}
			inputs = append(inputs, found...)
			continue
		}

		found, walkErrs := c.walk(p)
		errs = append(errs, walkErrs...)
		if len(found) == 0 && len(walkErrs) == 0 {
			errs = append(errs, &PathError{Path: p, Err: ErrNoMatchingFiles})
		}
		inputs = append(inputs, found...)
	}
	return inputs, errs
}

func (c *Collector) walk(root string) ([]Input, []error) {
	var (
		inputs []Input
		errs   []error
	)
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if osPathname == root {
				return nil
			}
			rel := relSlash(root, osPathname)

			if de.IsDir() {
				if slices.Contains(c.opts.SkipDirs, de.Name()) || c.excluded(rel, osPathname) {
					c.logger.Debug("skipping directory", "path", osPathname)
					return godirwalk.SkipThis
				}
				return nil
			}
			if c.excluded(rel, osPathname) {
				c.logger.Debug("excluded", "path", osPathname)
				return nil
			}
			if !c.opts.Archives || !IsArchive(de.Name()) {
				if !c.hasExtension(de.Name()) {
					return nil
				}
			}

			info, err := os.Stat(osPathname)
			if err != nil {
				errs = append(errs, &PathError{Path: osPathname, Err: err})
				return nil
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			found, err := c.collectFile(osPathname, root, info.Size(), false)
			if err != nil {
				errs = append(errs, &PathError{Path: osPathname, Err: err})
			}
			inputs = append(inputs, found...)
			return nil
		},
		ErrorCallback: func(osPathname string, err error) godirwalk.ErrorAction {
			errs = append(errs, &PathError{Path: osPathname, Err: err})
			return godirwalk.SkipNode
		},
		Unsorted: false,
	})
	if err != nil {
		errs = append(errs, &PathError{Path: root, Err: err})
	}
	return inputs, errs
}

// collectFile returns the inputs for a single file: the file itself, or its
// matching members when it is an archive.
func (c *Collector) collectFile(path, root string, size int64, explicit bool) ([]Input, error) {
	if !c.opts.Archives || !IsArchive(path) {
		return []Input{{Path: path, Root: root, Size: size}}, nil
	}

	var inputs []Input
	err := readArchive(path, c.opts.MaxFileSize,
		func(name string) bool {
			return c.hasExtension(name) && !c.excluded(name, path+"!"+name)
		},
		func(name string, memberSize int64, data []byte) {
			inputs = append(inputs, Input{Path: path, Member: name, Root: root, Size: memberSize, data: data})
		},
	)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 && explicit {
		return nil, ErrNoMatchingFiles
	}
	c.logger.Debug("opened archive", "path", path, "members", len(inputs))
	return inputs, nil
}

func (c *Collector) hasExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range c.opts.Extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func (c *Collector) excluded(rel, path string) bool {
	for _, pattern := range c.opts.Exclude {
		if MatchPattern(pattern, rel) {
			return true
		}
	}
	return c.opts.Excluded != nil && c.opts.Excluded(path)
}

// relSlash returns target relative to root with forward slashes.
func relSlash(root, target string) string {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}
