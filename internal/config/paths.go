package config

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/nao1215/capilint/internal/rules"
	"github.com/nao1215/capilint/internal/source"
)

// PathConfig holds settings for the files under one directory.
type PathConfig struct {
	// Exclude holds glob patterns, relative to the directory, for files
	// that are not scanned.
	Exclude []string `yaml:"exclude,omitempty"`

	// Disable lists rule names or categories switched off under the
	// directory.
	Disable []string `yaml:"disable,omitempty"`

	// Extensions replaces the scanned suffixes. Only honored in defaults.
	Extensions []string `yaml:"extensions,omitempty"`
}

// File represents the structure of the .capilint.yaml configuration file.
type File struct {
	// Paths maps directories to their settings. Relative keys are
	// resolved against the directory holding the config file.
	Paths map[string]PathConfig `yaml:"paths,omitempty"`

	// Defaults apply to every file.
	Defaults PathConfig `yaml:"defaults,omitempty"`

	// Rules are extra rule entries.
	Rules []rules.SymbolRule `yaml:"rules,omitempty"`

	// RulesFile is an extra rule table.
	RulesFile string `yaml:"rules_file,omitempty"`

	// NoDefaultRules drops the embedded rule table.
	NoDefaultRules bool `yaml:"no_default_rules,omitempty"`

	// base is the directory relative keys are resolved against.
	base string
}

// GetPathConfig returns the settings for a file. Defaults come first,
// then every matching directory from the shortest to the longest, so a
// more specific directory adds to what its parents set.
func (cf *File) GetPathConfig(path string) PathConfig {
	result := PathConfig{
		Exclude: slices.Clone(cf.Defaults.Exclude),
		Disable: slices.Clone(cf.Defaults.Disable),
	}

	for _, dir := range cf.matchingDirs(path) {
		pc := cf.Paths[dir]
		result.Exclude = append(result.Exclude, pc.Exclude...)
		result.Disable = append(result.Disable, pc.Disable...)
	}
	slices.Sort(result.Disable)
	result.Disable = slices.Compact(result.Disable)
	return result
}

// Excluded reports whether path matches an exclude pattern of one of the
// directories it lives in. Patterns are matched against the path relative
// to that directory.
func (cf *File) Excluded(path string) bool {
	abs := absSlash(path)
	for _, dir := range cf.matchingDirs(path) {
		rel := strings.TrimPrefix(abs, cf.resolve(dir)+"/")
		for _, pattern := range cf.Paths[dir].Exclude {
			if source.MatchPattern(pattern, rel) {
				return true
			}
		}
	}
	return false
}

// matchingDirs returns the Paths keys that contain path, shortest first.
func (cf *File) matchingDirs(path string) []string {
	abs := absSlash(path)
	var dirs []string
	for dir := range cf.Paths {
		root := cf.resolve(dir)
		if abs == root || strings.HasPrefix(abs, root+"/") || root == "/" {
			dirs = append(dirs, dir)
		}
	}
	slices.SortFunc(dirs, func(a, b string) int {
		if d := len(cf.resolve(a)) - len(cf.resolve(b)); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	return dirs
}

// resolve returns the absolute slash form of a Paths key.
func (cf *File) resolve(dir string) string {
	if !filepath.IsAbs(dir) && cf.base != "" {
		dir = filepath.Join(cf.base, dir)
	}
	return absSlash(dir)
}

func absSlash(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.ToSlash(filepath.Clean(path))
}
