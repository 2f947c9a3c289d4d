package source

import (
	"path"
	"regexp"
	"strings"
)

// MatchPattern reports whether the slash-separated relative path rel
// matches an exclude pattern.
//
// Examples:
//   - "vendor/*" matches "vendor/a.c" and "vendor/sub/b.c"
//   - "*.inc" matches "src/table.inc"
//   - "**/generated_*.c" matches "a/b/generated_x.c"
//   - "tests/test_?.c" matches "tests/test_1.c"
func MatchPattern(pattern, rel string) bool {
	pattern = strings.TrimPrefix(pattern, "./")

	// "dir/*" excludes everything below dir.
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok && !strings.ContainsAny(prefix, "*?[") {
		if strings.HasPrefix(rel, prefix+"/") || rel == prefix {
			return true
		}
	}

	if strings.Contains(pattern, "**") {
		return globRegexp(pattern).MatchString(rel)
	}

	if matched, err := path.Match(pattern, rel); err == nil && matched {
		return true
	}

	// Patterns without a slash also match the base name.
	if !strings.Contains(pattern, "/") {
		matched, err := path.Match(pattern, path.Base(rel))
		return err == nil && matched
	}
	return false
}

// globRegexp translates a pattern with "**" into a regular expression.
func globRegexp(pattern string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*\*/`, `(?:.*/)?`)
	escaped = strings.ReplaceAll(escaped, `\*\*`, `.*`)
	escaped = strings.ReplaceAll(escaped, `\*`, `[^/]*`)
	escaped = strings.ReplaceAll(escaped, `\?`, `[^/]`)
	return regexp.MustCompile("^" + escaped + "$")
}
