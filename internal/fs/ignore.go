package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFile is the per-directory file listing patterns to skip on import.
const IgnoreFile = ".pvignore"

// ignorePattern is a parsed pattern and what it is matched against.
type ignorePattern struct {
	pattern   string
	matchPath bool // match the slash-separated relative path instead of the basename
}

// IgnoreMatcher decides which files of an import directory are skipped.
// A pattern containing '/' is matched against the path relative to the
// directory; any other pattern against the basename. Patterns use
// filepath.Match syntax.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher parses raw patterns. Blank lines and '#' comments are dropped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		m.patterns = append(m.patterns, ignorePattern{
			pattern:   filepath.ToSlash(raw),
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return m
}

// LoadIgnoreMatcher combines configured patterns with those in dir's
// IgnoreFile, if one exists.
func LoadIgnoreMatcher(dir string, configured []string) (*IgnoreMatcher, error) {
	fromFile, err := ParseIgnoreFile(filepath.Join(dir, IgnoreFile))
	if err != nil {
		return nil, err
	}
	all := append([]string{IgnoreFile}, configured...)
	return NewIgnoreMatcher(append(all, fromFile...)), nil
}

// Match reports whether relativePath should be skipped.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if relativePath == "" {
		return false
	}
	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		target := basename
		if p.matchPath {
			target = normalized
		}
		// A malformed pattern never matches.
		if ok, err := filepath.Match(p.pattern, target); err == nil && ok {
			return true
		}
	}
	return false
}

// Len returns the number of usable patterns.
func (m *IgnoreMatcher) Len() int { return len(m.patterns) }

// ParseIgnoreFile returns the raw lines of an ignore file.
// A missing file yields nil and no error.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
