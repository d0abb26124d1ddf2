package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.log"})
		if m.Len() != 1 {
			t.Fatalf("expected 1 pattern, got %d", m.Len())
		}
		if m.patterns[0].pattern != "*.log" {
			t.Errorf("expected *.log, got %s", m.patterns[0].pattern)
		}
	})

	t.Run("classifies path vs basename patterns", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.log", "drafts/old"})
		if m.patterns[0].matchPath {
			t.Error("*.log should not be a path pattern")
		}
		if !m.patterns[1].matchPath {
			t.Error("drafts/old should be a path pattern")
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name         string
		patterns     []string
		relativePath string
		want         bool
	}{
		{name: "basename glob", patterns: []string{"*.bak"}, relativePath: "index.bak", want: true},
		{name: "basename glob in subdirectory", patterns: []string{"*.bak"}, relativePath: filepath.Join("sub", "index.bak"), want: true},
		{name: "different extension", patterns: []string{"*.bak"}, relativePath: "index.html", want: false},
		{name: "exact basename", patterns: []string{"README.md"}, relativePath: "README.md", want: true},
		{name: "path pattern", patterns: []string{"drafts/*.html"}, relativePath: filepath.Join("drafts", "a.html"), want: true},
		{name: "path pattern wrong dir", patterns: []string{"drafts/*.html"}, relativePath: filepath.Join("final", "a.html"), want: false},
		{name: "question mark", patterns: []string{"?.txt"}, relativePath: "a.txt", want: true},
		{name: "question mark is one char", patterns: []string{"?.txt"}, relativePath: "ab.txt", want: false},
		{name: "character class", patterns: []string{"*.[oa]"}, relativePath: "main.o", want: true},
		{name: "malformed pattern never matches", patterns: []string{"[", "*.log"}, relativePath: "x.log", want: true},
		{name: "no patterns", patterns: nil, relativePath: "anything.txt", want: false},
		{name: "empty path", patterns: []string{"*"}, relativePath: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher(tt.patterns)
			if got := m.Match(tt.relativePath); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.relativePath, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads raw lines", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), IgnoreFile)
		if err := os.WriteFile(path, []byte("*.bak\n# comment\n\n*.tmp\ndrafts/old\n"), 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}

		lines, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(lines) != 5 {
			t.Fatalf("expected 5 raw lines, got %d", len(lines))
		}
		if m := NewIgnoreMatcher(lines); m.Len() != 3 {
			t.Errorf("expected 3 parsed patterns, got %d", m.Len())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		lines, err := ParseIgnoreFile(filepath.Join(t.TempDir(), IgnoreFile))
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if lines != nil {
			t.Errorf("expected nil, got %v", lines)
		}
	})
}

func TestLoadIgnoreMatcher(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, IgnoreFile), []byte("*.draft\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadIgnoreMatcher(dir, []string{"*.bak"})
	if err != nil {
		t.Fatalf("LoadIgnoreMatcher() error = %v", err)
	}
	for path, want := range map[string]bool{
		"a.draft":  true,
		"a.bak":    true,
		IgnoreFile: true,
		"a.html":   false,
	} {
		if got := m.Match(path); got != want {
			t.Errorf("Match(%q) = %v, want %v", path, got, want)
		}
	}
}
