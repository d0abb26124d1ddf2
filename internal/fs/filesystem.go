// Package fs finds the files of a directory to import as project pages.
package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PageFile is a regular file that becomes one page on import.
type PageFile struct {
	Path     string // absolute path
	PageName string // file name without extension
	Size     int64
}

// OSFilesystemManager reads import directories from the real filesystem.
type OSFilesystemManager struct {
	ignore []string // patterns applied to every directory
}

// NewOSFilesystemManager creates a manager applying ignorePatterns in
// addition to each directory's own IgnoreFile.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignorePatterns}
}

// ResolveDir returns the absolute, cleaned form of rawPath, which must be a directory.
func (m *OSFilesystemManager) ResolveDir(rawPath string) (string, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", absPath)
	}
	return absPath, nil
}

// FindPages lists the regular files directly inside dir, sorted by name.
// Hidden files, subdirectories, special files and ignored files are skipped.
func (m *OSFilesystemManager) FindPages(dir string) ([]PageFile, error) {
	matcher, err := LoadIgnoreMatcher(dir, m.ignore)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var pages []PageFile
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !entry.Type().IsRegular() || matcher.Match(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		pages = append(pages, PageFile{
			Path:     filepath.Join(dir, name),
			PageName: strings.TrimSuffix(name, filepath.Ext(name)),
			Size:     info.Size(),
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	return pages, nil
}

// ReadFile returns the content of a page file.
func (m *OSFilesystemManager) ReadFile(p PageFile) ([]byte, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.Path, err)
	}
	return data, nil
}

// ProjectName returns the project a directory imports into: its base name.
func ProjectName(dir string) string {
	return filepath.Base(filepath.Clean(dir))
}
