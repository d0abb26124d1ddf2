package pv

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPage is the page served when a reference does not name one.
const DefaultPage = "index"

var namePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidName reports whether name is usable as a project name, page name or
// version token.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// ValidateName returns an ErrInvalidName error describing kind ("project",
// "page") if name is not lowercase alphanumeric with dashes.
func ValidateName(kind, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %s name %q must be lowercase alphanumeric with dashes only", ErrInvalidName, kind, name)
	}
	return nil
}

// ParseRef splits a "<project>_<version>" reference into its parts.
// A reference without "_" names the latest version and returns an empty version.
func ParseRef(ref string) (project, version string) {
	project, version, _ = strings.Cut(ref, "_")
	return project, version
}

// FormatRef is the inverse of ParseRef.
func FormatRef(project, version string) string {
	if version == "" {
		return project
	}
	return project + "_" + version
}
