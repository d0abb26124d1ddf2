package pv

import (
	"context"
	"fmt"
)

// Catalog persists project versions. Implementations only store and
// enumerate records; the only ordering they apply is the base check in Publish.
type Catalog interface {
	// Publish persists project as the version following base, the version
	// it was derived from. An empty base creates the project. Checking base
	// and writing the record happen as one step, also across processes
	// sharing the catalog, and readers see the complete record or nothing.
	//
	// Returns ErrConflict if base is no longer the latest version (see
	// Latest), and ErrAlreadyExists if base is empty and the project exists
	// or a record for the same project and version exists.
	Publish(ctx context.Context, project *Project, base string) error

	// Get returns one version. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, name, version string) (*Project, error)

	// List returns every version of the named project in no particular order.
	// A project without versions yields an empty slice and no error.
	List(ctx context.Context, name string) ([]*Project, error)

	// Projects returns the distinct names of all projects with at least one version.
	Projects(ctx context.Context) ([]string, error)

	// Close releases any resources held by the catalog.
	Close() error
}

// CheckBase validates base against latest, the newest existing version of
// project name ("" if it has none). Catalogs call it inside the locked
// section of Publish.
func CheckBase(name, base, latest string) error {
	switch {
	case base == "" && latest != "":
		return fmt.Errorf("%w: a project named %q already exists", ErrAlreadyExists, name)
	case base != latest:
		return fmt.Errorf("%w: project %q changed from version %s to %s", ErrConflict, name, base, latest)
	}
	return nil
}

// LatestVersion returns the token of the newest of versions, or "".
func LatestVersion(versions []*Project) string {
	if latest := Latest(versions); latest != nil {
		return latest.Version
	}
	return ""
}
