package catalog

import (
	"context"
	"fmt"
	"sync"

	"pagevault/internal/pv"
)

// MemoryCatalog keeps project versions in memory. Use in tests.
type MemoryCatalog struct {
	mu       sync.RWMutex
	versions map[string]map[string]*pv.Project // name -> version -> record
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{versions: make(map[string]map[string]*pv.Project)}
}

func (c *MemoryCatalog) Publish(_ context.Context, project *pv.Project, base string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	byVersion, ok := c.versions[project.Name]
	latest := ""
	for _, p := range byVersion {
		if latest == "" || pv.CompareVersions(p, byVersion[latest]) > 0 {
			latest = p.Version
		}
	}
	if err := pv.CheckBase(project.Name, base, latest); err != nil {
		return err
	}
	if !ok {
		byVersion = make(map[string]*pv.Project)
		c.versions[project.Name] = byVersion
	}
	if _, exists := byVersion[project.Version]; exists {
		return fmt.Errorf("%w: %s", pv.ErrAlreadyExists, project.Ref())
	}
	byVersion[project.Version] = clone(project)
	return nil
}

func (c *MemoryCatalog) Get(_ context.Context, name, version string) (*pv.Project, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.versions[name][version]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pv.ErrNotFound, pv.FormatRef(name, version))
	}
	return clone(p), nil
}

func (c *MemoryCatalog) List(_ context.Context, name string) ([]*pv.Project, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*pv.Project, 0, len(c.versions[name]))
	for _, p := range c.versions[name] {
		result = append(result, clone(p))
	}
	return result, nil
}

func (c *MemoryCatalog) Projects(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.versions))
	for name := range c.versions {
		names = append(names, name)
	}
	return names, nil
}

func (c *MemoryCatalog) Close() error { return nil }

// clone copies a record so callers cannot mutate stored versions.
func clone(p *pv.Project) *pv.Project {
	out := *p
	out.Pages = append([]pv.Page{}, p.Pages...)
	return &out
}

var _ pv.Catalog = (*MemoryCatalog)(nil)
