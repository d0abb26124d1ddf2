package pv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// ProjectService is the project version store. Every mutation publishes a
// new immutable version holding the full resulting page list.
//
// Page mutations are checked optimistically: the latest version is read,
// the new page list is derived from it, and the catalog rejects the commit
// with ErrConflict if another version was published for the project in
// between, whether by this process or another one.
type ProjectService struct {
	blobs   *Blobs
	catalog Catalog
	logger  Logger
	clock   Clock
	tokens  TokenGenerator
}

// NewProjectService creates a ProjectService with the provided dependencies.
func NewProjectService(blobs *Blobs, catalog Catalog, logger Logger, clock Clock, tokens TokenGenerator) *ProjectService {
	return &ProjectService{
		blobs:   blobs,
		catalog: catalog,
		logger:  logger,
		clock:   clock,
		tokens:  tokens,
	}
}

// CreateProject creates the first version of a project from pages.
// Returns ErrAlreadyExists if any version exists for name.
// Pages sharing a name collapse into one; the last one wins.
func (s *ProjectService) CreateProject(ctx context.Context, name string, pages []PageInput) (*Project, error) {
	if err := ValidateName("project", name); err != nil {
		return nil, err
	}
	for _, p := range pages {
		if err := ValidateName("page", p.Name); err != nil {
			return nil, err
		}
	}

	existing, err := s.catalog.List(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking for existing project: %w", err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: a project named %q already exists", ErrAlreadyExists, name)
	}

	var stored []Page
	for _, p := range pages {
		checksum, err := s.blobs.Store(ctx, p.Content)
		if err != nil {
			return nil, fmt.Errorf("storing page %s: %w", p.Name, err)
		}
		title := p.Title
		if title == "" {
			title = p.Name
		}
		stored = upsertPage(stored, Page{Name: p.Name, Title: title, ContentHash: checksum})
	}

	project, err := s.publish(ctx, name, nil, stored)
	if err != nil {
		return nil, err
	}

	s.logger.Info("project created", "project", name, "version", project.Version, "pages", len(project.Pages))
	return project, nil
}

// LoadProject returns the given version of a project, or its latest version
// when version is empty. Returns ErrNotFound if either does not exist.
func (s *ProjectService) LoadProject(ctx context.Context, name, version string) (*Project, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: project %q", ErrNotFound, name)
	}
	if version == "" {
		return s.latest(ctx, name)
	}
	if !ValidName(version) {
		return nil, fmt.Errorf("%w: project %q version %q", ErrNotFound, name, version)
	}

	project, err := s.catalog.Get(ctx, name, version)
	if err != nil {
		return nil, fmt.Errorf("loading project %s: %w", FormatRef(name, version), err)
	}
	return project, nil
}

// LoadPage returns the named page of a project version (latest when version
// is empty). A page missing from an existing version yields nil and no error.
func (s *ProjectService) LoadPage(ctx context.Context, project, page, version string) (*Page, error) {
	p, err := s.LoadProject(ctx, project, version)
	if err != nil {
		return nil, err
	}
	found := p.Page(page)
	if found == nil {
		return nil, nil
	}
	out := *found
	return &out, nil
}

// ReadPage returns a page together with its content. An empty page name
// reads DefaultPage. Unlike LoadPage, a missing page is ErrNotFound.
func (s *ProjectService) ReadPage(ctx context.Context, project, page, version string) (*Page, []byte, error) {
	if page == "" {
		page = DefaultPage
	}
	p, err := s.LoadPage(ctx, project, page, version)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, fmt.Errorf("%w: page %q in project %s", ErrNotFound, page, FormatRef(project, version))
	}
	if p.ContentHash == "" {
		return p, nil, nil
	}
	content, err := s.LoadContent(ctx, project, p.ContentHash)
	if err != nil {
		return nil, nil, err
	}
	return p, content, nil
}

// ListProjects returns every project, sorted by name. With includeVersions
// each project contributes all of its versions, newest first; otherwise only
// its latest version.
func (s *ProjectService) ListProjects(ctx context.Context, includeVersions bool) ([]*Project, error) {
	names, err := s.catalog.Projects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	slices.Sort(names)

	var result []*Project
	for _, name := range names {
		versions, err := s.versions(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			continue
		}
		if includeVersions {
			result = append(result, versions...)
		} else {
			result = append(result, versions[0])
		}
	}
	return result, nil
}

// ListProjectVersions returns the version tokens of a project, newest first.
// An unknown project has no versions.
func (s *ProjectService) ListProjectVersions(ctx context.Context, name string) ([]string, error) {
	if !ValidName(name) {
		return []string{}, nil
	}
	versions, err := s.versions(ctx, name)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, len(versions))
	for i, v := range versions {
		tokens[i] = v.Version
	}
	return tokens, nil
}

// CreateOrUpdatePage stores content and publishes a new version of the
// project in which page points at it. The page keeps its position if it
// already existed and is appended otherwise.
func (s *ProjectService) CreateOrUpdatePage(ctx context.Context, project, page string, content []byte) (*Project, error) {
	if err := ValidateName("project", project); err != nil {
		return nil, err
	}
	if err := ValidateName("page", page); err != nil {
		return nil, err
	}

	base, err := s.latest(ctx, project)
	if err != nil {
		return nil, err
	}

	checksum, err := s.blobs.Store(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("storing page %s: %w", page, err)
	}

	pages := upsertPage(base.Pages, Page{Name: page, Title: page, ContentHash: checksum})
	next, err := s.commit(ctx, base, pages)
	if err != nil {
		return nil, err
	}

	s.logger.Info("page saved", "project", project, "page", page, "version", next.Version, "checksum", checksum)
	return next, nil
}

// DeletePage publishes a new version of the project without page.
// Deleting a page that does not exist still publishes a new version.
// Earlier versions and the page's content stay readable.
func (s *ProjectService) DeletePage(ctx context.Context, project, page string) (*Project, error) {
	if err := ValidateName("project", project); err != nil {
		return nil, err
	}

	base, err := s.latest(ctx, project)
	if err != nil {
		return nil, err
	}

	next, err := s.commit(ctx, base, removePage(base.Pages, page))
	if err != nil {
		return nil, err
	}

	s.logger.Info("page deleted", "project", project, "page", page, "version", next.Version)
	return next, nil
}

// LoadContent returns the content blob with the given hash.
// Blobs are shared by all projects; project only scopes the log entry.
func (s *ProjectService) LoadContent(ctx context.Context, project, checksum string) ([]byte, error) {
	s.logger.Debug("loading content", "project", project, "checksum", checksum)
	return s.blobs.Load(ctx, checksum)
}

// latest resolves the most recently created version of a project.
func (s *ProjectService) latest(ctx context.Context, name string) (*Project, error) {
	versions, err := s.catalog.List(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("listing versions of %s: %w", name, err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: project %q", ErrNotFound, name)
	}
	return Latest(versions), nil
}

// versions returns all versions of a project, newest first.
func (s *ProjectService) versions(ctx context.Context, name string) ([]*Project, error) {
	versions, err := s.catalog.List(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("listing versions of %s: %w", name, err)
	}
	slices.SortFunc(versions, func(a, b *Project) int {
		return CompareVersions(b, a)
	})
	return versions, nil
}

// commit publishes pages as the version following base, provided base is
// still the latest version of the project when the catalog writes it.
func (s *ProjectService) commit(ctx context.Context, base *Project, pages []Page) (*Project, error) {
	next, err := s.publish(ctx, base.Name, base, pages)
	if errors.Is(err, ErrConflict) {
		s.logger.Warn("concurrent update rejected", "project", base.Name, "base", base.Version)
	}
	return next, err
}

// publish writes a new version on top of base, or the first version of the
// project when base is nil. The new version is created strictly after base
// so it becomes the latest even when clocks disagree.
func (s *ProjectService) publish(ctx context.Context, name string, base *Project, pages []Page) (*Project, error) {
	now := s.clock.Now().UTC()
	baseVersion := ""
	if base != nil {
		baseVersion = base.Version
		if !now.After(base.CreatedAt) {
			now = base.CreatedAt.Add(time.Nanosecond)
		}
	}
	if pages == nil {
		pages = []Page{}
	}

	project := &Project{
		Name:      name,
		Version:   s.tokens.New(now),
		CreatedAt: now,
		Pages:     pages,
	}
	if err := s.catalog.Publish(ctx, project, baseVersion); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyExists) && base != nil:
			return nil, fmt.Errorf("%w: version %s was published concurrently", ErrConflict, project.Ref())
		case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
			return nil, err
		}
		return nil, fmt.Errorf("publishing %s: %w", project.Ref(), err)
	}
	return project, nil
}
