package pv

import (
	"slices"
	"strings"
	"time"
)

// Page is a named reference to a content blob within one project version.
// Raw content is never kept on a Page; it is fetched by ContentHash.
type Page struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	ContentHash string `json:"content_hash,omitempty"` // empty only for a page that was never persisted
}

// PageInput is a page as supplied by a caller creating a project.
type PageInput struct {
	Name    string
	Title   string // defaults to Name
	Content []byte
}

// Project is one immutable version of a project. Once published to a
// Catalog it is never modified; every mutation publishes a new Project.
type Project struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Pages     []Page    `json:"pages"`
}

// Page returns the page called name, or nil.
func (p *Project) Page(name string) *Page {
	for i := range p.Pages {
		if p.Pages[i].Name == name {
			return &p.Pages[i]
		}
	}
	return nil
}

// Ref returns the "<project>_<version>" reference for this version.
func (p *Project) Ref() string {
	return FormatRef(p.Name, p.Version)
}

// CompareVersions orders versions by creation time. Equal timestamps only
// arise from clocks that disagree across processes; the token breaks the
// tie so every backend picks the same latest version.
func CompareVersions(a, b *Project) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.Version, b.Version)
}

// Latest returns the newest of versions, or nil if there are none.
func Latest(versions []*Project) *Project {
	if len(versions) == 0 {
		return nil
	}
	return slices.MaxFunc(versions, CompareVersions)
}

// upsertPage replaces the page with the same name in place, or appends it.
// The input slice is not modified.
func upsertPage(pages []Page, page Page) []Page {
	out := make([]Page, 0, len(pages)+1)
	replaced := false
	for _, p := range pages {
		if p.Name == page.Name {
			out = append(out, page)
			replaced = true
			continue
		}
		out = append(out, p)
	}
	if !replaced {
		out = append(out, page)
	}
	return out
}

// removePage returns pages without the page called name.
func removePage(pages []Page, name string) []Page {
	out := make([]Page, 0, len(pages))
	for _, p := range pages {
		if p.Name != name {
			out = append(out, p)
		}
	}
	return out
}
