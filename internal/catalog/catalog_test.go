package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"pagevault/internal/pv"
)

// backends returns a fresh instance of every Catalog implementation.
func backends(t *testing.T) map[string]pv.Catalog {
	t.Helper()

	fsCat, err := NewFileSystemCatalog(filepath.Join(t.TempDir(), "projects"))
	if err != nil {
		t.Fatalf("NewFileSystemCatalog() error = %v", err)
	}
	sqlCat, err := NewSQLiteCatalog(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteCatalog() error = %v", err)
	}
	t.Cleanup(func() { sqlCat.Close() })

	return map[string]pv.Catalog{
		"filesystem": fsCat,
		"memory":     NewMemoryCatalog(),
		"sqlite":     sqlCat,
	}
}

func record(name, version string, at time.Time, pages ...pv.Page) *pv.Project {
	if pages == nil {
		pages = []pv.Page{}
	}
	return &pv.Project{Name: name, Version: version, CreatedAt: at, Pages: pages}
}

var (
	t0      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hashA   = pv.Hash([]byte("a"))
	hashB   = pv.Hash([]byte("b"))
	pageIdx = pv.Page{Name: "index", Title: "Home", ContentHash: hashA}
	pageAbt = pv.Page{Name: "about", Title: "about", ContentHash: hashB}
)

func TestCatalog_PublishAndGet(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			in := record("site", "v-1", t0.Add(123*time.Nanosecond), pageIdx, pageAbt)

			if err := c.Publish(ctx, in, ""); err != nil {
				t.Fatalf("Publish() error = %v", err)
			}

			got, err := c.Get(ctx, "site", "v-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Name != "site" || got.Version != "v-1" {
				t.Errorf("Get() = %s, want site_v-1", got.Ref())
			}
			if !got.CreatedAt.Equal(in.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, in.CreatedAt)
			}
			if !slices.Equal(got.Pages, in.Pages) {
				t.Errorf("Pages = %+v, want %+v", got.Pages, in.Pages)
			}
		})
	}
}

func TestCatalog_PublishDuplicate(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := c.Publish(ctx, record("site", "v-1", t0, pageIdx), ""); err != nil {
				t.Fatalf("Publish() error = %v", err)
			}

			err := c.Publish(ctx, record("site", "v-1", t0.Add(time.Second), pageAbt), "v-1")
			if !errors.Is(err, pv.ErrAlreadyExists) {
				t.Fatalf("second Publish() error = %v, want ErrAlreadyExists", err)
			}

			got, err := c.Get(ctx, "site", "v-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if len(got.Pages) != 1 || got.Pages[0] != pageIdx {
				t.Errorf("original record was overwritten: %+v", got.Pages)
			}
		})
	}
}

func TestCatalog_GetMissing(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := c.Get(context.Background(), "site", "nope")
			if !errors.Is(err, pv.ErrNotFound) {
				t.Errorf("Get() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestCatalog_EmptyPages(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := c.Publish(ctx, record("empty", "v-1", t0), ""); err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			got, err := c.Get(ctx, "empty", "v-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Pages == nil || len(got.Pages) != 0 {
				t.Errorf("Pages = %#v, want empty non-nil slice", got.Pages)
			}
		})
	}
}

func TestCatalog_ListAndProjects(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, pub := range []struct {
				p    *pv.Project
				base string
			}{
				{record("site", "v-1", t0, pageIdx), ""},
				{record("site", "v-2", t0.Add(time.Second), pageIdx, pageAbt), "v-1"},
				{record("blog", "v-3", t0.Add(2*time.Second)), ""},
				// shares a prefix with "site"
				{record("site-2", "v-4", t0.Add(3*time.Second)), ""},
			} {
				if err := c.Publish(ctx, pub.p, pub.base); err != nil {
					t.Fatalf("Publish(%s) error = %v", pub.p.Ref(), err)
				}
			}

			versions, err := c.List(ctx, "site")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			var tokens []string
			for _, v := range versions {
				tokens = append(tokens, v.Version)
			}
			slices.Sort(tokens)
			if !slices.Equal(tokens, []string{"v-1", "v-2"}) {
				t.Errorf("List(site) versions = %v, want [v-1 v-2]", tokens)
			}

			names, err := c.Projects(ctx)
			if err != nil {
				t.Fatalf("Projects() error = %v", err)
			}
			slices.Sort(names)
			if !slices.Equal(names, []string{"blog", "site", "site-2"}) {
				t.Errorf("Projects() = %v, want [blog site site-2]", names)
			}
		})
	}
}

func TestCatalog_ListUnknownProject(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			versions, err := c.List(context.Background(), "ghost")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if versions == nil || len(versions) != 0 {
				t.Errorf("List() = %#v, want empty slice", versions)
			}
		})
	}
}

func TestCatalog_ReturnedRecordsAreCopies(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			in := record("site", "v-1", t0, pageIdx)
			if err := c.Publish(ctx, in, ""); err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			in.Pages[0].Title = "changed after publish"

			got, _ := c.Get(ctx, "site", "v-1")
			got.Pages[0].Title = "changed after get"

			again, err := c.Get(ctx, "site", "v-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if again.Pages[0].Title != "Home" {
				t.Errorf("stored record mutated: title = %q", again.Pages[0].Title)
			}
		})
	}
}

func TestCatalog_PublishChecksBase(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := c.Publish(ctx, record("site", "v-1", t0, pageIdx), ""); err != nil {
				t.Fatalf("Publish(v-1) error = %v", err)
			}
			if err := c.Publish(ctx, record("site", "v-2", t0.Add(time.Second), pageIdx, pageAbt), "v-1"); err != nil {
				t.Fatalf("Publish(v-2) error = %v", err)
			}

			// A writer still based on v-1 must not publish, even with a later timestamp.
			err := c.Publish(ctx, record("site", "v-3", t0.Add(time.Minute)), "v-1")
			if !errors.Is(err, pv.ErrConflict) {
				t.Fatalf("Publish(stale base) error = %v, want ErrConflict", err)
			}
			if _, err := c.Get(ctx, "site", "v-3"); !errors.Is(err, pv.ErrNotFound) {
				t.Errorf("rejected version was written: Get() error = %v", err)
			}

			err = c.Publish(ctx, record("site", "v-4", t0.Add(time.Minute)), "")
			if !errors.Is(err, pv.ErrAlreadyExists) {
				t.Errorf("Publish(no base) on existing project error = %v, want ErrAlreadyExists", err)
			}

			err = c.Publish(ctx, record("ghost", "v-1", t0), "v-0")
			if !errors.Is(err, pv.ErrConflict) {
				t.Errorf("Publish(base of missing project) error = %v, want ErrConflict", err)
			}
		})
	}
}

func TestCatalog_PublishBaseUsesCreationOrder(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			// "v-9" sorts after "v-10" lexically but is older.
			if err := c.Publish(ctx, record("site", "v-9", t0), ""); err != nil {
				t.Fatalf("Publish(v-9) error = %v", err)
			}
			if err := c.Publish(ctx, record("site", "v-10", t0.Add(time.Second)), "v-9"); err != nil {
				t.Fatalf("Publish(v-10) error = %v", err)
			}
			if err := c.Publish(ctx, record("site", "v-11", t0.Add(2*time.Second)), "v-10"); err != nil {
				t.Errorf("Publish(v-11 on v-10) error = %v", err)
			}
		})
	}
}
