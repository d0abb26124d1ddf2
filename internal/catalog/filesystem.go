package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pagevault/internal/pv"
)

const recordExt = ".json"

const (
	lockRetryInterval = 10 * time.Millisecond
	// A lock older than this is left over from a crashed writer.
	lockStaleAfter = 30 * time.Second
)

// FileSystemCatalog stores one JSON record per project version:
//
//	<root>/
//	  <project>_<version>.json
//
// Records are written to a temp file and hard-linked into place. Linking
// fails if the destination exists, so two writers can never overwrite each
// other's version and a reader never sees a partial record. Publish holds
// <root>/.<project>.lock, created with O_EXCL, while it checks the base
// version and links, so writers in different processes are serialized.
type FileSystemCatalog struct {
	root string
}

// NewFileSystemCatalog creates a filesystem catalog rooted at root.
func NewFileSystemCatalog(root string) (*FileSystemCatalog, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}
	return &FileSystemCatalog{root: root}, nil
}

func (c *FileSystemCatalog) pathFor(name, version string) string {
	return filepath.Join(c.root, pv.FormatRef(name, version)+recordExt)
}

// Publish writes project as a new record on top of base.
func (c *FileSystemCatalog) Publish(ctx context.Context, project *pv.Project, base string) error {
	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", project.Ref(), err)
	}

	tmpFile, err := os.CreateTemp(c.root, ".tmp-*")
	if err != nil {
		return pv.NewStorageError("creating temp file", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return pv.NewStorageError("writing record", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return pv.NewStorageError("syncing record", err)
	}
	if err := tmpFile.Close(); err != nil {
		return pv.NewStorageError("closing temp file", err)
	}

	unlock, err := c.lock(ctx, project.Name)
	if err != nil {
		return err
	}
	defer unlock()

	versions, err := c.List(ctx, project.Name)
	if err != nil {
		return err
	}
	if err := pv.CheckBase(project.Name, base, pv.LatestVersion(versions)); err != nil {
		return err
	}

	if err := os.Link(tmpPath, c.pathFor(project.Name, project.Version)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", pv.ErrAlreadyExists, project.Ref())
		}
		return pv.NewStorageError("publishing record", err)
	}
	return nil
}

// lock acquires the project's lock file, waiting while another writer
// holds it. The returned func releases the lock.
func (c *FileSystemCatalog) lock(ctx context.Context, name string) (func(), error) {
	path := filepath.Join(c.root, "."+name+".lock")
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, pv.NewStorageError("locking project "+name, err)
		}

		if info, err := os.Stat(path); err == nil && time.Since(info.ModTime()) > lockStaleAfter {
			os.Remove(path)
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock on project %s: %w", name, ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}

// Get reads the record for one version.
func (c *FileSystemCatalog) Get(_ context.Context, name, version string) (*pv.Project, error) {
	return c.read(c.pathFor(name, version))
}

// List reads every record of the named project.
func (c *FileSystemCatalog) List(_ context.Context, name string) ([]*pv.Project, error) {
	refs, err := c.refs()
	if err != nil {
		return nil, err
	}

	result := []*pv.Project{}
	for _, ref := range refs {
		if ref.name != name {
			continue
		}
		p, err := c.read(filepath.Join(c.root, ref.file))
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

// Projects returns the distinct project names found in the root.
func (c *FileSystemCatalog) Projects(_ context.Context) ([]string, error) {
	refs, err := c.refs()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	names := []string{}
	for _, ref := range refs {
		if !seen[ref.name] {
			seen[ref.name] = true
			names = append(names, ref.name)
		}
	}
	return names, nil
}

// Close is a no-op.
func (c *FileSystemCatalog) Close() error { return nil }

type recordRef struct {
	file    string
	name    string
	version string
}

// refs lists the record files in the root. Hidden files (including temp
// files of in-flight publishes) and files not shaped like a record are skipped.
func (c *FileSystemCatalog) refs() ([]recordRef, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, pv.NewStorageError("listing catalog", err)
	}

	var refs []recordRef
	for _, entry := range entries {
		file := entry.Name()
		if entry.IsDir() || strings.HasPrefix(file, ".") || !strings.HasSuffix(file, recordExt) {
			continue
		}
		name, version, ok := strings.Cut(strings.TrimSuffix(file, recordExt), "_")
		if !ok || !pv.ValidName(name) || !pv.ValidName(version) {
			continue
		}
		refs = append(refs, recordRef{file: file, name: name, version: version})
	}
	return refs, nil
}

func (c *FileSystemCatalog) read(path string) (*pv.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", pv.ErrNotFound, strings.TrimSuffix(filepath.Base(path), recordExt))
		}
		return nil, pv.NewStorageError("reading record", err)
	}

	var p pv.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, pv.NewStorageError("decoding "+filepath.Base(path), err)
	}

	// Records written without a creation time are ordered by file mtime.
	if p.CreatedAt.IsZero() {
		info, err := os.Stat(path)
		if err != nil {
			return nil, pv.NewStorageError("reading record", err)
		}
		p.CreatedAt = info.ModTime().UTC()
	}
	if p.Pages == nil {
		p.Pages = []pv.Page{}
	}
	return &p, nil
}

var _ pv.Catalog = (*FileSystemCatalog)(nil)
