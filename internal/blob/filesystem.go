package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pagevault/internal/pv"
)

// FileSystemStore keeps each blob in its own file, fanned out by the first
// two characters of the checksum:
//
//	<root>/
//	  ab/
//	    ab12...    (content named by SHA-256)
//
// Files are written to a temp file in the same directory and renamed into
// place, so a partially written blob is never visible.
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates a filesystem blob store rooted at root.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

func (s *FileSystemStore) pathFor(checksum string) string {
	return filepath.Join(s.root, checksum[:2], checksum)
}

// Put stores content under checksum. Existing content is left untouched.
func (s *FileSystemStore) Put(_ context.Context, checksum string, r io.Reader, size int64) error {
	if !pv.ValidHash(checksum) {
		return fmt.Errorf("invalid checksum %q", checksum)
	}
	destPath := s.pathFor(checksum)

	if _, err := os.Stat(destPath); err == nil {
		// Drain the reader so callers see the same size check either way.
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return pv.NewStorageError("creating blob directory", err)
	}
	return s.writeFile(destPath, r, size)
}

// Get writes the content stored under checksum to w.
func (s *FileSystemStore) Get(_ context.Context, checksum string, w io.Writer) error {
	if !pv.ValidHash(checksum) {
		return fmt.Errorf("%w: content %q", pv.ErrNotFound, checksum)
	}

	f, err := os.Open(s.pathFor(checksum))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: content %s", pv.ErrNotFound, checksum)
		}
		return pv.NewStorageError("opening blob", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return pv.NewStorageError("reading blob", err)
	}
	return nil
}

// Has reports whether a file exists for checksum.
func (s *FileSystemStore) Has(_ context.Context, checksum string) (bool, error) {
	if !pv.ValidHash(checksum) {
		return false, nil
	}
	_, err := os.Stat(s.pathFor(checksum))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, pv.NewStorageError("checking blob", err)
}

// ValidateSetup verifies that the root is an accessible directory.
func (s *FileSystemStore) ValidateSetup(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("blob root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("blob root is not a directory: %s", s.root)
	}
	return nil
}

// syncFile flushes a temp file before it is renamed into place.
var syncFile = (*os.File).Sync

// writeFile writes data from r to destPath using a temp file and rename.
func (s *FileSystemStore) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return pv.NewStorageError("creating temp file", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return pv.NewStorageError("writing blob", err)
	}

	// A blob renamed into place before its bytes reach disk could come back
	// empty after a crash, and Has would then skip rewriting it forever.
	if err := syncFile(tmpFile); err != nil {
		tmpFile.Close()
		return pv.NewStorageError("syncing blob", err)
	}
	if err := tmpFile.Close(); err != nil {
		return pv.NewStorageError("closing temp file", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	// Concurrent writers of the same checksum rename identical bytes.
	if err := os.Rename(tmpPath, destPath); err != nil {
		return pv.NewStorageError("publishing blob", err)
	}

	success = true
	return nil
}

var _ pv.BlobStore = (*FileSystemStore)(nil)
