package pv

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the store. Callers match them with errors.Is; the
// wrapped message carries the project, page, version or hash involved.
var (
	// ErrInvalidName is returned when a project or page name does not match ^[a-z0-9-]+$.
	ErrInvalidName = errors.New("invalid name")

	// ErrAlreadyExists is returned when creating a project that already has a version.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned for a missing project, version or content blob.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the latest version of a project changed
	// between reading it and committing a page mutation on top of it.
	ErrConflict = errors.New("version conflict")

	// ErrStorage matches any *StorageError.
	ErrStorage = errors.New("storage failure")
)

// StorageError reports a failure of the underlying storage (disk, network,
// database or a corrupt record).
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err as a storage failure of operation op.
// A nil err yields nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
