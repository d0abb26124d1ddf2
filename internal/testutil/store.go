package testutil

import (
	"context"
	"io"
	"sync"
	"testing"

	"pagevault/internal/blob"
	"pagevault/internal/catalog"
	"pagevault/internal/pv"
)

// TestStore bundles a ProjectService with the in-memory backends behind it.
type TestStore struct {
	Service *pv.ProjectService
	Blobs   *pv.Blobs
	Backend *blob.MemoryStore
	Catalog *catalog.MemoryCatalog
	Clock   *StubClock
	Tokens  *StubTokenGenerator
}

// NewTestStore creates a ProjectService over memory stores with a fixed
// clock and sequential version tokens.
func NewTestStore(t *testing.T) *TestStore {
	t.Helper()

	backend := blob.NewMemoryStore()
	cat := catalog.NewMemoryCatalog()
	clock := FixedClock()
	tokens := NewStubTokenGenerator()
	logger := pv.NewNopLogger()
	blobs := pv.NewBlobs(backend, logger)

	return &TestStore{
		Service: pv.NewProjectService(blobs, cat, logger, clock, tokens),
		Blobs:   blobs,
		Backend: backend,
		Catalog: cat,
		Clock:   clock,
		Tokens:  tokens,
	}
}

// GatedStore wraps a BlobStore and pauses Put for one checksum until
// Release is called. Used to hold a writer between reading the latest
// version and committing on top of it.
type GatedStore struct {
	pv.BlobStore

	checksum string
	reached  chan struct{}
	release  chan struct{}
	once     sync.Once
}

// NewGatedStore creates a GatedStore that blocks Put of checksum.
func NewGatedStore(inner pv.BlobStore, checksum string) *GatedStore {
	return &GatedStore{
		BlobStore: inner,
		checksum:  checksum,
		reached:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

// Reached is closed once a Put of the gated checksum has started.
func (g *GatedStore) Reached() <-chan struct{} { return g.reached }

// Release lets the blocked Put continue.
func (g *GatedStore) Release() { close(g.release) }

func (g *GatedStore) Has(ctx context.Context, checksum string) (bool, error) {
	if checksum == g.checksum {
		// Force the Put path so the gate is hit even for known content.
		return false, nil
	}
	return g.BlobStore.Has(ctx, checksum)
}

func (g *GatedStore) Put(ctx context.Context, checksum string, r io.Reader, size int64) error {
	if checksum == g.checksum {
		g.once.Do(func() { close(g.reached) })
		select {
		case <-g.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return g.BlobStore.Put(ctx, checksum, r, size)
}
