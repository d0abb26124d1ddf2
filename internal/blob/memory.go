package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"pagevault/internal/pv"
)

// MemoryStore is an in-memory BlobStore, useful for tests and throwaway
// sessions. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	content map[string][]byte // checksum -> content
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{content: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, checksum string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.content[checksum]; !ok {
		m.content[checksum] = data
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, checksum string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.content[checksum]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: content %s", pv.ErrNotFound, checksum)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

func (m *MemoryStore) Has(_ context.Context, checksum string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.content[checksum]
	return ok, nil
}

// Len returns the number of distinct blobs held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.content)
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(context.Context) error {
	return nil
}

var _ pv.BlobStore = (*MemoryStore)(nil)
