package pv

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// BlobStore is a storage backend for content blobs keyed by checksum.
// All operations stream through io.Reader/io.Writer.
type BlobStore interface {
	// Put stores content under checksum. Storing an existing checksum is a no-op.
	// size is the number of bytes that will be read from r.
	Put(ctx context.Context, checksum string, r io.Reader, size int64) error

	// Get writes the content stored under checksum to w.
	// Returns ErrNotFound if nothing is stored under checksum.
	Get(ctx context.Context, checksum string, w io.Writer) error

	// Has reports whether content is stored under checksum.
	Has(ctx context.Context, checksum string) (bool, error)

	// ValidateSetup verifies that the backend is accessible.
	ValidateSetup(ctx context.Context) error
}

// Hash returns the lowercase hex SHA-256 of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ValidHash reports whether h looks like a value returned by Hash.
func ValidHash(h string) bool {
	if len(h) != sha256.Size*2 {
		return false
	}
	for _, c := range h {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

// Blobs is the content-addressed blob store. Each unique content is
// written once; blobs are never updated or deleted.
type Blobs struct {
	backend BlobStore
	logger  Logger
}

// NewBlobs creates a Blobs on top of backend.
func NewBlobs(backend BlobStore, logger Logger) *Blobs {
	return &Blobs{backend: backend, logger: logger}
}

// Store writes data if no blob with the same hash exists and returns the hash.
func (b *Blobs) Store(ctx context.Context, data []byte) (string, error) {
	checksum := Hash(data)

	exists, err := b.backend.Has(ctx, checksum)
	if err != nil {
		return "", fmt.Errorf("checking content %s: %w", checksum, err)
	}
	if exists {
		b.logger.Debug("content deduplicated", "checksum", checksum)
		return checksum, nil
	}

	if err := b.backend.Put(ctx, checksum, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", fmt.Errorf("storing content %s: %w", checksum, err)
	}

	b.logger.Debug("content stored", "checksum", checksum, "size", len(data))
	return checksum, nil
}

// Load returns the bytes stored under checksum.
// A malformed checksum is reported as ErrNotFound without touching storage.
func (b *Blobs) Load(ctx context.Context, checksum string) ([]byte, error) {
	if !ValidHash(checksum) {
		return nil, fmt.Errorf("%w: content %q", ErrNotFound, checksum)
	}

	var buf bytes.Buffer
	if err := b.backend.Get(ctx, checksum, &buf); err != nil {
		return nil, fmt.Errorf("loading content %s: %w", checksum, err)
	}
	return buf.Bytes(), nil
}
