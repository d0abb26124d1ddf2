package blob

import (
	"context"
	"fmt"

	"pagevault/internal/config"
	"pagevault/internal/pv"
)

// NewStoreFromConfig creates a BlobStore implementation based on the blobs config type.
// Encryption is layered on by the caller, since it needs an unlock prompt.
func NewStoreFromConfig(ctx context.Context, cfg config.BlobsConfig) (pv.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, cfg)
	case "filesystem", "":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem blob store requires root to be set")
		}
		return NewFileSystemStore(cfg.Root)
	default:
		return nil, fmt.Errorf("unknown blob store type: %s", cfg.Type)
	}
}
