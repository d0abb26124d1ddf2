package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"pagevault/internal/config"
	"pagevault/internal/pv"
)

// catalogFile is the database file name inside the sqlite data_dir.
const catalogFile = "catalog.db"

// NewCatalogFromConfig creates a Catalog implementation based on the catalog config type.
func NewCatalogFromConfig(cfg config.CatalogConfig) (pv.Catalog, error) {
	switch cfg.Type {
	case "filesystem", "":
		if cfg.Root == "" {
			return nil, fmt.Errorf("root required for filesystem catalog")
		}
		return NewFileSystemCatalog(cfg.Root)
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite catalog")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog data directory: %w", err)
		}
		return NewSQLiteCatalog(filepath.Join(cfg.DataDir, catalogFile))
	case "memory":
		return NewMemoryCatalog(), nil
	default:
		return nil, fmt.Errorf("unknown catalog type: %s", cfg.Type)
	}
}
