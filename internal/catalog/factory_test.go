package catalog

import (
	"fmt"
	"path/filepath"
	"testing"

	"pagevault/internal/config"
)

func TestNewCatalogFromConfig(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		cfg      config.CatalogConfig
		wantErr  bool
		wantType string
	}{
		{name: "filesystem", cfg: config.CatalogConfig{Type: "filesystem", Root: filepath.Join(dir, "projects")}, wantType: "*catalog.FileSystemCatalog"},
		{name: "empty type defaults to filesystem", cfg: config.CatalogConfig{Root: filepath.Join(dir, "p2")}, wantType: "*catalog.FileSystemCatalog"},
		{name: "filesystem without root", cfg: config.CatalogConfig{Type: "filesystem"}, wantErr: true},
		{name: "memory", cfg: config.CatalogConfig{Type: "memory"}, wantType: "*catalog.MemoryCatalog"},
		{name: "sqlite", cfg: config.CatalogConfig{Type: "sqlite", DataDir: filepath.Join(dir, "db")}, wantType: "*catalog.SQLiteCatalog"},
		{name: "sqlite without data_dir", cfg: config.CatalogConfig{Type: "sqlite"}, wantErr: true},
		{name: "unknown type", cfg: config.CatalogConfig{Type: "postgres"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCatalogFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewCatalogFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer c.Close()
			if got := fmt.Sprintf("%T", c); got != tt.wantType {
				t.Errorf("NewCatalogFromConfig() type = %s, want %s", got, tt.wantType)
			}
		})
	}
}
