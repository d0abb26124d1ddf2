package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for pv.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Blobs      BlobsConfig      `toml:"blobs"`
	Catalog    CatalogConfig    `toml:"catalog"`
	Encryption EncryptionConfig `toml:"encryption"`
	Log        LogConfig        `toml:"log"`
	Import     ImportConfig     `toml:"import"`
}

// BlobsConfig selects the backend holding content blobs.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BlobsConfig struct {
	Type      string `toml:"type"`      // "filesystem", "memory" or "s3"
	Encrypted bool   `toml:"encrypted"` // encrypt blobs at rest with the configured encryptor

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // for S3-compatible services; enables path-style addressing
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// CatalogConfig selects the backend holding project version records.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CatalogConfig struct {
	Type    string `toml:"type"`               // "filesystem", "memory" or "sqlite"
	Root    string `toml:"root,omitempty"`     // only used for type=filesystem
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EncryptionConfig holds paths to the age key pair used for blob encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// LogConfig controls rotation of the log file.
type LogConfig struct {
	MaxSizeMB  int `toml:"max_size_mb"`
	MaxBackups int `toml:"max_backups"`
	MaxAgeDays int `toml:"max_age_days"`
}

// ImportConfig holds settings for importing directories as projects.
type ImportConfig struct {
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a Config rooted at baseDir with filesystem storage.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Blobs: BlobsConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "content"),
		},
		Catalog: CatalogConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "projects"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "pv.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "pv.key"),
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes cfg to path, creating parent directories.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := writeAndClose(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. An existing file is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// writeAndClose encodes cfg to w and closes it. A failed close is reported,
// since it may mean the file was never fully written.
func writeAndClose(w io.WriteCloser, cfg *Config) error {
	m := &Manager{}
	if err := m.Write(w, cfg); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
