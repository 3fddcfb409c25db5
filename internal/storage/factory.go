package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"keyhaven/internal/config"
	"keyhaven/internal/haven"
)

// NewStorageFromConfig creates a Storage based on the storage config type.
func NewStorageFromConfig(cfg config.StorageConfig) (haven.Storage, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStorage(), nil
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("sqlite storage requires data_dir to be set")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteStorage(filepath.Join(cfg.DataDir, "keyhaven.db"))
	case "agefile":
		if cfg.DataDir == "" || cfg.KeyPath == "" {
			return nil, fmt.Errorf("agefile storage requires data_dir and key_path to be set")
		}
		return NewAgeFileStorage(cfg.DataDir, cfg.KeyPath)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}
