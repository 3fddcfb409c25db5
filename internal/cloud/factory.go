package cloud

import (
	"context"
	"fmt"

	"keyhaven/internal/config"
	"keyhaven/internal/haven"
)

// NewTransportFromConfig creates a Transport based on the vault config type.
func NewTransportFromConfig(ctx context.Context, cfg config.VaultConfig) (haven.Transport, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryTransport(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_root to be set")
		}
		return NewFileSystemTransport(cfg.FSRoot)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
		}
		return NewS3Transport(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown vault type: %q", cfg.Type)
	}
}
