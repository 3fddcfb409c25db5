package cloud

import (
	"context"
	"testing"

	"keyhaven/internal/config"
)

func TestNewTransportFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		tr, err := NewTransportFromConfig(ctx, config.VaultConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewTransportFromConfig() error = %v", err)
		}
		if _, ok := tr.(*MemoryTransport); !ok {
			t.Errorf("transport type = %T, want *MemoryTransport", tr)
		}
	})

	t.Run("filesystem", func(t *testing.T) {
		tr, err := NewTransportFromConfig(ctx, config.VaultConfig{Type: "filesystem", FSRoot: t.TempDir()})
		if err != nil {
			t.Fatalf("NewTransportFromConfig() error = %v", err)
		}
		if _, ok := tr.(*FileSystemTransport); !ok {
			t.Errorf("transport type = %T, want *FileSystemTransport", tr)
		}
	})

	t.Run("filesystem without root", func(t *testing.T) {
		if _, err := NewTransportFromConfig(ctx, config.VaultConfig{Type: "filesystem"}); err == nil {
			t.Fatal("expected error for missing fs_root")
		}
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		if _, err := NewTransportFromConfig(ctx, config.VaultConfig{Type: "s3"}); err == nil {
			t.Fatal("expected error for missing s3_bucket")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewTransportFromConfig(ctx, config.VaultConfig{Type: "ftp"}); err == nil {
			t.Fatal("expected error for unknown type")
		}
	})
}
