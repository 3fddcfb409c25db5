package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"keyhaven/internal/brainkey"
	"keyhaven/internal/cloud"
	"keyhaven/internal/config"
	"keyhaven/internal/crypto"
	"keyhaven/internal/haven"
	"keyhaven/internal/storage"
	"keyhaven/internal/token"
)

// KeyApp is the application layer between the CLI and the key loader.
// It constructs all collaborators from config and manages resource lifecycle
// on Close.
type KeyApp struct {
	cfg       *config.Config
	storage   haven.Storage
	transport haven.Transport
	loader    *haven.KeyLoader
	logFile   *os.File
}

// NewKeyApp creates a fully wired KeyApp from the given config.
// operation identifies the CLI command being run (e.g. "Backup", "Restore").
// The caller must call Close when done.
func NewKeyApp(cfg *config.Config, operation string) (*KeyApp, error) {
	if cfg.Identity == "" {
		return nil, fmt.Errorf("no identity configured")
	}

	st, err := storage.NewStorageFromConfig(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("creating local storage: %w", err)
	}

	transport, err := cloud.NewTransportFromConfig(context.Background(), cfg.Vault)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating vault transport: %w", err)
	}

	clock := haven.RealClock{}
	tokens, err := token.NewProviderFromConfig(cfg.Token, clock)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating token provider: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, operation)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	prov := crypto.NewProvider()
	params := brainkey.DefaultParams()
	if cfg.KDF.Time > 0 {
		params.Time = cfg.KDF.Time
	}
	if cfg.KDF.MemoryKB > 0 {
		params.MemoryKB = cfg.KDF.MemoryKB
	}
	if cfg.KDF.Threads > 0 {
		params.Threads = cfg.KDF.Threads
	}

	deriver := brainkey.NewDeriver(cfg.Identity, tokens, brainkey.NewHTTPSeedService(cfg.Seed.Endpoint), prov, params, logger)
	store := cloud.NewStore(transport, tokens, prov, clock, haven.UUIDGenerator{}, logger)
	cache := haven.NewKeyCache(cfg.Identity, st, prov, clock, logger)
	loader := haven.NewKeyLoader(cfg.Identity, prov, deriver, store, cache, logger)

	return &KeyApp{
		cfg:       cfg,
		storage:   st,
		transport: transport,
		loader:    loader,
		logFile:   logFile,
	}, nil
}

// InitKey generates a fresh key pair and saves it to the local cache.
// Fails if a key is already cached, to avoid silently replacing it.
func (a *KeyApp) InitKey() error {
	has, err := a.loader.HasKey()
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("a key is already cached locally; reset it first")
	}

	keys, err := crypto.NewProvider().GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}
	return a.loader.SaveLocal(keys.Private)
}

// Backup uploads the locally cached key as this identity's backup record.
func (a *KeyApp) Backup(ctx context.Context, password string) error {
	key, err := a.loader.LoadLocal()
	if err != nil {
		return err
	}
	if key == nil {
		return fmt.Errorf("no local key to back up; run init or restore first")
	}
	return a.loader.SaveRemote(ctx, key, password)
}

// Restore fetches and decrypts the backup record, repopulating the local
// cache.
func (a *KeyApp) Restore(ctx context.Context, password string) (haven.PrivateKey, error) {
	return a.loader.Restore(ctx, password)
}

// ChangePassword rotates the backup record to a keypair derived from the new
// password.
func (a *KeyApp) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return a.loader.ChangePassword(ctx, oldPassword, newPassword)
}

// ResetLocal deletes the locally cached key.
func (a *KeyApp) ResetLocal() error {
	return a.loader.ResetLocal()
}

// ResetBackup deletes this identity's backup record.
func (a *KeyApp) ResetBackup(ctx context.Context, password string) error {
	return a.loader.ResetBackup(ctx, password)
}

// ResetAll wipes all backup data in the account scope.
func (a *KeyApp) ResetAll(ctx context.Context) error {
	return a.loader.ResetAll(ctx)
}

// HasKey reports whether a key is cached locally. No network access.
func (a *KeyApp) HasKey() (bool, error) {
	return a.loader.HasKey()
}

// ValidateVault verifies that the configured vault backend is reachable.
func (a *KeyApp) ValidateVault() error {
	return a.transport.ValidateSetup()
}

// Close releases the storage and the log file.
func (a *KeyApp) Close() error {
	var firstErr error
	if err := a.storage.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
