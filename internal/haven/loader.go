package haven

import (
	"context"
	"errors"
	"fmt"
)

// KeyLoader orchestrates the private key lifecycle for one identity: local
// caching, encrypted cloud backup keyed by a password-derived keypair,
// password-based restore, password rotation and backup deletion.
//
// The loader never hands a password to the cloud store. Every remote path
// first derives a keypair, opens a store session with it, and only then
// performs the requested operation. Steps run strictly in sequence; each
// depends on the previous one's output. Concurrent operations for the same
// identity are not mutually excluded here — callers needing
// at-most-one-in-flight semantics must serialize externally.
type KeyLoader struct {
	identity string
	crypto   Crypto
	deriver  BrainKeyDeriver
	store    CloudStore
	cache    *KeyCache
	logger   Logger
}

// NewKeyLoader creates a loader with the provided collaborators.
func NewKeyLoader(identity string, crypto Crypto, deriver BrainKeyDeriver, store CloudStore, cache *KeyCache, logger Logger) *KeyLoader {
	return &KeyLoader{
		identity: identity,
		crypto:   crypto,
		deriver:  deriver,
		store:    store,
		cache:    cache,
		logger:   logger,
	}
}

// SaveRemote uploads key as this identity's backup record, encrypted to the
// keypair derived from password, and updates the local cache. If a record
// already exists and was saved under a different password, the session open
// fails with ErrWrongPassword.
func (l *KeyLoader) SaveRemote(ctx context.Context, key PrivateKey, password string) error {
	sess, err := l.openSession(ctx, password)
	if err != nil {
		return err
	}

	data, err := l.crypto.ExportPrivateKey(key)
	if err != nil {
		return fmt.Errorf("exporting private key: %w", err)
	}

	if err := sess.Save(ctx, data); err != nil {
		return fmt.Errorf("uploading backup record: %w", err)
	}

	if err := l.cache.Store(key); err != nil {
		return fmt.Errorf("updating local cache: %w", err)
	}

	l.logger.Info("backup saved", "identity", l.identity)
	return nil
}

// SaveLocal writes key to the local cache only. No network access.
func (l *KeyLoader) SaveLocal(key PrivateKey) error {
	return l.cache.Store(key)
}

// LoadLocal returns the locally cached key, or (nil, nil) when none is
// cached. No network access.
func (l *KeyLoader) LoadLocal() (PrivateKey, error) {
	return l.cache.Load()
}

// ResetLocal deletes the local cache entry and clears the in-memory key.
// The cloud record is untouched.
func (l *KeyLoader) ResetLocal() error {
	return l.cache.Reset()
}

// HasKey reports whether a key is cached locally. No network access.
func (l *KeyLoader) HasKey() (bool, error) {
	return l.cache.Has()
}

// Restore retrieves the backup record, decrypts it with the keypair derived
// from password, repopulates the local cache and returns the key.
// Returns ErrWrongPassword when the record cannot be decrypted and
// ErrNoBackup when no record exists.
func (l *KeyLoader) Restore(ctx context.Context, password string) (PrivateKey, error) {
	sess, err := l.openSession(ctx, password)
	if err != nil {
		return nil, err
	}
	if !sess.HasRecord() {
		return nil, ErrNoBackup
	}

	data, err := sess.Payload()
	if err != nil {
		return nil, fmt.Errorf("reading backup payload: %w", err)
	}

	key, err := l.cache.StoreBytes(data)
	if err != nil {
		return nil, fmt.Errorf("caching restored key: %w", err)
	}

	l.logger.Info("backup restored", "identity", l.identity)
	return key, nil
}

// ChangePassword validates the old password by opening a session with its
// derived keypair, then re-encrypts the record's recipients to the keypair
// derived from the new password. The record content never changes, so the
// local cache is untouched.
func (l *KeyLoader) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	sess, err := l.openSession(ctx, oldPassword)
	if err != nil {
		return err
	}
	if !sess.HasRecord() {
		return ErrNoBackup
	}

	next, err := l.deriver.Derive(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("deriving new brain key: %w", err)
	}

	if err := sess.Rotate(ctx, next); err != nil {
		return fmt.Errorf("rotating recipients: %w", err)
	}

	l.logger.Info("backup password changed", "identity", l.identity)
	return nil
}

// ResetBackup deletes this identity's backup record. Returns ErrNoBackup if
// no record exists; that is the only failure shape reclassified here — any
// other delete failure propagates unchanged so transport problems are never
// masked as a missing backup.
func (l *KeyLoader) ResetBackup(ctx context.Context, password string) error {
	sess, err := l.openSession(ctx, password)
	if err != nil {
		return err
	}

	if err := sess.Delete(ctx); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrNoBackup
		}
		return fmt.Errorf("deleting backup record: %w", err)
	}

	l.logger.Info("backup deleted", "identity", l.identity)
	return nil
}

// ResetAll wipes all backup data in the account scope. Privileged: uses a
// delete-scoped token instead of a derived keypair. Local state is untouched.
func (l *KeyLoader) ResetAll(ctx context.Context) error {
	if err := l.store.Purge(ctx); err != nil {
		return fmt.Errorf("purging backup data: %w", err)
	}
	l.logger.Info("all backup data purged", "identity", l.identity)
	return nil
}

// openSession derives the brain keypair for password and opens a cloud store
// session with it. ErrWrongPassword from Open passes through untouched;
// derivation failures are wrapped but never reclassified.
func (l *KeyLoader) openSession(ctx context.Context, password string) (Session, error) {
	keys, err := l.deriver.Derive(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("deriving brain key: %w", err)
	}

	sess, err := l.store.Open(ctx, keys, l.identity)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
