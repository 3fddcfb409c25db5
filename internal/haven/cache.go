package haven

import (
	"fmt"
	"sync"
)

// KeyCache is the two-tier local key cache for one identity: durable
// on-device storage under the identity's name, plus an in-memory handle that
// short-circuits repeated loads. Once a key has been imported on any path —
// local load, local save, or remote restore — it is returned from memory
// without touching storage again, until Reset or an overwriting save.
//
// The cache is owned by a loader instance; its lifetime is the loader's, not
// the process's. Last write wins on the in-memory slot.
type KeyCache struct {
	identity string
	storage  Storage
	crypto   Crypto
	clock    Clock
	logger   Logger

	mu  sync.Mutex
	key PrivateKey
}

// NewKeyCache creates a cache for the given identity backed by storage.
func NewKeyCache(identity string, storage Storage, crypto Crypto, clock Clock, logger Logger) *KeyCache {
	return &KeyCache{
		identity: identity,
		storage:  storage,
		crypto:   crypto,
		clock:    clock,
		logger:   logger,
	}
}

// Store exports the key, writes it to durable storage and replaces the
// in-memory handle.
func (c *KeyCache) Store(key PrivateKey) error {
	data, err := c.crypto.ExportPrivateKey(key)
	if err != nil {
		return fmt.Errorf("exporting private key: %w", err)
	}
	if err := c.save(data, "local"); err != nil {
		return err
	}

	c.mu.Lock()
	c.key = key
	c.mu.Unlock()

	c.logger.Debug("key cached", "identity", c.identity, "origin", "local")
	return nil
}

// StoreBytes writes already-exported key bytes to durable storage, imports
// them into a usable handle, caches the handle and returns it. Used on the
// restore path, where the decrypted backup payload is the source bytes.
func (c *KeyCache) StoreBytes(data []byte) (PrivateKey, error) {
	if err := c.save(data, "restore"); err != nil {
		return nil, err
	}

	key, err := c.crypto.ImportPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("importing private key: %w", err)
	}

	c.mu.Lock()
	c.key = key
	c.mu.Unlock()

	c.logger.Debug("key cached", "identity", c.identity, "origin", "restore")
	return key, nil
}

// Load returns the cached key. The in-memory handle is checked first; on a
// miss the durable entry is read, imported and cached. Returns (nil, nil)
// when no key is cached anywhere — absence is not an error.
func (c *KeyCache) Load() (PrivateKey, error) {
	c.mu.Lock()
	key := c.key
	c.mu.Unlock()
	if key != nil {
		return key, nil
	}

	entry, err := c.storage.Load(c.identity)
	if err != nil {
		return nil, fmt.Errorf("reading local storage: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	key, err = c.crypto.ImportPrivateKey(entry.Value)
	if err != nil {
		return nil, fmt.Errorf("importing private key: %w", err)
	}

	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
	return key, nil
}

// Has reports whether a key is cached, checking memory then durable storage.
func (c *KeyCache) Has() (bool, error) {
	c.mu.Lock()
	key := c.key
	c.mu.Unlock()
	if key != nil {
		return true, nil
	}
	ok, err := c.storage.Exists(c.identity)
	if err != nil {
		return false, fmt.Errorf("checking local storage: %w", err)
	}
	return ok, nil
}

// Reset deletes the durable entry and clears the in-memory handle.
func (c *KeyCache) Reset() error {
	if err := c.storage.Remove(c.identity); err != nil {
		return fmt.Errorf("removing local entry: %w", err)
	}

	c.mu.Lock()
	c.key = nil
	c.mu.Unlock()

	c.logger.Debug("key cache reset", "identity", c.identity)
	return nil
}

func (c *KeyCache) save(data []byte, origin string) error {
	entry := &Entry{
		Name:      c.identity,
		Value:     data,
		Meta:      map[string]string{"origin": origin},
		UpdatedAt: c.clock.Now(),
	}
	if err := c.storage.Save(entry); err != nil {
		return fmt.Errorf("writing local storage: %w", err)
	}
	return nil
}
