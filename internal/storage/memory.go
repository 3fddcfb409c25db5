// Package storage implements durable on-device key storage behind the
// haven.Storage interface: a SQLite database, an age-encrypted file tree, and
// an in-memory map for tests.
package storage

import (
	"sync"

	"keyhaven/internal/haven"
)

// MemoryStorage is an in-memory implementation of haven.Storage.
// Safe for concurrent use.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]*haven.Entry
}

var _ haven.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]*haven.Entry)}
}

func (m *MemoryStorage) Save(entry *haven.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Name] = copyEntry(entry)
	return nil
}

func (m *MemoryStorage) Load(name string) (*haven.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[name]
	if !ok {
		return nil, nil
	}
	return copyEntry(entry), nil
}

func (m *MemoryStorage) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, name)
	return nil
}

func (m *MemoryStorage) Exists(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[name]
	return ok, nil
}

func (*MemoryStorage) Close() error { return nil }

func copyEntry(entry *haven.Entry) *haven.Entry {
	out := &haven.Entry{
		Name:      entry.Name,
		Value:     append([]byte(nil), entry.Value...),
		UpdatedAt: entry.UpdatedAt,
	}
	if entry.Meta != nil {
		out.Meta = make(map[string]string, len(entry.Meta))
		for k, v := range entry.Meta {
			out.Meta[k] = v
		}
	}
	return out
}
