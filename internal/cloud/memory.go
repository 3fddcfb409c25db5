package cloud

import (
	"context"
	"sync"

	"keyhaven/internal/haven"
)

// MemoryTransport is an in-memory implementation of haven.Transport. It keeps
// all records in a map, making it useful for testing. Safe for concurrent use.
type MemoryTransport struct {
	mu      sync.RWMutex
	records map[string]*haven.Record
}

var _ haven.Transport = (*MemoryTransport)(nil)

// NewMemoryTransport creates an empty in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{records: make(map[string]*haven.Record)}
}

// Push stores a copy of rec, replacing any previous revision.
func (m *MemoryTransport) Push(_ context.Context, rec *haven.Record, _ haven.AccessToken) (*haven.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := copyRecord(rec)
	m.records[rec.Identity] = stored
	return copyRecord(stored), nil
}

// Pull returns the record for identity, or (nil, nil) when absent.
func (m *MemoryTransport) Pull(_ context.Context, identity string, _ haven.AccessToken) (*haven.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[identity]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

// Delete removes the record for identity.
func (m *MemoryTransport) Delete(_ context.Context, identity string, _ haven.AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[identity]; !ok {
		return haven.ErrRecordNotFound
	}
	delete(m.records, identity)
	return nil
}

// DeleteAll removes every record.
func (m *MemoryTransport) DeleteAll(_ context.Context, _ haven.AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[string]*haven.Record)
	return nil
}

// ValidateSetup always succeeds for the in-memory transport.
func (*MemoryTransport) ValidateSetup() error { return nil }

// Count returns the number of stored records. Test helper.
func (m *MemoryTransport) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func copyRecord(rec *haven.Record) *haven.Record {
	out := *rec
	out.Payload = append([]byte(nil), rec.Payload...)
	return &out
}
