package haven

import "time"

// Entry is a single named value in durable on-device storage.
// Value holds the base64 text of exported key material.
type Entry struct {
	Name      string
	Value     []byte
	Meta      map[string]string
	UpdatedAt time.Time
}

// Storage is a durable single-key-value store on the device. At most one
// entry exists per name; Save overwrites and the most recent write wins.
// No partial-write guarantees are assumed beyond what the backend provides.
type Storage interface {
	Save(entry *Entry) error

	// Load returns the entry for name, or (nil, nil) when absent.
	Load(name string) (*Entry, error)

	// Remove deletes the entry for name. Removing an absent entry is a no-op.
	Remove(name string) error

	Exists(name string) (bool, error)

	Close() error
}
