package haven

import (
	"context"
	"errors"
	"time"
)

// ErrRecordNotFound is the raw "entry doesn't exist" signal from a Transport.
// The loader translates it into ErrNoBackup on the paths that require an
// existing record; everywhere else it propagates untouched.
var ErrRecordNotFound = errors.New("backup record not found")

// Record is one identity's encrypted backup blob plus bookkeeping metadata.
// The payload is opaque to the core: only a holder of a private key matching
// one of its recipient public keys can decrypt it.
type Record struct {
	Identity  string
	Payload   []byte
	Revision  string
	UpdatedAt time.Time
}

// Transport moves records to and from the backup service. Implementations
// authenticate each call with the supplied scoped token (backends with their
// own credential scheme may ignore it).
type Transport interface {
	// Push uploads a record, replacing any previous revision for the same
	// identity, and returns the stored record.
	Push(ctx context.Context, rec *Record, token AccessToken) (*Record, error)

	// Pull retrieves the most recent record for an identity.
	// Returns (nil, nil) when no record exists.
	Pull(ctx context.Context, identity string, token AccessToken) (*Record, error)

	// Delete removes the record for an identity.
	// Returns ErrRecordNotFound when no record exists.
	Delete(ctx context.Context, identity string, token AccessToken) error

	// DeleteAll removes every record in the account scope.
	DeleteAll(ctx context.Context, token AccessToken) error

	// ValidateSetup verifies that the backend is accessible and configured.
	ValidateSetup() error
}

// CloudStore opens password-scoped sessions against the backup service.
type CloudStore interface {
	// Open retrieves the identity's record and decrypts it with the given
	// keypair. An absent record yields a session without a payload. A record
	// that cannot be decrypted yields ErrWrongPassword.
	Open(ctx context.Context, keys KeyPair, identity string) (Session, error)

	// Purge wipes all backup data in the account scope. Privileged: requires
	// a delete-scoped token, bypasses password derivation entirely.
	Purge(ctx context.Context) error
}

// Session is an open view onto one identity's backup record, bound to the
// keypair it was opened with.
type Session interface {
	// HasRecord reports whether a record existed when the session was opened.
	HasRecord() bool

	// Payload returns the decrypted record content.
	Payload() ([]byte, error)

	// Save encrypts payload to the session keypair and uploads it as the
	// identity's record.
	Save(ctx context.Context, payload []byte) error

	// Rotate re-encrypts the existing decrypted payload for a new recipient
	// keypair and uploads it. The held plaintext is the source of truth; only
	// the recipient envelope changes.
	Rotate(ctx context.Context, next KeyPair) error

	// Delete removes the identity's record. Propagates ErrRecordNotFound raw.
	Delete(ctx context.Context) error
}
