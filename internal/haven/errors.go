package haven

import "errors"

// Domain errors surfaced by the key loader. Anything not listed here is a
// transport or service failure and propagates unchanged.
var (
	// ErrWrongPassword means a backup record exists but could not be
	// decrypted with the keypair derived from the supplied password.
	ErrWrongPassword = errors.New("wrong password: backup record could not be decrypted")

	// ErrNoBackup means an operation that requires an existing backup
	// record found none. Distinct from ErrWrongPassword.
	ErrNoBackup = errors.New("no backup record exists for this identity")
)
