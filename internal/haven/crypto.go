package haven

import "errors"

// ErrDecryptFailed is the signal Crypto implementations return when a
// ciphertext cannot be opened with the supplied private key. The cloud store
// session translates it into ErrWrongPassword; nothing else may.
var ErrDecryptFailed = errors.New("decryption failed: no matching recipient key")

// PrivateKey is an opaque handle to an asymmetric private key. The core never
// inspects key material; handles are passed back to the Crypto provider that
// produced them.
type PrivateKey interface {
	Public() PublicKey
}

// PublicKey is an opaque handle to an asymmetric public key.
type PublicKey interface {
	// Fingerprint returns a short stable digest of the key, safe for logs.
	Fingerprint() string
}

// KeyPair bundles a private key with its public half.
type KeyPair struct {
	Private PrivateKey
	Public  PublicKey
}

// Crypto provides the asymmetric primitives the core depends on.
// Exported private keys use a textual base64 encoding of the raw key material.
type Crypto interface {
	// GenerateKeyPair produces a fresh random key pair.
	GenerateKeyPair() (KeyPair, error)

	// KeyPairFromSeed deterministically derives a key pair from seed bytes.
	// The same seed always yields the same pair.
	KeyPairFromSeed(seed []byte) (KeyPair, error)

	// ExportPrivateKey encodes a private key as base64 text.
	ExportPrivateKey(key PrivateKey) ([]byte, error)

	// ImportPrivateKey decodes base64 text back into a usable key handle.
	ImportPrivateKey(data []byte) (PrivateKey, error)

	// Encrypt seals plaintext for a set of recipients. Any single matching
	// private key can open the result.
	Encrypt(plaintext []byte, recipients []PublicKey) ([]byte, error)

	// Decrypt opens a ciphertext produced by Encrypt. Returns an error
	// wrapping ErrDecryptFailed when key does not match any recipient.
	Decrypt(ciphertext []byte, key PrivateKey) ([]byte, error)
}
