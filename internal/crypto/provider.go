// Package crypto implements the haven.Crypto provider on X25519 keys with a
// multi-recipient sealed envelope. Private keys are Curve25519 scalars
// (clamped per RFC 7748); exported form is standard base64 of the raw scalar.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"keyhaven/internal/haven"
)

const seedInfo = "keyhaven/brainkey/x25519/v1"

// PrivateKey is an X25519 private key handle.
type PrivateKey struct {
	d   [32]byte
	pub *PublicKey
}

var _ haven.PrivateKey = (*PrivateKey)(nil)

// Public returns the matching public key.
func (k *PrivateKey) Public() haven.PublicKey { return k.pub }

// PublicKey is an X25519 public key handle.
type PublicKey struct {
	p [32]byte
}

var _ haven.PublicKey = (*PublicKey)(nil)

// Fingerprint returns a short hex digest of the public key, safe for logs.
func (k *PublicKey) Fingerprint() string {
	sum := sha256.Sum256(k.p[:])
	return hex.EncodeToString(sum[:10])
}

// Provider implements haven.Crypto.
type Provider struct{}

var _ haven.Crypto = (*Provider)(nil)

// NewProvider creates the X25519 crypto provider.
func NewProvider() *Provider { return &Provider{} }

// GenerateKeyPair produces a fresh random X25519 key pair.
func (*Provider) GenerateKeyPair() (haven.KeyPair, error) {
	var d [32]byte
	if _, err := rand.Read(d[:]); err != nil {
		return haven.KeyPair{}, fmt.Errorf("reading randomness: %w", err)
	}
	return newKeyPair(d)
}

// KeyPairFromSeed derives an X25519 key pair deterministically from seed
// bytes. The seed is expanded through HKDF-SHA256 so related seeds do not
// produce related scalars.
func (*Provider) KeyPairFromSeed(seed []byte) (haven.KeyPair, error) {
	var d [32]byte
	r := hkdf.New(sha256.New, seed, nil, []byte(seedInfo))
	if _, err := io.ReadFull(r, d[:]); err != nil {
		return haven.KeyPair{}, fmt.Errorf("expanding seed: %w", err)
	}
	return newKeyPair(d)
}

// ExportPrivateKey encodes the raw scalar as base64 text.
func (*Provider) ExportPrivateKey(key haven.PrivateKey) ([]byte, error) {
	k, ok := key.(*PrivateKey)
	if !ok {
		return nil, fmt.Errorf("foreign private key type %T", key)
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(k.d)))
	base64.StdEncoding.Encode(out, k.d[:])
	return out, nil
}

// ImportPrivateKey decodes base64 text back into a usable key handle.
func (*Provider) ImportPrivateKey(data []byte) (haven.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("decoding private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(raw))
	}
	var d [32]byte
	copy(d[:], raw)
	kp, err := newKeyPair(d)
	if err != nil {
		return nil, err
	}
	return kp.Private, nil
}

func newKeyPair(d [32]byte) (haven.KeyPair, error) {
	clamp(&d)
	pb, err := curve25519.X25519(d[:], curve25519.Basepoint)
	if err != nil {
		return haven.KeyPair{}, fmt.Errorf("computing public key: %w", err)
	}
	pub := &PublicKey{}
	copy(pub.p[:], pb)
	priv := &PrivateKey{d: d, pub: pub}
	return haven.KeyPair{Private: priv, Public: pub}, nil
}

// clamp adjusts a scalar per RFC 7748.
func clamp(d *[32]byte) {
	d[0] &= 248
	d[31] &= 127
	d[31] |= 64
}
