// Package brainkey derives a deterministic keypair from a password with the
// help of a seed service. The password is blinded before it leaves the
// process; the service contributes a per-identity seed so offline guessing
// against a stolen backup record is not possible without it.
package brainkey

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"

	"keyhaven/internal/haven"
)

const seedKeyLen = 32

// SeedService returns a deterministic per-identity seed for a blinded
// password. Same (identity, blinded) in, same seed out.
type SeedService interface {
	GenerateSeed(ctx context.Context, identity string, blinded []byte, token haven.AccessToken) ([]byte, error)
}

// Params are the argon2id settings for the local stretching step.
type Params struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

// DefaultParams returns the production argon2id settings.
func DefaultParams() Params {
	return Params{Time: 2, MemoryKB: 64 * 1024, Threads: 1}
}

// Deriver implements haven.BrainKeyDeriver. It is a pure function of
// (password, identity, service seed); no mutable state is captured.
type Deriver struct {
	identity string
	tokens   haven.TokenProvider
	seeds    SeedService
	crypto   haven.Crypto
	params   Params
	logger   haven.Logger
}

var _ haven.BrainKeyDeriver = (*Deriver)(nil)

// NewDeriver creates a deriver bound to one identity.
func NewDeriver(identity string, tokens haven.TokenProvider, seeds SeedService, crypto haven.Crypto, params Params, logger haven.Logger) *Deriver {
	return &Deriver{
		identity: identity,
		tokens:   tokens,
		seeds:    seeds,
		crypto:   crypto,
		params:   params,
		logger:   logger,
	}
}

// Derive produces the identity's brain keypair for password. Deterministic:
// repeated calls with the same password yield interchangeable keys. Token and
// seed service failures propagate unclassified — this is the only network
// round trip that happens before any cloud store interaction.
func (d *Deriver) Derive(ctx context.Context, password string) (haven.KeyPair, error) {
	token, err := d.tokens.GetToken(ctx, haven.TokenScope{Service: "seed", Operation: "get"})
	if err != nil {
		return haven.KeyPair{}, fmt.Errorf("acquiring seed token: %w", err)
	}

	blinded := blind(d.identity, password)
	seed, err := d.seeds.GenerateSeed(ctx, d.identity, blinded, token)
	if err != nil {
		return haven.KeyPair{}, fmt.Errorf("generating seed: %w", err)
	}

	// Stretch locally with the service seed as salt, so neither the service
	// nor a captured seed is enough to reproduce the key without the password.
	stretched := argon2.IDKey([]byte(password), seed, d.params.Time, d.params.MemoryKB, d.params.Threads, seedKeyLen)
	defer zeroBytes(stretched)

	keys, err := d.crypto.KeyPairFromSeed(stretched)
	if err != nil {
		return haven.KeyPair{}, fmt.Errorf("deriving keypair: %w", err)
	}

	d.logger.Debug("brain key derived", "identity", d.identity, "key", keys.Public.Fingerprint())
	return keys, nil
}

// blind hides the password from the seed service: an HMAC keyed by the
// identity, so equal passwords for different identities blind differently.
func blind(identity, password string) []byte {
	mac := hmac.New(sha256.New, []byte(identity))
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
