package crypto

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"

	"keyhaven/internal/haven"
)

const envelopeVersion = 1

// envelope is the serialized form of a multi-recipient ciphertext. A random
// content key encrypts the payload with XChaCha20-Poly1305; the content key
// is sealed once per recipient with an anonymous NaCl box, so any single
// matching private key can open the whole envelope.
type envelope struct {
	Version    int      `json:"version"`
	Recipients [][]byte `json:"recipients"`
	Nonce      []byte   `json:"nonce"`
	Ciphertext []byte   `json:"ciphertext"`
}

// Encrypt seals plaintext for the given recipient public keys.
func (*Provider) Encrypt(plaintext []byte, recipients []haven.PublicKey) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients")
	}

	cek := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(cek); err != nil {
		return nil, fmt.Errorf("generating content key: %w", err)
	}
	defer zeroBytes(cek)

	aead, err := chacha20poly1305.NewX(cek)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	env := envelope{
		Version:    envelopeVersion,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}

	for _, r := range recipients {
		pub, ok := r.(*PublicKey)
		if !ok {
			return nil, fmt.Errorf("foreign public key type %T", r)
		}
		sealed, err := box.SealAnonymous(nil, cek, &pub.p, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("sealing content key: %w", err)
		}
		env.Recipients = append(env.Recipients, sealed)
	}

	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return out, nil
}

// Decrypt opens an envelope with the given private key. When the key matches
// none of the envelope's recipients, the error wraps haven.ErrDecryptFailed.
func (*Provider) Decrypt(ciphertext []byte, key haven.PrivateKey) ([]byte, error) {
	k, ok := key.(*PrivateKey)
	if !ok {
		return nil, fmt.Errorf("foreign private key type %T", key)
	}

	var env envelope
	if err := json.Unmarshal(ciphertext, &env); err != nil {
		return nil, fmt.Errorf("parsing envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	if len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("envelope nonce has unexpected length %d", len(env.Nonce))
	}

	var cek []byte
	for _, sealed := range env.Recipients {
		out, ok := box.OpenAnonymous(nil, sealed, &k.pub.p, &k.d)
		if ok {
			cek = out
			break
		}
	}
	if cek == nil {
		return nil, fmt.Errorf("opening content key: %w", haven.ErrDecryptFailed)
	}
	defer zeroBytes(cek)

	if len(cek) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("content key has unexpected length %d", len(cek))
	}
	aead, err := chacha20poly1305.NewX(cek)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("opening payload: %w", haven.ErrDecryptFailed)
	}
	return plaintext, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
