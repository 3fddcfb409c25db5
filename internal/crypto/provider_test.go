package crypto

import (
	"bytes"
	"testing"

	"keyhaven/internal/haven"
)

func TestGenerateKeyPair(t *testing.T) {
	p := NewProvider()

	kp1, err := p.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	kp2, err := p.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	if kp1.Public.Fingerprint() == kp2.Public.Fingerprint() {
		t.Error("two generated key pairs share a fingerprint")
	}
	if kp1.Private.Public().Fingerprint() != kp1.Public.Fingerprint() {
		t.Error("Private.Public() does not match the pair's public key")
	}
}

func TestKeyPairFromSeed(t *testing.T) {
	p := NewProvider()
	seed := []byte("zAd3u2ot2bPAkzXAioxbu9HFnjSiS17WCXCLbn1SSy0")

	t.Run("deterministic", func(t *testing.T) {
		kp1, err := p.KeyPairFromSeed(seed)
		if err != nil {
			t.Fatalf("KeyPairFromSeed() error = %v", err)
		}
		kp2, err := p.KeyPairFromSeed(seed)
		if err != nil {
			t.Fatalf("KeyPairFromSeed() error = %v", err)
		}
		if kp1.Public.Fingerprint() != kp2.Public.Fingerprint() {
			t.Error("same seed produced different key pairs")
		}
	})

	t.Run("different seeds diverge", func(t *testing.T) {
		kp1, err := p.KeyPairFromSeed(seed)
		if err != nil {
			t.Fatalf("KeyPairFromSeed() error = %v", err)
		}
		other := append([]byte{}, seed...)
		other[0] ^= 1
		kp2, err := p.KeyPairFromSeed(other)
		if err != nil {
			t.Fatalf("KeyPairFromSeed() error = %v", err)
		}
		if kp1.Public.Fingerprint() == kp2.Public.Fingerprint() {
			t.Error("different seeds produced the same key pair")
		}
	})
}

func TestExportImportPrivateKey(t *testing.T) {
	p := NewProvider()

	kp, err := p.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	exported, err := p.ExportPrivateKey(kp.Private)
	if err != nil {
		t.Fatalf("ExportPrivateKey() error = %v", err)
	}

	imported, err := p.ImportPrivateKey(exported)
	if err != nil {
		t.Fatalf("ImportPrivateKey() error = %v", err)
	}

	if imported.Public().Fingerprint() != kp.Public.Fingerprint() {
		t.Error("imported key does not match exported key")
	}

	// The imported key must be able to open content encrypted to the
	// original public key.
	plaintext := []byte("round trip payload")
	ct, err := p.Encrypt(plaintext, []haven.PublicKey{kp.Public})
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	got, err := p.Decrypt(ct, imported)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestImportPrivateKey_Invalid(t *testing.T) {
	p := NewProvider()

	t.Run("not base64", func(t *testing.T) {
		if _, err := p.ImportPrivateKey([]byte("not!!base64")); err == nil {
			t.Fatal("expected error for malformed input")
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		if _, err := p.ImportPrivateKey([]byte("c2hvcnQ=")); err == nil {
			t.Fatal("expected error for short key")
		}
	})
}

func TestFingerprint(t *testing.T) {
	p := NewProvider()
	kp, err := p.KeyPairFromSeed([]byte("fingerprint-seed"))
	if err != nil {
		t.Fatalf("KeyPairFromSeed() error = %v", err)
	}

	fp := kp.Public.Fingerprint()
	if len(fp) != 20 {
		t.Errorf("Fingerprint() length = %d, want 20 hex chars", len(fp))
	}
	if fp != kp.Public.Fingerprint() {
		t.Error("Fingerprint() is not stable")
	}
}
