package storage

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"

	"keyhaven/internal/haven"
)

// AgeFileStorage implements haven.Storage as one age-encrypted file per
// entry, encrypted to a device X25519 identity. The identity file lives
// outside the data dir (mode 0600, like an SSH key), so a copied data
// directory alone does not expose key material. No passphrase is involved:
// loads must work without prompting.
type AgeFileStorage struct {
	dataDir   string
	identity  *age.X25519Identity
	recipient age.Recipient
}

var _ haven.Storage = (*AgeFileStorage)(nil)

// GenerateDeviceKey creates a new device identity file at keyPath.
// Fails if one already exists.
func GenerateDeviceKey(keyPath string) error {
	if _, err := os.Stat(keyPath); err == nil {
		return fmt.Errorf("device key already exists at %s", keyPath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating device key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(identity.String()+"\n"), 0600); err != nil {
		return fmt.Errorf("writing device key: %w", err)
	}
	return nil
}

// NewAgeFileStorage opens a storage rooted at dataDir using the device
// identity at keyPath.
func NewAgeFileStorage(dataDir, keyPath string) (*AgeFileStorage, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading device key: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(keyData))
	if err != nil {
		return nil, fmt.Errorf("parsing device key: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in device key file")
	}
	identity, ok := identities[0].(*age.X25519Identity)
	if !ok {
		return nil, fmt.Errorf("device key is not an X25519 identity")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &AgeFileStorage{
		dataDir:   dataDir,
		identity:  identity,
		recipient: identity.Recipient(),
	}, nil
}

// entryFile is the plaintext form of an entry before age encryption.
type entryFile struct {
	Name      string            `json:"name"`
	Value     []byte            `json:"value"`
	Meta      map[string]string `json:"meta,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (s *AgeFileStorage) entryPath(name string) string {
	enc := base64.RawURLEncoding.EncodeToString([]byte(name))
	return filepath.Join(s.dataDir, enc+".age")
}

func (s *AgeFileStorage) Save(entry *haven.Entry) error {
	plaintext, err := json.Marshal(entryFile{
		Name:      entry.Name,
		Value:     entry.Value,
		Meta:      entry.Meta,
		UpdatedAt: entry.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return fmt.Errorf("writing encrypted entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted entry: %w", err)
	}

	return s.writeFile(s.entryPath(entry.Name), buf.Bytes())
}

// writeFile writes data to destPath atomically (temp file + rename).
func (s *AgeFileStorage) writeFile(destPath string, data []byte) error {
	tmpFile, err := os.CreateTemp(s.dataDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		return fmt.Errorf("restricting temp file mode: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing entry: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}

func (s *AgeFileStorage) Load(name string) (*haven.Entry, error) {
	data, err := os.ReadFile(s.entryPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading entry file: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(data), s.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting entry: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted entry: %w", err)
	}

	var ef entryFile
	if err := json.Unmarshal(plaintext, &ef); err != nil {
		return nil, fmt.Errorf("decoding entry: %w", err)
	}
	return &haven.Entry{
		Name:      ef.Name,
		Value:     ef.Value,
		Meta:      ef.Meta,
		UpdatedAt: ef.UpdatedAt,
	}, nil
}

func (s *AgeFileStorage) Remove(name string) error {
	if err := os.Remove(s.entryPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing entry file: %w", err)
	}
	return nil
}

func (s *AgeFileStorage) Exists(name string) (bool, error) {
	if _, err := os.Stat(s.entryPath(name)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking entry file: %w", err)
	}
	return true, nil
}

func (*AgeFileStorage) Close() error { return nil }
